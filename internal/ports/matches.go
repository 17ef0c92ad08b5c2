package ports

import "encoding/json"

// MatchRecord maps each matched string (literal keyword, regex match text or
// indicator phrase) to the 1-based line numbers it was found on within one
// file's text. Keys keep first-seen order; that order carries no meaning but
// keeps reports stable. Lines for a key are non-decreasing because text is
// scanned top to bottom. A line appears once per match event, so the same
// line number can repeat under one key.
//
// The zero value is not usable; call NewMatchRecord. A nil *MatchRecord
// behaves as an empty record for all read methods.
type MatchRecord struct {
	keys  []string
	lines map[string][]int
}

// NewMatchRecord returns an empty record.
func NewMatchRecord() *MatchRecord {
	return &MatchRecord{lines: make(map[string][]int)}
}

// Add records one occurrence of key on line.
func (r *MatchRecord) Add(key string, line int) {
	if _, ok := r.lines[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.lines[key] = append(r.lines[key], line)
}

// Keys returns the keys in first-seen order.
func (r *MatchRecord) Keys() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.keys...)
}

// Lines returns the line numbers recorded for key, or nil.
func (r *MatchRecord) Lines(key string) []int {
	if r == nil {
		return nil
	}
	ls, ok := r.lines[key]
	if !ok {
		return nil
	}
	return append([]int(nil), ls...)
}

// Len returns the number of distinct keys.
func (r *MatchRecord) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Empty reports whether nothing was recorded.
func (r *MatchRecord) Empty() bool {
	return r.Len() == 0
}

// Equal reports whether both records hold the same (key, lines) pairs.
// Key order is ignored; line order is not.
func (r *MatchRecord) Equal(other *MatchRecord) bool {
	if r.Len() != other.Len() {
		return false
	}
	for _, k := range r.Keys() {
		a, b := r.lines[k], other.Lines(k)
		if b == nil || len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
	}
	return true
}

// matchEntry is the JSON form of one key. A list keeps key order intact,
// which a JSON object would not.
type matchEntry struct {
	Key   string `json:"key"`
	Lines []int  `json:"lines"`
}

// MarshalJSON encodes the record as an ordered list of {key, lines}.
func (r *MatchRecord) MarshalJSON() ([]byte, error) {
	entries := make([]matchEntry, 0, r.Len())
	for _, k := range r.Keys() {
		entries = append(entries, matchEntry{Key: k, Lines: r.lines[k]})
	}
	return json.Marshal(entries)
}

// UnmarshalJSON decodes the list form written by MarshalJSON.
func (r *MatchRecord) UnmarshalJSON(data []byte) error {
	var entries []matchEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	r.keys = nil
	r.lines = make(map[string][]int, len(entries))
	for _, e := range entries {
		for _, ln := range e.Lines {
			r.Add(e.Key, ln)
		}
	}
	return nil
}

// ScanResult is the matcher's verdict for one file.
type ScanResult struct {
	HasMatch bool
	Matches  *MatchRecord
}

// FileMatches pairs a file path with its non-empty MatchRecord.
type FileMatches struct {
	Path    string       `json:"path"`
	Matches *MatchRecord `json:"matches"`
}

// FileScanOutcome collects MatchRecords for the files that matched, in the
// order they were added. Re-adding a path replaces its record in place.
type FileScanOutcome struct {
	files []FileMatches
	index map[string]int
}

// NewFileScanOutcome returns an empty outcome.
func NewFileScanOutcome() *FileScanOutcome {
	return &FileScanOutcome{index: make(map[string]int)}
}

// Set stores rec for path. Empty records are not stored; setting one removes
// any previous entry for path.
func (o *FileScanOutcome) Set(path string, rec *MatchRecord) {
	if rec.Empty() {
		o.Remove(path)
		return
	}
	if i, ok := o.index[path]; ok {
		o.files[i].Matches = rec
		return
	}
	o.index[path] = len(o.files)
	o.files = append(o.files, FileMatches{Path: path, Matches: rec})
}

// Remove drops path from the outcome. Missing paths are ignored.
func (o *FileScanOutcome) Remove(path string) {
	i, ok := o.index[path]
	if !ok {
		return
	}
	o.files = append(o.files[:i], o.files[i+1:]...)
	delete(o.index, path)
	for j := i; j < len(o.files); j++ {
		o.index[o.files[j].Path] = j
	}
}

// Get returns the record stored for path.
func (o *FileScanOutcome) Get(path string) (*MatchRecord, bool) {
	i, ok := o.index[path]
	if !ok {
		return nil, false
	}
	return o.files[i].Matches, true
}

// Files returns the stored entries in insertion order.
func (o *FileScanOutcome) Files() []FileMatches {
	return append([]FileMatches(nil), o.files...)
}

// Len returns the number of matching files.
func (o *FileScanOutcome) Len() int {
	return len(o.files)
}

// MarshalJSON encodes the outcome as an ordered list of files.
func (o *FileScanOutcome) MarshalJSON() ([]byte, error) {
	files := o.files
	if files == nil {
		files = []FileMatches{}
	}
	return json.Marshal(files)
}
