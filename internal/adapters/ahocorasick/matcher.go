// Package ahocorasick provides multi-pattern string matching using an Aho-Corasick automaton.
// It wraps the petar-dambovaliev/aho-corasick library for O(n + m + z) matching.
package ahocorasick

import (
	aho "github.com/petar-dambovaliev/aho-corasick"
)

// TextMatch represents a match from the TextScanner with byte offsets.
type TextMatch struct {
	PatternIndex int // index into the original patterns slice
	Start        int // byte offset start (inclusive)
	End          int // byte offset end (exclusive)
}

// TextScanner wraps an Aho-Corasick automaton over a fixed pattern list.
// It is immutable after construction and safe for concurrent use.
type TextScanner struct {
	automaton aho.AhoCorasick
	patterns  []string
}

// NewTextScanner builds a text scanner from the given patterns.
// Patterns must be non-empty strings; duplicates are allowed but redundant.
func NewTextScanner(patterns []string) *TextScanner {
	p := make([]string, len(patterns))
	copy(p, patterns)
	s := &TextScanner{patterns: p}
	if len(p) == 0 {
		return s
	}
	builder := aho.NewAhoCorasickBuilder(aho.Opts{
		DFA: true,
	})
	s.automaton = builder.Build(p)
	return s
}

// Scan finds all pattern matches in content, overlapping ones included,
// and returns them with byte offsets.
func (s *TextScanner) Scan(content []byte) []TextMatch {
	if len(s.patterns) == 0 || len(content) == 0 {
		return nil
	}
	iter := s.automaton.IterOverlappingByte(content)
	var matches []TextMatch
	for next := iter.Next(); next != nil; next = iter.Next() {
		m := *next
		matches = append(matches, TextMatch{
			PatternIndex: m.Pattern(),
			Start:        m.Start(),
			End:          m.End(),
		})
	}
	return matches
}

// Contains returns every pattern that occurs in line at least once, in
// pattern order. Overlapping occurrences count, so both "-t" and "--threads"
// are reported for "--threads".
func (s *TextScanner) Contains(line string) []string {
	matches := s.Scan([]byte(line))
	if len(matches) == 0 {
		return nil
	}

	seen := make([]bool, len(s.patterns))
	found := 0
	for _, m := range matches {
		if m.PatternIndex < 0 || m.PatternIndex >= len(seen) || seen[m.PatternIndex] {
			continue
		}
		seen[m.PatternIndex] = true
		found++
	}

	result := make([]string, 0, found)
	for i, ok := range seen {
		if ok {
			result = append(result, s.patterns[i])
		}
	}
	return result
}

// PatternCount returns the number of patterns in the automaton.
func (s *TextScanner) PatternCount() int {
	return len(s.patterns)
}

// Pattern returns the pattern string at the given index.
func (s *TextScanner) Pattern(idx int) string {
	if idx < 0 || idx >= len(s.patterns) {
		return ""
	}
	return s.patterns[idx]
}
