// Package report serializes a scan outcome into the report file. The text
// format is the stable contract; json, markdown and html are alternatives
// selected with --format.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/corey/threadscan/internal/filelock"
	"github.com/corey/threadscan/internal/ports"
)

// NoMatchesSentence is the whole text report when no file matched.
const NoMatchesSentence = "No threading-related flags found in the source files."

// Format selects the report encoding.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// Formats lists the supported formats in display order.
var Formats = []Format{FormatText, FormatJSON, FormatMarkdown, FormatHTML}

// FormatNames returns Formats as a comma-separated list for help and errors.
func FormatNames() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// ParseFormat accepts a format name or its file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unknown report format %q (want one of %s)", s, FormatNames())
}

// Ext returns the file extension for f, without the dot.
func (f Format) Ext() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMarkdown:
		return "md"
	case FormatHTML:
		return "html"
	default:
		return "txt"
	}
}

// Name returns the report file name for a scan of root:
// search_results_<basename>.<ext>. The filesystem root has an empty basename.
func Name(root string, f Format) string {
	base := filepath.Base(filepath.Clean(root))
	if base == string(filepath.Separator) || base == "." {
		base = ""
	}
	return "search_results_" + base + "." + f.Ext()
}

// OutputPath joins outDir and Name. An empty outDir means the working directory.
func OutputPath(outDir, root string, f Format) string {
	return filepath.Join(outDir, Name(root, f))
}

// Report is everything a writer needs. Run may be nil.
type Report struct {
	Run     *ports.RunSummary
	Outcome *ports.FileScanOutcome
}

func (r Report) files() []ports.FileMatches {
	if r.Outcome == nil {
		return nil
	}
	return r.Outcome.Files()
}

// Render encodes r in format f.
func Render(w io.Writer, f Format, r Report) error {
	switch f {
	case FormatText:
		return WriteText(w, r.files())
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatMarkdown:
		return WriteMarkdown(w, r)
	case FormatHTML:
		return WriteHTML(w, r)
	}
	return fmt.Errorf("unknown report format %q", f)
}

// Write renders r and replaces the file at path atomically, holding the
// output directory lock.
func Write(path string, f Format, r Report) error {
	var buf bytes.Buffer
	if err := Render(&buf, f, r); err != nil {
		return fmt.Errorf("render %s report: %w", f, err)
	}
	if err := filelock.WriteLocked(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// WriteText writes the plain-text report:
//
//	<path>:
//	  - <key>: Found on line(s) 3, 7
//	<blank line>
func WriteText(w io.Writer, files []ports.FileMatches) error {
	if len(files) == 0 {
		_, err := io.WriteString(w, NoMatchesSentence+"\n")
		return err
	}
	var b strings.Builder
	for _, fm := range files {
		b.WriteString(fm.Path)
		b.WriteString(":\n")
		for _, key := range fm.Matches.Keys() {
			b.WriteString("  - ")
			b.WriteString(key)
			b.WriteString(": Found on line(s) ")
			b.WriteString(JoinLines(fm.Matches.Lines(key)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// JoinLines formats line numbers as "1, 2, 2".
func JoinLines(lines []int) string {
	parts := make([]string, len(lines))
	for i, n := range lines {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}

type jsonReport struct {
	Run   *ports.RunSummary      `json:"run,omitempty"`
	Files *ports.FileScanOutcome `json:"files"`
}

// WriteJSON writes the run summary and the ordered file list as indented JSON.
func WriteJSON(w io.Writer, r Report) error {
	out := r.Outcome
	if out == nil {
		out = ports.NewFileScanOutcome()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{Run: r.Run, Files: out})
}
