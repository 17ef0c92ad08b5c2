package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// WriteMarkdown writes one table of keys and lines per matching file.
func WriteMarkdown(w io.Writer, r Report) error {
	var b strings.Builder
	b.WriteString("# Threading scan results\n\n")
	if run := r.Run; run != nil {
		fmt.Fprintf(&b, "- Root: %s\n", escapeMarkdown(run.Root))
		fmt.Fprintf(&b, "- Run: %s\n", run.ID)
		if !run.FinishedAt.IsZero() {
			fmt.Fprintf(&b, "- Finished: %s\n", run.FinishedAt.Format(time.RFC3339))
		}
		fmt.Fprintf(&b, "- Files scanned: %d, matched: %d, failed: %d\n\n",
			run.FilesScanned, run.FilesMatched, run.FilesFailed)
	}

	files := r.files()
	if len(files) == 0 {
		b.WriteString(NoMatchesSentence + "\n")
		_, err := io.WriteString(w, b.String())
		return err
	}
	for _, fm := range files {
		fmt.Fprintf(&b, "## %s\n\n", escapeMarkdown(fm.Path))
		b.WriteString("| Match | Line(s) |\n")
		b.WriteString("|---|---|\n")
		for _, key := range fm.Matches.Keys() {
			fmt.Fprintf(&b, "| %s | %s |\n", escapeMarkdown(key), JoinLines(fm.Matches.Lines(key)))
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteHTML renders the markdown report to a standalone HTML page.
func WriteHTML(w io.Writer, r Report) error {
	var src bytes.Buffer
	if err := WriteMarkdown(&src, r); err != nil {
		return err
	}
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var body bytes.Buffer
	if err := md.Convert(src.Bytes(), &body); err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	_, err := fmt.Fprintf(w, htmlPage, body.String())
	return err
}

const htmlPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Threading scan results</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
td:first-child { font-family: monospace; }
</style>
</head>
<body>
%s</body>
</html>
`

// escapeMarkdown backslash-escapes ASCII punctuation so keys such as
// "#include <pthread.h>" or "a|b" render literally, including inside tables.
func escapeMarkdown(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 0x80 && strings.ContainsRune("\\`*_{}[]()<>#+-.!|~&\"'$%,/:;=?@^", r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
