package recon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"single no terminator", "abc", []string{"abc"}},
		{"trailing newline", "abc\n", []string{"abc"}},
		{"trailing unterminated line", "a\nb", []string{"a", "b"}},
		{"blank lines kept", "a\n\nb\n", []string{"a", "", "b"}},
		{"only newline", "\n", []string{""}},
		{"two newlines", "\n\n", []string{"", ""}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"lone cr", "a\rb", []string{"a", "b"}},
		{"cr then crlf", "a\r\r\nb", []string{"a", "", "b"}},
		{"vertical tab and form feed", "a\vb\fc", []string{"a", "b", "c"}},
		{"separators", "a\x1cb\x1dc\x1ed", []string{"a", "b", "c", "d"}},
		{"unicode boundaries", "a\u0085b\u2028c\u2029d", []string{"a", "b", "c", "d"}},
		{"tab is not a boundary", "a\tb", []string{"a\tb"}},
		{"multibyte text intact", "héllo\nwörld", []string{"héllo", "wörld"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitLines(tt.text))
		})
	}
}

func TestSplitLines_LineNumbersFollowBoundaries(t *testing.T) {
	rec := defaultMatcher(t).Scan("x\r\ny\rimport threading")
	assert.Equal(t, []int{3}, rec.Lines("import threading"))
}
