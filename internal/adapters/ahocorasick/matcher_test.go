package ahocorasick

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Aho-Corasick TextScanner: multi-literal containment per line
// Expectation: every pattern contained in a line is reported once, including
// patterns that overlap or nest inside each other. Case-sensitive.
// =============================================================================

func TestTextScanner_SingleKeyword(t *testing.T) {
	s := NewTextScanner([]string{"goroutine"})
	assert.Equal(t, []string{"goroutine"}, s.Contains("spawn a goroutine here"))
}

func TestTextScanner_MultipleKeywords(t *testing.T) {
	s := NewTextScanner([]string{"mclapply", "makeCluster", "foreach"})
	got := s.Contains("cl <- makeCluster(4); foreach(i=1:3) mclapply(x, f)")
	assert.Equal(t, []string{"mclapply", "makeCluster", "foreach"}, got, "pattern order, not text order")
}

func TestTextScanner_OverlappingKeywords(t *testing.T) {
	s := NewTextScanner([]string{"-t", "--threads", "--threads-per-process", "-threads"})
	got := s.Contains("tool --threads-per-process 4")
	assert.ElementsMatch(t, []string{"-t", "--threads", "--threads-per-process", "-threads"}, got)
}

func TestTextScanner_RepeatedKeywordReportedOnce(t *testing.T) {
	s := NewTextScanner([]string{"Pool("})
	assert.Equal(t, []string{"Pool("}, s.Contains("Pool(1); Pool(2); Pool(3)"))
}

func TestTextScanner_NoMatch(t *testing.T) {
	s := NewTextScanner([]string{"pthread_create"})
	assert.Nil(t, s.Contains("hello world"))
	assert.Nil(t, s.Contains(""))
}

func TestTextScanner_CaseSensitive(t *testing.T) {
	s := NewTextScanner([]string{"OpenMP"})
	assert.Nil(t, s.Contains("openmp is lowercase here"))
	assert.Equal(t, []string{"OpenMP"}, s.Contains("uses OpenMP"))
}

func TestTextScanner_EmptyPatternSet(t *testing.T) {
	s := NewTextScanner(nil)
	assert.Equal(t, 0, s.PatternCount())
	assert.Nil(t, s.Contains("anything"))
	assert.Nil(t, s.Scan([]byte("anything")))
}

func TestTextScanner_ScanOffsets(t *testing.T) {
	s := NewTextScanner([]string{"omp", "parallel"})
	content := []byte("#pragma omp parallel")
	matches := s.Scan(content)
	require.Len(t, matches, 2)
	for _, m := range matches {
		assert.Equal(t, s.Pattern(m.PatternIndex), string(content[m.Start:m.End]))
	}
}

func TestTextScanner_Pattern(t *testing.T) {
	s := NewTextScanner([]string{"a", "b"})
	assert.Equal(t, 2, s.PatternCount())
	assert.Equal(t, "b", s.Pattern(1))
	assert.Equal(t, "", s.Pattern(-1))
	assert.Equal(t, "", s.Pattern(2))
}

func TestTextScanner_InputNotAliased(t *testing.T) {
	pats := []string{"alpha"}
	s := NewTextScanner(pats)
	pats[0] = "beta"
	assert.Equal(t, "alpha", s.Pattern(0))
}

func BenchmarkContains(b *testing.B) {
	words := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		words = append(words, strings.Repeat("k", i%7+2)+string(rune('a'+i%26)))
	}
	s := NewTextScanner(words)
	line := strings.Repeat("some ordinary source text with kkka in it ", 4)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Contains(line)
	}
}
