// Package recon scans source text for threading and parallelism markers.
// Every line is checked against three rule tables (literal keywords, regex
// patterns, indicator phrases) and each hit is recorded with its 1-based line
// number. There is no language awareness; a hit in a comment counts the same
// as a hit in code.
package recon

import (
	"regexp"

	"github.com/corey/threadscan/internal/adapters/ahocorasick"
	"github.com/corey/threadscan/internal/domain/ruleset"
	"github.com/corey/threadscan/internal/ports"
)

// Matcher applies a RuleSet to text. It holds no per-scan state and is safe
// for concurrent use by multiple goroutines.
type Matcher struct {
	literals   ports.LiteralScanner
	patterns   []*regexp.Regexp
	indicators ports.LiteralScanner
}

// NewMatcher compiles the literal and indicator tables into automata.
func NewMatcher(rs *ruleset.RuleSet) *Matcher {
	pats := rs.Patterns()
	res := make([]*regexp.Regexp, len(pats))
	for i, p := range pats {
		res[i] = p.Re
	}
	return &Matcher{
		literals:   ahocorasick.NewTextScanner(rs.Literals()),
		patterns:   res,
		indicators: ahocorasick.NewTextScanner(rs.Indicators()),
	}
}

// Scan returns every rule hit in text. The result is empty, never nil, when
// nothing matches.
//
// Within a line the literal pass runs first, then the regex pass, then the
// indicator pass; all three see the original line. A key produced more than
// once on a line (two regex matches with the same text, or a string that is
// both a literal and an indicator) gets the line number once per hit.
func (m *Matcher) Scan(text string) *ports.MatchRecord {
	rec := ports.NewMatchRecord()
	for i, line := range SplitLines(text) {
		m.scanLine(line, i+1, rec)
	}
	return rec
}

// Result wraps Scan with the has-match verdict.
func (m *Matcher) Result(text string) ports.ScanResult {
	rec := m.Scan(text)
	return ports.ScanResult{HasMatch: !rec.Empty(), Matches: rec}
}

func (m *Matcher) scanLine(line string, lineNum int, rec *ports.MatchRecord) {
	for _, kw := range m.LiteralHits(line) {
		rec.Add(kw, lineNum)
	}
	for _, s := range m.PatternHits(line) {
		rec.Add(s, lineNum)
	}
	for _, ind := range m.IndicatorHits(line) {
		rec.Add(ind, lineNum)
	}
}

// LiteralHits returns the literal keywords contained in line.
func (m *Matcher) LiteralHits(line string) []string {
	return m.literals.Contains(line)
}

// PatternHits returns the text of every non-overlapping regex match in line,
// pattern by pattern. Empty matches are dropped.
func (m *Matcher) PatternHits(line string) []string {
	var hits []string
	for _, re := range m.patterns {
		for _, s := range re.FindAllString(line, -1) {
			if s == "" {
				continue
			}
			hits = append(hits, s)
		}
	}
	return hits
}

// IndicatorHits returns the indicator phrases contained in line.
func (m *Matcher) IndicatorHits(line string) []string {
	return m.indicators.Contains(line)
}
