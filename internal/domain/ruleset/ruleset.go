// Package ruleset loads and validates the literal, regex and indicator tables
// the matcher runs against. Tables are plain YAML documents; a RuleSet is
// immutable once built and safe to share across goroutines.
package ruleset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/corey/threadscan/rules"
	"github.com/spaolacci/murmur3"
	"gopkg.in/yaml.v3"
)

// ErrEmptyRule is returned when a table contains an empty string.
var ErrEmptyRule = errors.New("empty rule")

// Category identifies one of the three rule tables.
type Category int

const (
	CategoryLiteral   Category = 0
	CategoryPattern   Category = 1
	CategoryIndicator Category = 2
)

// String returns the YAML key for the category.
func (c Category) String() string {
	switch c {
	case CategoryLiteral:
		return "literals"
	case CategoryPattern:
		return "patterns"
	case CategoryIndicator:
		return "indicators"
	default:
		return "unknown"
	}
}

// yamlTable is the YAML-serialized form of one rules file.
type yamlTable struct {
	Literals   []string `yaml:"literals,omitempty"`
	Patterns   []string `yaml:"patterns,omitempty"`
	Indicators []string `yaml:"indicators,omitempty"`
}

// Pattern is a compiled regex rule. Source keeps the text it was compiled from.
type Pattern struct {
	Source string
	Re     *regexp.Regexp
}

// RuleSet holds the three rule tables. Entries are unique within a table and
// keep the order they were first declared in.
type RuleSet struct {
	literals   []string
	patterns   []Pattern
	indicators []string
}

// New builds a RuleSet from raw tables, compiling patterns and collapsing
// duplicate entries.
func New(literals, patterns, indicators []string) (*RuleSet, error) {
	rs := &RuleSet{}
	if err := rs.add(yamlTable{Literals: literals, Patterns: patterns, Indicators: indicators}); err != nil {
		return nil, err
	}
	return rs, nil
}

// Default returns the embedded default rule tables.
// Panics if the embedded data is invalid, which is caught by the package tests.
func Default() *RuleSet {
	rs, err := LoadFromFS(rules.FS, ".")
	if err != nil {
		panic(fmt.Sprintf("ruleset: embedded rules invalid: %v", err))
	}
	return rs
}

// LoadFromFS loads every .yaml file in dir and merges them into one RuleSet.
// Files are read in lexical order so the result is deterministic.
func LoadFromFS(fsys fs.FS, dir string) (*RuleSet, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read rules dir %q: %w", dir, err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	rs := &RuleSet{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		path := entry.Name()
		if dir != "." && dir != "" {
			path = dir + "/" + entry.Name()
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		table, err := parseTable(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if err := rs.add(table); err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
	}
	return rs, nil
}

// LoadFile loads a single rules file from disk.
func LoadFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// Parse builds a RuleSet from one YAML document.
func Parse(data []byte) (*RuleSet, error) {
	table, err := parseTable(data)
	if err != nil {
		return nil, err
	}
	rs := &RuleSet{}
	if err := rs.add(table); err != nil {
		return nil, err
	}
	return rs, nil
}

// parseTable decodes one table. Unknown keys are errors so a misspelled
// category cannot load as an empty table.
func parseTable(data []byte) (yamlTable, error) {
	var table yamlTable
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&table); err != nil && !errors.Is(err, io.EOF) {
		return yamlTable{}, err
	}
	return table, nil
}

// add appends a table's entries, skipping ones already present.
func (rs *RuleSet) add(t yamlTable) error {
	for _, lit := range t.Literals {
		if lit == "" {
			return fmt.Errorf("%s: %w", CategoryLiteral, ErrEmptyRule)
		}
		if !containsString(rs.literals, lit) {
			rs.literals = append(rs.literals, lit)
		}
	}
	for _, src := range t.Patterns {
		if src == "" {
			return fmt.Errorf("%s: %w", CategoryPattern, ErrEmptyRule)
		}
		if rs.hasPattern(src) {
			continue
		}
		re, err := regexp.Compile(src)
		if err != nil {
			return fmt.Errorf("pattern %q: %w", src, err)
		}
		rs.patterns = append(rs.patterns, Pattern{Source: src, Re: re})
	}
	for _, ind := range t.Indicators {
		if ind == "" {
			return fmt.Errorf("%s: %w", CategoryIndicator, ErrEmptyRule)
		}
		if !containsString(rs.indicators, ind) {
			rs.indicators = append(rs.indicators, ind)
		}
	}
	return nil
}

func (rs *RuleSet) hasPattern(src string) bool {
	for _, p := range rs.patterns {
		if p.Source == src {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Merge returns a new RuleSet holding rs's entries followed by other's.
// Neither input is modified.
func (rs *RuleSet) Merge(other *RuleSet) *RuleSet {
	out := &RuleSet{
		literals:   append([]string(nil), rs.literals...),
		patterns:   append([]Pattern(nil), rs.patterns...),
		indicators: append([]string(nil), rs.indicators...),
	}
	if other == nil {
		return out
	}
	for _, lit := range other.literals {
		if !containsString(out.literals, lit) {
			out.literals = append(out.literals, lit)
		}
	}
	for _, p := range other.patterns {
		if !out.hasPattern(p.Source) {
			out.patterns = append(out.patterns, p)
		}
	}
	for _, ind := range other.indicators {
		if !containsString(out.indicators, ind) {
			out.indicators = append(out.indicators, ind)
		}
	}
	return out
}

// Literals returns a copy of the literal keyword table.
func (rs *RuleSet) Literals() []string {
	return append([]string(nil), rs.literals...)
}

// Patterns returns a copy of the compiled regex table.
func (rs *RuleSet) Patterns() []Pattern {
	return append([]Pattern(nil), rs.patterns...)
}

// Indicators returns a copy of the indicator phrase table.
func (rs *RuleSet) Indicators() []string {
	return append([]string(nil), rs.indicators...)
}

// Count returns the number of rules in a category.
func (rs *RuleSet) Count(c Category) int {
	switch c {
	case CategoryLiteral:
		return len(rs.literals)
	case CategoryPattern:
		return len(rs.patterns)
	case CategoryIndicator:
		return len(rs.indicators)
	default:
		return 0
	}
}

// Fingerprint hashes the rule tables independent of declaration order.
// Two RuleSets with the same entries produce the same value.
func (rs *RuleSet) Fingerprint() uint64 {
	var sb strings.Builder
	writeSorted := func(c Category, items []string) {
		sorted := append([]string(nil), items...)
		sort.Strings(sorted)
		sb.WriteString(c.String())
		sb.WriteByte(0)
		for _, s := range sorted {
			sb.WriteString(s)
			sb.WriteByte(0)
		}
	}
	sources := make([]string, len(rs.patterns))
	for i, p := range rs.patterns {
		sources[i] = p.Source
	}
	writeSorted(CategoryLiteral, rs.literals)
	writeSorted(CategoryPattern, sources)
	writeSorted(CategoryIndicator, rs.indicators)
	return murmur3.Sum64([]byte(sb.String()))
}
