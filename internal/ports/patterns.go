package ports

// LiteralScanner finds which of a fixed set of strings occur in a line using
// multi-pattern matching (Aho-Corasick). A single pass over the line finds
// every contained string regardless of how many strings are in the set.
// Matching is case-sensitive and unanchored.
type LiteralScanner interface {
	// Contains returns each pattern that occurs in line at least once, in
	// pattern declaration order. Returns nil if none occur.
	Contains(line string) []string
}
