// Package rules embeds the default threading/parallelism rule tables.
// This is a standalone package with no imports to avoid circular dependencies.
//
// Usage:
//
//	ruleset.LoadFromFS(rules.FS, ".")
package rules

import "embed"

//go:embed *.yaml
var FS embed.FS
