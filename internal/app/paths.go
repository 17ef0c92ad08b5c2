package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/corey/threadscan/internal/adapters/report"
)

// Paths holds the resolved filesystem locations for one scan.
// All fields are absolute and fixed at construction.
type Paths struct {
	Root      string // directory being scanned
	OutputDir string // directory receiving the report
	Report    string // OutputDir/search_results_<basename>.<ext>
	CacheDB   string // bbolt file; empty when the cache is off
}

// NewPaths resolves root, the output directory (empty = working directory)
// and the optional cache file against the working directory.
func NewPaths(root, outputDir string, format report.Format, cachePath string) (*Paths, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	if outputDir == "" {
		outputDir = "."
	}
	absOut, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}
	p := &Paths{
		Root:      absRoot,
		OutputDir: absOut,
		Report:    report.OutputPath(absOut, absRoot, format),
	}
	if cachePath != "" {
		if p.CacheDB, err = filepath.Abs(cachePath); err != nil {
			return nil, fmt.Errorf("resolve cache path: %w", err)
		}
	}
	return p, nil
}

// EnsureDirs creates the output directory and the cache directory. Idempotent.
func (p *Paths) EnsureDirs() error {
	dirs := []string{p.OutputDir}
	if p.CacheDB != "" {
		dirs = append(dirs, filepath.Dir(p.CacheDB))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}
