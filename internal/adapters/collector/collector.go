// Package collector finds candidate source files under a root directory.
package collector

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExtensions is the extension set used when none is configured.
var DefaultExtensions = []string{".py", ".cpp", ".h", ".r", ".java", ".js", ".c", ".hpp"}

// Options controls which files Collect returns.
type Options struct {
	// Extensions are file-name suffixes to include, e.g. ".py". The test is a
	// case-sensitive suffix match on the base name. Empty means DefaultExtensions.
	Extensions []string
	// ExcludeDirs are directory base names or filepath.Match globs to skip.
	ExcludeDirs []string
}

// Result holds the collected files plus non-fatal walk errors.
type Result struct {
	// Files are absolute paths in lexical walk order.
	Files  []string
	Errors []error
}

// extensions returns the configured suffixes, each with a leading dot.
func (o Options) extensions() []string {
	exts := o.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

// Accepts reports whether a file path passes the extension filter.
func (o Options) Accepts(path string) bool {
	name := filepath.Base(path)
	for _, ext := range o.extensions() {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// SkipDir reports whether a directory with this base name is excluded.
func (o Options) SkipDir(name string) bool {
	for _, pat := range o.ExcludeDirs {
		if pat == name {
			return true
		}
		if matched, _ := filepath.Match(pat, name); matched {
			return true
		}
	}
	return false
}

// InExcludedDir reports whether any directory between root and path is excluded.
func (o Options) InExcludedDir(root, path string) bool {
	if len(o.ExcludeDirs) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == ".." {
			return false
		}
		if o.SkipDir(part) {
			return true
		}
	}
	return false
}

// Collect walks root recursively and returns matching files.
// Unreadable subdirectories are recorded in Result.Errors and skipped.
func Collect(root string, opts Options) (*Result, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", absRoot)
	}

	result := &Result{}
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("error accessing %s: %w", path, err))
			if d != nil && d.IsDir() && path != absRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != absRoot && opts.SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !opts.Accepts(path) {
			return nil
		}
		// A symlink to a directory is a directory entry: never collected, never followed.
		if d.Type()&fs.ModeSymlink != 0 {
			if target, err := os.Stat(path); err == nil && target.IsDir() {
				return nil
			}
		}
		result.Files = append(result.Files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	return result, nil
}
