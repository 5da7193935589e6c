// Package diff reshapes a staged diff before it goes into a prompt. Compact
// keeps every file visible but drops the bodies of generated and lock files
// and squeezes whitespace in hunks of languages where indentation carries no
// meaning. The commit itself is always made from the index, never from this text.
package diff

import (
	"fmt"
	"path/filepath"
	"strings"

	"aicommit/cli/internal/minify"
)

// Options configures Compact.
type Options struct {
	// ExcludePatterns are filepath.Match patterns whose hunks are omitted.
	// Nil selects DefaultExcludePatterns. "dir/*" also matches nested paths.
	ExcludePatterns []string
	// Minify squeezes whitespace in hunks of supported languages.
	Minify bool
}

// Stats reports what Compact changed.
type Stats struct {
	Files    int
	Omitted  int // files whose hunks were replaced by a note
	Minified int // files whose hunks were whitespace-squeezed
}

// DefaultExcludePatterns name generated, vendored and lock files.
var DefaultExcludePatterns = []string{
	"*.pb.go",
	"*_generated.go",
	"*.min.js",
	"*.lock",
	"package-lock.json",
	"pnpm-lock.yaml",
	"go.sum",
	"vendor/*",
}

// Compact returns a smaller rendition of a staged diff for prompting.
func Compact(staged string, opts Options) (string, Stats, error) {
	files, err := Parse(staged)
	if err != nil {
		return "", Stats{}, fmt.Errorf("parse staged diff: %w", err)
	}
	patterns := opts.ExcludePatterns
	if patterns == nil {
		patterns = DefaultExcludePatterns
	}
	var (
		b  strings.Builder
		st Stats
	)
	for _, f := range files {
		st.Files++
		switch {
		case f.Binary || len(f.Hunks) == 0:
			b.WriteString(strings.TrimRight(f.Raw, "\n"))
		case excluded(f.Path, patterns):
			st.Omitted++
			b.WriteString(strings.Join(f.Header, "\n"))
			fmt.Fprintf(&b, "\n[%d hunks omitted: generated or lock file]", len(f.Hunks))
		default:
			squeeze := opts.Minify && minify.Supported(f.Path)
			if squeeze {
				st.Minified++
			}
			b.WriteString(strings.Join(f.Header, "\n"))
			for _, h := range f.Hunks {
				if squeeze {
					h = minify.Hunk(h)
				}
				b.WriteString("\n")
				b.WriteString(h)
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), st, nil
}

func excluded(path string, patterns []string) bool {
	path = filepath.ToSlash(path)
	for _, p := range patterns {
		if dir, ok := strings.CutSuffix(p, "/*"); ok && !strings.ContainsAny(dir, "*?[") {
			if path == dir || strings.HasPrefix(path, dir+"/") {
				return true
			}
			continue
		}
		if ok, err := filepath.Match(p, path); err == nil && ok {
			return true
		}
		if ok, _ := filepath.Match(p, filepath.Base(path)); ok {
			return true
		}
	}
	return false
}
