// Package minify squeezes whitespace out of unified-diff hunks so large
// changes fit a small model's context. Only languages whose meaning does not
// depend on indentation are eligible; see Supported.
package minify

import (
	"path/filepath"
	"regexp"
	"strings"
)

// hunkHeader matches @@ -oldStart,oldCount +newStart,newCount @@ (same as diff package).
var hunkHeaderRegex = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+\d+(?:,\d+)? @@`)

var braceLanguages = map[string]struct{}{
	".go": {}, ".rs": {}, ".c": {}, ".h": {}, ".cc": {}, ".cpp": {}, ".hpp": {},
	".java": {}, ".kt": {}, ".cs": {}, ".swift": {}, ".js": {}, ".jsx": {},
	".ts": {}, ".tsx": {}, ".php": {}, ".css": {}, ".json": {},
}

// Supported reports whether hunks of path may be minified. Python, YAML,
// Makefiles and Markdown are never eligible.
func Supported(path string) bool {
	_, ok := braceLanguages[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Hunk keeps the @@ header and each line's diff marker, trims the leading
// whitespace after the marker and collapses runs of blanks. Content whose
// first line is not a hunk header is returned unchanged.
func Hunk(content string) string {
	lines := strings.Split(content, "\n")
	if !hunkHeaderRegex.MatchString(lines[0]) {
		return content
	}
	out := make([]string, 0, len(lines))
	out = append(out, lines[0])
	for _, line := range lines[1:] {
		if line == "" {
			out = append(out, "")
			continue
		}
		rest := strings.TrimLeft(line[1:], " \t")
		out = append(out, line[:1]+collapseSpaces(rest))
	}
	return strings.Join(out, "\n")
}

// collapseSpaces replaces runs of spaces (and tabs) with a single space.
func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	wasSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
			continue
		}
		wasSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
