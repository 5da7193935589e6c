package diff

import (
	"bufio"
	"regexp"
	"strings"
)

// binaryMarker is the prefix git uses when a file is binary.
const binaryMarker = "Binary files "

// hunkHeader matches @@ -oldStart,oldCount +newStart,newCount @@ optional
var hunkHeaderRegex = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+\d+(?:,\d+)? @@`)

// File is one file's section of `git diff --cached` output.
type File struct {
	Path   string   // new-side path; old side for deletions
	Header []string // "diff --git", index, mode and ---/+++ lines
	Hunks  []string // each starts with its @@ line
	Binary bool
	Raw    string // the section exactly as git printed it
}

// Parse splits a unified diff into per-file sections. Empty input yields nil.
func Parse(diffOutput string) ([]File, error) {
	if strings.TrimSpace(diffOutput) == "" {
		return nil, nil
	}
	var files []File
	for _, section := range splitByFileSections(diffOutput) {
		if strings.TrimSpace(section) == "" {
			continue
		}
		f, err := parseFileSection(section)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// splitByFileSections splits diff output by "diff --git " so each section
// is one file's diff (or one binary notice).
func splitByFileSections(out string) []string {
	const prefix = "diff --git "
	var sections []string
	start := 0
	for {
		i := strings.Index(out[start:], prefix)
		if i < 0 {
			if start < len(out) && strings.TrimSpace(out[start:]) != "" {
				sections = append(sections, out[start:])
			}
			break
		}
		pos := start + i
		if pos > start && strings.TrimSpace(out[start:pos]) != "" {
			sections = append(sections, out[start:pos])
		}
		start = pos
		next := strings.Index(out[start+len(prefix):], prefix)
		if next < 0 {
			sections = append(sections, out[start:])
			break
		}
		sections = append(sections, out[start:start+len(prefix)+next])
		start = start + len(prefix) + next
	}
	return sections
}

func parseFileSection(section string) (File, error) {
	f := File{Raw: section}
	scanner := bufio.NewScanner(strings.NewReader(section))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var (
		pathA, pathB string
		current      []string
	)
	flush := func() {
		if len(current) > 0 {
			f.Hunks = append(f.Hunks, strings.Join(current, "\n"))
		}
		current = nil
	}
	for scanner.Scan() {
		line := scanner.Text()
		if current == nil {
			switch {
			case strings.HasPrefix(line, "diff --git "):
				pathA, pathB = parseDiffGitLine(line)
			case strings.HasPrefix(line, "--- "):
				if p := parsePathLine(line, "--- "); p != "/dev/null" {
					pathA = p
				}
			case strings.HasPrefix(line, "+++ "):
				if p := parsePathLine(line, "+++ "); p != "/dev/null" {
					pathB = p
				} else {
					pathB = ""
				}
			case strings.HasPrefix(line, binaryMarker):
				f.Binary = true
			}
			if !hunkHeaderRegex.MatchString(line) {
				f.Header = append(f.Header, line)
				continue
			}
		}
		if hunkHeaderRegex.MatchString(line) {
			flush()
			current = []string{line}
			continue
		}
		if line == "" || line[0] == ' ' || line[0] == '-' || line[0] == '+' || line[0] == '\\' {
			current = append(current, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return File{}, err
	}
	flush()
	f.Path = pathB
	if f.Path == "" {
		f.Path = pathA
	}
	return f, nil
}

func parseDiffGitLine(line string) (a, b string) {
	// "diff --git a/path b/path"
	parts := strings.Fields(strings.TrimPrefix(line, "diff --git "))
	if len(parts) >= 2 {
		a = trimDiffPath(parts[0])
		b = trimDiffPath(parts[1])
	}
	return a, b
}

func trimDiffPath(s string) string {
	if len(s) >= 2 && (s[0] == 'a' || s[0] == 'b') && s[1] == '/' {
		return s[2:]
	}
	return s
}

func parsePathLine(line, prefix string) string {
	s := strings.TrimPrefix(line, prefix)
	if idx := strings.Index(s, "\t"); idx >= 0 {
		s = s[:idx]
	}
	return trimDiffPath(s)
}
