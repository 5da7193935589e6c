// Package git (repo.go) provides repository discovery and read access to the
// staged changes and history that feed commit message generation.
package git

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"aicommit/cli/internal/erruser"
)

// RepositoryContext is the snapshot of the working tree handed to the prompt
// builder. It is built once per invocation and treated as read-only.
type RepositoryContext struct {
	Diff                 string
	StagedFiles          []string
	RecentCommitSubjects []string // most recent first
}

// RepoRoot returns the absolute path of the git repository root containing dir.
// Runs "git rev-parse --show-toplevel" with Dir=dir. Returns error if dir is
// not inside a git repository.
func RepoRoot(dir string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = dir
	cmd.Env = minimalEnv()
	out, err := cmd.Output()
	if err != nil {
		return "", erruser.New("This directory is not inside a Git repository.", err)
	}
	root := strings.TrimSpace(string(out))
	return filepath.Abs(root)
}

// StagedDiff returns "git diff --staged" for repoRoot, trimmed. An empty
// string means nothing is staged.
func StagedDiff(ctx context.Context, repoRoot string) (string, error) {
	out, err := output(ctx, repoRoot, "diff", "--staged")
	if err != nil {
		return "", erruser.New("Could not read staged changes.", err)
	}
	return strings.TrimSpace(out), nil
}

// StagedFiles returns the staged paths in the order git lists them, or nil
// when nothing is staged.
func StagedFiles(ctx context.Context, repoRoot string) ([]string, error) {
	out, err := output(ctx, repoRoot, "diff", "--name-only", "--staged")
	if err != nil {
		return nil, erruser.New("Could not list staged files.", err)
	}
	return splitLines(out), nil
}

// RecentCommitSubjects returns up to n commit subjects, most recent first.
// A repository without commits yields an empty list, not an error.
func RecentCommitSubjects(ctx context.Context, repoRoot string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	if !hasHead(ctx, repoRoot) {
		return nil, nil
	}
	out, err := output(ctx, repoRoot, "log", "-n", strconv.Itoa(n), "--pretty=format:%s")
	if err != nil {
		return nil, erruser.New("Could not read recent commits.", err)
	}
	return splitLines(out), nil
}

func hasHead(ctx context.Context, repoRoot string) bool {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--verify", "--quiet", "HEAD")
	cmd.Dir = repoRoot
	cmd.Env = minimalEnv()
	return cmd.Run() == nil
}

func output(ctx context.Context, repoRoot string, args ...string) (string, error) {
	if repoRoot == "" {
		return "", fmt.Errorf("git %s: repo root required", args[0])
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoRoot
	cmd.Env = minimalEnv()
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return string(out), nil
}

func splitLines(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	result := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimRight(l, "\r")
		if l != "" {
			result = append(result, l)
		}
	}
	return result
}
