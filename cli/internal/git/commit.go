// Package git (commit.go) records the chosen message as a new commit.
package git

import (
	"context"
	"io"
	"os"
	"os/exec"

	"aicommit/cli/internal/erruser"
)

// Repo is the VCS adapter bound to one repository root. Stdout and Stderr
// receive the output of "git commit" (hooks included); nil discards it.
type Repo struct {
	Root   string
	Stdout io.Writer
	Stderr io.Writer
}

// NewRepo returns a Repo for root that forwards commit output to the terminal.
func NewRepo(root string) *Repo {
	return &Repo{Root: root, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Context gathers the staged diff, staged files and up to recentCount recent
// commit subjects (recentCount <= 0 skips history).
func (r *Repo) Context(ctx context.Context, recentCount int) (RepositoryContext, error) {
	diff, err := StagedDiff(ctx, r.Root)
	if err != nil {
		return RepositoryContext{}, err
	}
	files, err := StagedFiles(ctx, r.Root)
	if err != nil {
		return RepositoryContext{}, err
	}
	recent, err := RecentCommitSubjects(ctx, r.Root, recentCount)
	if err != nil {
		return RepositoryContext{}, err
	}
	return RepositoryContext{Diff: diff, StagedFiles: files, RecentCommitSubjects: recent}, nil
}

// Commit runs "git commit -m message". The full process environment is kept
// so hooks and commit signing behave as they do for a manual commit.
func (r *Repo) Commit(ctx context.Context, message string) error {
	if message == "" {
		return erruser.New("Refusing to commit with an empty message.", nil)
	}
	cmd := exec.CommandContext(ctx, "git", "commit", "-m", message)
	cmd.Dir = r.Root
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if err := cmd.Run(); err != nil {
		return erruser.New("git commit failed.", err)
	}
	return nil
}
