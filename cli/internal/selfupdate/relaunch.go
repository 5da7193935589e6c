package selfupdate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// Relaunch runs the updated target with args and the caller's stdio, marking
// the child with UpdatedEnv, and returns the child's exit code. The caller is
// expected to exit with that code.
func (u *Updater) Relaunch(ctx context.Context, args []string) (int, error) {
	target, err := u.TargetPath()
	if err != nil {
		return 1, err
	}
	cmd := exec.CommandContext(ctx, target, args...)
	cmd.Stdin = u.Stdin
	cmd.Stdout = u.Stdout
	cmd.Stderr = u.Stderr
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	cmd.Env = append(os.Environ(), UpdatedEnv+"=1")
	err = cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return 1, fmt.Errorf("relaunch %s: %w", target, err)
	}
	return 0, nil
}

// Relaunched reports whether env marks this process as started by Relaunch.
func Relaunched(env []string) bool {
	for _, kv := range env {
		if kv == UpdatedEnv+"=1" {
			return true
		}
	}
	return false
}
