// Package git reads repository state for the prompt through the git CLI.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single git invocation.
const DefaultTimeout = 2 * time.Second

// ErrNotRepository is returned when dir is not inside a work tree.
var ErrNotRepository = errors.New("not a git repository")

// Runner executes git commands against one directory.
type Runner struct {
	Dir     string
	Timeout time.Duration
}

// Output runs git -C dir args and returns stdout with surrounding
// whitespace removed.
func (r Runner) Output(args ...string) (string, error) {
	out, err := r.raw(args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (r Runner) raw(args ...string) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", r.Dir}, args...)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("git %s: %w", args[0], err)
		}
		return nil, fmt.Errorf("git %s: %s: %w", args[0], msg, err)
	}
	return out, nil
}

// Root returns the top of the work tree containing Dir.
func (r Runner) Root() (string, error) {
	root, err := r.Output("rev-parse", "--show-toplevel")
	if err != nil || root == "" {
		return "", fmt.Errorf("%w: %s", ErrNotRepository, r.Dir)
	}
	return root, nil
}

// CurrentBranch returns the branch HEAD points at. It fails on a detached
// HEAD.
func (r Runner) CurrentBranch() (string, error) {
	branch, err := r.Output("symbolic-ref", "--quiet", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}
	return branch, nil
}
