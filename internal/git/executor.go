package git

import (
	"context"
	"strings"
)

// Executor runs the git binary against a repository. A non-zero exit status is
// reported through Result and is not an error; the returned error is reserved
// for infrastructure failures such as a binary that cannot be spawned or a
// command that exceeded its time budget.
type Executor interface {
	Run(ctx context.Context, repoPath string, args ...string) (Result, error)
}

// Result is the raw outcome of a single git invocation.
type Result struct {
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
}

// Succeeded reports whether git exited with status zero.
func (r Result) Succeeded() bool {
	return r.ExitCode == 0
}

// Output returns stdout and stderr joined, trimmed of surrounding whitespace.
func (r Result) Output() string {
	out := strings.TrimSpace(r.Stdout)
	errOut := strings.TrimSpace(r.Stderr)
	switch {
	case out == "":
		return errOut
	case errOut == "":
		return out
	default:
		return out + "\n" + errOut
	}
}

// Command returns the git subcommand of the invocation, skipping global options.
func (r Result) Command() string {
	return primaryGitCommand(r.Args)
}
