package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ShellExecutor shells out to the system git binary.
type ShellExecutor struct {
	// Git is the git binary to execute. Defaults to "git" when empty.
	Git string

	// UserName and UserEmail are passed as -c overrides so commits never depend
	// on the identity configured on the host or in the repository.
	UserName  string
	UserEmail string

	// CommandTimeout bounds every invocation that would otherwise inherit an
	// unbounded context. When zero, a default of 2 minutes is used.
	CommandTimeout time.Duration

	// Env holds extra KEY=VALUE pairs appended after the defaults.
	Env []string
}

// NewShellExecutor returns an Executor backed by system git commands.
func NewShellExecutor() *ShellExecutor {
	return &ShellExecutor{}
}

var defaultEnv = []string{
	"LC_ALL=C",
	"LANG=C",
	"GIT_TERMINAL_PROMPT=0",
	"GIT_EDITOR=true",
	"GIT_SEQUENCE_EDITOR=true",
	"GIT_MERGE_AUTOEDIT=no",
}

func (e *ShellExecutor) gitBinary() string {
	if e.Git == "" {
		return "git"
	}
	return e.Git
}

func (e *ShellExecutor) commandTimeoutValue() time.Duration {
	if e.CommandTimeout <= 0 {
		return 2 * time.Minute
	}
	return e.CommandTimeout
}

func (e *ShellExecutor) applyTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && !deadline.IsZero() {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.commandTimeoutValue())
}

func (e *ShellExecutor) globalArgs(repoPath string) []string {
	args := make([]string, 0, 6)
	if repoPath != "" {
		args = append(args, "-C", repoPath)
	}
	if e.UserName != "" {
		args = append(args, "-c", "user.name="+e.UserName)
	}
	if e.UserEmail != "" {
		args = append(args, "-c", "user.email="+e.UserEmail)
	}
	return args
}

// Run executes git with args inside repoPath.
func (e *ShellExecutor) Run(ctx context.Context, repoPath string, args ...string) (Result, error) {
	if len(args) == 0 {
		return Result{}, fmt.Errorf("no git arguments provided")
	}

	full := append(e.globalArgs(repoPath), args...)

	runCtx, cancel := e.applyTimeout(ctx)
	defer cancel()

	return e.runGitOnce(runCtx, full...)
}

func (e *ShellExecutor) runGitOnce(ctx context.Context, args ...string) (Result, error) {
	// #nosec G204 -- arguments are assembled by the orchestrator, never interpolated by a shell
	cmd := exec.CommandContext(ctx, e.gitBinary(), args...)
	setProcessGroup(cmd)
	cmd.Env = append(append(os.Environ(), defaultEnv...), e.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	res := Result{Args: args}

	if err := cmd.Start(); err != nil {
		return res, &GitError{Args: args, Err: err}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var waitErr error
	select {
	case <-ctx.Done():
		terminateProcessGroup(cmd)
		<-done
		return res, &GitError{Args: args, Output: combine(stdout.String(), stderr.String()), Err: ctx.Err()}
	case waitErr = <-done:
	}

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	if waitErr == nil {
		return res, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, &GitError{Args: args, Output: res.Output(), Err: ctxErr}
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) && exitErr.ExitCode() >= 0 {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}

	return res, &GitError{Args: args, Output: res.Output(), Err: waitErr}
}

func combine(stdout, stderr string) string {
	return Result{Stdout: stdout, Stderr: stderr}.Output()
}

func primaryGitCommand(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			if i+1 < len(args) {
				return args[i+1]
			}
			return ""
		}
		if strings.HasPrefix(arg, "-") {
			switch arg {
			case "-C", "--git-dir", "-c":
				i++
			}
			continue
		}
		return arg
	}
	return ""
}

// GitError wraps failures to run the git binary at all: the process could not
// be spawned, was killed, or exceeded its deadline.
type GitError struct {
	Args   []string
	Output string
	Err    error
}

func (e *GitError) Error() string {
	if e == nil {
		return ""
	}
	if e.Output == "" {
		return fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	}
	return fmt.Sprintf("git %s: %v\n%s", strings.Join(e.Args, " "), e.Err, e.Output)
}

func (e *GitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
