// Package gittest builds throwaway repositories for tests that need a real git
// binary.
package gittest

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// TB is the subset of testing.TB the helpers need; both *testing.T and
// GinkgoT() satisfy it.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
	TempDir() string
}

// NewRepo initializes an empty repository on branch master under t.TempDir.
func NewRepo(t TB) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "repo")
	Run(t, dir, "init")
	Run(t, dir, "symbolic-ref", "HEAD", "refs/heads/master")
	Run(t, dir, "config", "user.name", "Test User")
	Run(t, dir, "config", "user.email", "test@example.com")
	Run(t, dir, "config", "commit.gpgsign", "false")
	return dir
}

// Run executes git in dir and fails the test on a non-zero exit.
func Run(t TB, dir string, args ...string) string {
	t.Helper()
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir failed: %v", err)
		}
	}
	cmdArgs := args
	if dir != "" {
		cmdArgs = append([]string{"-C", dir}, args...)
	}
	cmd := exec.Command("git", cmdArgs...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "GIT_EDITOR=true", "LC_ALL=C")
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(cmdArgs, " "), err, string(output))
	}
	return string(output)
}

// WriteFile writes contents to path relative to the repository root.
func WriteFile(t TB, repo, file, contents string) {
	t.Helper()
	path := filepath.Join(repo, file)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write file failed: %v", err)
	}
}

// Commit stages file with the given contents and commits it.
func Commit(t TB, repo, file, contents, message string) {
	t.Helper()
	WriteFile(t, repo, file, contents)
	Run(t, repo, "add", "--", file)
	Run(t, repo, "commit", "-m", message)
}

// DivergedBranches builds the shape shared by the conflict scenarios: file is
// committed on master, branch is created from it, master and branch then
// change file differently. The repository is left on branch.
func DivergedBranches(t TB, repo, file, branch string) {
	t.Helper()
	Commit(t, repo, file, "base\n", "Commit 1")
	Run(t, repo, "branch", branch, "master")
	Commit(t, repo, file, "master change\n", "Commit 1")
	Run(t, repo, "checkout", branch)
	Commit(t, repo, file, "branch change\n", "Commit 1")
}

// CurrentBranch returns the checked out branch name.
func CurrentBranch(t TB, repo string) string {
	t.Helper()
	return strings.TrimSpace(Run(t, repo, "rev-parse", "--abbrev-ref", "HEAD"))
}
