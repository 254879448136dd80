// Package repostate reads a repository's on-disk state (in-progress markers,
// index conflict entries and working tree changes) and turns it into a
// canonical Snapshot.
package repostate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rancher/git-state-api/internal/git"
)

var (
	// ErrNotRepository is returned when the path is not inside a git work tree.
	ErrNotRepository = errors.New("not a git repository")

	// ErrUnreadable is returned when git refuses to describe the repository
	// for any other reason.
	ErrUnreadable = errors.New("repository state unreadable")

	// ErrNotTopLevel is returned when the path lies inside a work tree but is
	// not its top-level directory.
	ErrNotTopLevel = errors.New("not the top level of the work tree")
)

// Reader derives Snapshots from disk. It has no side effects.
type Reader struct {
	exec git.Executor
}

// NewReader returns a Reader that queries git through exec.
func NewReader(exec git.Executor) *Reader {
	return &Reader{exec: exec}
}

// Markers are the in-progress indicators git leaves in its directory.
type Markers struct {
	GitDir   string
	InMerge  bool
	InRebase bool
}

// Read produces a fresh Snapshot for repoPath.
func (r *Reader) Read(ctx context.Context, repoPath string) (Snapshot, error) {
	markers, err := r.Markers(ctx, repoPath)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		InMerge:  markers.InMerge,
		InRebase: markers.InRebase,
	}

	if snap.InMerge {
		msg, err := readMergeMessage(markers.GitDir)
		if err != nil {
			return Snapshot{}, err
		}
		snap.CommitMessage = msg
	}

	res, err := r.exec.Run(ctx, repoPath, "status", "--porcelain=v1", "-z", "--untracked-files=all")
	if err != nil {
		return Snapshot{}, err
	}
	if !res.Succeeded() {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrUnreadable, res.Output())
	}

	snap.Files = ParsePorcelain(res.Stdout)
	return snap, nil
}

// Markers locates the git directory and reports which operation, if any, is
// in progress. Merge and rebase are mutually exclusive; a rebase marker wins
// because a rebase may record intermediate merges of its own.
func (r *Reader) Markers(ctx context.Context, repoPath string) (Markers, error) {
	gitDir, err := r.gitDir(ctx, repoPath)
	if err != nil {
		return Markers{}, err
	}

	m := Markers{GitDir: gitDir}

	switch {
	case isDir(filepath.Join(gitDir, "rebase-merge")):
		m.InRebase = true
	case isDir(filepath.Join(gitDir, "rebase-apply")) && !exists(filepath.Join(gitDir, "rebase-apply", "applying")):
		m.InRebase = true
	case exists(filepath.Join(gitDir, "MERGE_HEAD")):
		m.InMerge = true
	}

	return m, nil
}

// Branches lists local branches and flags the checked out one.
func (r *Reader) Branches(ctx context.Context, repoPath string) ([]Branch, error) {
	if _, err := r.gitDir(ctx, repoPath); err != nil {
		return nil, err
	}

	res, err := r.exec.Run(ctx, repoPath, "for-each-ref", "--format=%(HEAD)%(refname:short)", "refs/heads")
	if err != nil {
		return nil, err
	}
	if !res.Succeeded() {
		return nil, fmt.Errorf("%w: %s", ErrUnreadable, res.Output())
	}

	branches := make([]Branch, 0)
	for _, line := range strings.Split(res.Stdout, "\n") {
		if len(line) < 2 {
			continue
		}
		branches = append(branches, Branch{Name: line[1:], Current: line[0] == '*'})
	}
	return branches, nil
}

// gitDir locates the git directory of repoPath, which must be the top level
// of its work tree.
func (r *Reader) gitDir(ctx context.Context, repoPath string) (string, error) {
	res, err := r.exec.Run(ctx, repoPath, "rev-parse", "--git-dir", "--show-toplevel")
	if err != nil {
		return "", err
	}
	if !res.Succeeded() {
		if strings.Contains(strings.ToLower(res.Output()), "not a git repository") {
			return "", fmt.Errorf("%w: %s", ErrNotRepository, repoPath)
		}
		return "", fmt.Errorf("%w: %s", ErrUnreadable, res.Output())
	}

	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	if len(lines) != 2 {
		return "", fmt.Errorf("%w: unexpected rev-parse output %q", ErrUnreadable, res.Stdout)
	}

	if top, want := realPath(lines[1]), realPath(repoPath); top != want {
		return "", fmt.Errorf("%w: %s is inside %s", ErrNotTopLevel, repoPath, lines[1])
	}

	dir := strings.TrimSpace(lines[0])
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(repoPath, dir)
	}
	return dir, nil
}

func realPath(path string) string {
	abs, err := filepath.Abs(strings.TrimSpace(path))
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// readMergeMessage returns MERGE_MSG without git's comment lines.
func readMergeMessage(gitDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(gitDir, "MERGE_MSG"))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read merge message: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(line, "#") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n")), nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
