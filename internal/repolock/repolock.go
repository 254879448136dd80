// Package repolock serializes operations per repository. Each canonical
// repository path owns its own lock; distinct repositories never contend.
package repolock

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const fileLockRetryDelay = 25 * time.Millisecond

// Locker is a keyed lock table. The zero value is not usable; call New.
type Locker struct {
	// LockDir, when set, adds a cross-process file lock per repository so
	// several servers sharing a host also serialize.
	LockDir string

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	// sem holds a token while the repository is locked.
	sem  chan struct{}
	refs int
}

// New returns an empty lock table.
func New(lockDir string) *Locker {
	return &Locker{LockDir: lockDir, entries: make(map[string]*entry)}
}

// Canonical resolves path to the key used for mutual exclusion: absolute,
// cleaned and with symlinks evaluated when the path exists. Keys are not
// mapped to their work tree; callers pass the top-level directory, and the
// state reader refuses any other path.
func Canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return filepath.Clean(abs)
}

// Lock blocks until repoPath is exclusively held or ctx is done. The returned
// release func must be called exactly once.
func (l *Locker) Lock(ctx context.Context, repoPath string) (func(), error) {
	key := Canonical(repoPath)
	e := l.acquireEntry(key)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.releaseEntry(key, e)
		return nil, fmt.Errorf("lock %s: %w", key, ctx.Err())
	}

	var fl *flock.Flock
	if l.LockDir != "" {
		var err error
		fl, err = l.lockFile(ctx, key)
		if err != nil {
			<-e.sem
			l.releaseEntry(key, e)
			return nil, err
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if fl != nil {
				_ = fl.Unlock()
			}
			<-e.sem
			l.releaseEntry(key, e)
		})
	}, nil
}

// Held reports how many callers currently hold or wait for repoPath.
func (l *Locker) Held(repoPath string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[Canonical(repoPath)]; ok {
		return e.refs
	}
	return 0
}

func (l *Locker) acquireEntry(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.entries == nil {
		l.entries = make(map[string]*entry)
	}
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *Locker) releaseEntry(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *Locker) lockFile(ctx context.Context, key string) (*flock.Flock, error) {
	if err := os.MkdirAll(l.LockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	sum := sha256.Sum256([]byte(key))
	fl := flock.New(filepath.Join(l.LockDir, fmt.Sprintf("repo-%x.lock", sum[:8])))

	locked, err := fl.TryLockContext(ctx, fileLockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("lock file for %s: %w", key, err)
	}
	if !locked {
		return nil, fmt.Errorf("lock file for %s: not acquired", key)
	}
	return fl, nil
}
