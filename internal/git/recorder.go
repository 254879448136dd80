package git

import (
	"context"
	"sync"
)

// Recorder is an Executor that remembers every invocation before passing it
// to Next. With a nil Next it performs no git operations and reports success,
// which suits tests that only care about the command sequence.
type Recorder struct {
	Next Executor

	mu    sync.Mutex
	calls []Result
}

// NewRecorder wraps next. A nil next records without executing anything.
func NewRecorder(next Executor) *Recorder {
	return &Recorder{Next: next}
}

// Run records the invocation and delegates to Next.
func (r *Recorder) Run(ctx context.Context, repoPath string, args ...string) (Result, error) {
	var (
		res Result
		err error
	)
	if r.Next != nil {
		res, err = r.Next.Run(ctx, repoPath, args...)
	} else {
		res = Result{Args: append([]string(nil), args...)}
	}

	r.mu.Lock()
	r.calls = append(r.calls, Result{
		Args:     append([]string(nil), args...),
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
	})
	r.mu.Unlock()

	return res, err
}

// Calls returns a copy of the recorded invocations in order.
func (r *Recorder) Calls() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Result(nil), r.calls...)
}

// Commands returns the primary git command of each invocation, e.g. "stash"
// or "checkout".
func (r *Recorder) Commands() []string {
	calls := r.Calls()
	cmds := make([]string, 0, len(calls))
	for _, call := range calls {
		cmds = append(cmds, call.Command())
	}
	return cmds
}

// Reset forgets all recorded invocations.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}
