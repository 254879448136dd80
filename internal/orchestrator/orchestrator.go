package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rancher/git-state-api/internal/git"
	"github.com/rancher/git-state-api/internal/outcome"
	"github.com/rancher/git-state-api/internal/repolock"
	"github.com/rancher/git-state-api/internal/repostate"
)

// ErrInvalidRequest marks caller input rejected before any git command runs.
var ErrInvalidRequest = errors.New("invalid request")

// Orchestrator sequences repository operations through the git executor,
// classifies what happened and reports a typed Outcome. Domain failures are
// always returned as failed Outcomes; the error return carries infrastructure
// failures only.
type Orchestrator struct {
	cfg   Config
	git   git.Executor
	state *repostate.Reader
	locks *repolock.Locker
	log   *slog.Logger
}

// New returns a configured Orchestrator instance. A nil locker gets a private
// lock table.
func New(cfg Config, gitExecutor git.Executor, locks *repolock.Locker, logger *slog.Logger) *Orchestrator {
	if locks == nil {
		locks = repolock.New("")
	}
	return &Orchestrator{
		cfg:   cfg,
		git:   gitExecutor,
		state: repostate.NewReader(gitExecutor),
		locks: locks,
		log:   logger,
	}
}

// withRepo runs fn while holding the repository's exclusive lock.
func (o *Orchestrator) withRepo(ctx context.Context, op Operation, repoPath string, fn func(context.Context) (Outcome, error)) (Outcome, error) {
	if o.git == nil {
		return Outcome{}, fmt.Errorf("git executor is required")
	}

	lockCtx, cancel := ctx, context.CancelFunc(func() {})
	if o.cfg.LockTimeout > 0 {
		lockCtx, cancel = context.WithTimeout(ctx, o.cfg.LockTimeout)
	}
	release, err := o.locks.Lock(lockCtx, repoPath)
	cancel()
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: acquire repository lock: %w", op, err)
	}
	defer release()

	start := time.Now()
	result, err := fn(ctx)
	if err != nil {
		if o.log != nil {
			o.log.Error("repository operation failed", "operation", op, "path", repoPath, "error", err)
		}
		return Outcome{}, fmt.Errorf("%s: %w", op, err)
	}

	if o.log != nil {
		switch {
		case result.Failed():
			o.log.Warn("repository operation refused", "operation", op, "path", repoPath, "error_code", result.ErrorCode, "message", result.Message, "duration", time.Since(start))
		case op == OpStatus || op == OpBranches:
			o.log.Debug("repository read", "operation", op, "path", repoPath, "duration", time.Since(start))
		case result.Status != nil:
			o.log.Info("repository operation completed", "operation", op, "path", repoPath, "state", StateOf(*result.Status), "duration", time.Since(start))
		default:
			o.log.Info("repository operation completed", "operation", op, "path", repoPath, "duration", time.Since(start))
		}
	}
	return result, nil
}

// run executes one git command and classifies its result as cmd.
func (o *Orchestrator) run(ctx context.Context, repoPath string, cmd outcome.Command, args ...string) (git.Result, outcome.Kind, error) {
	res, err := o.git.Run(ctx, repoPath, args...)
	if err != nil {
		return res, "", err
	}
	kind := outcome.ClassifyResult(cmd, res)
	if o.log != nil {
		o.log.Debug("git command finished", "path", repoPath, "command", res.Command(), "exit_code", res.ExitCode, "outcome", kind)
	}
	return res, kind, nil
}

// read returns a fresh snapshot. A repository git cannot describe yields a
// failed Outcome rather than an error.
func (o *Orchestrator) read(ctx context.Context, repoPath string) (repostate.Snapshot, *Outcome, error) {
	snap, err := o.state.Read(ctx, repoPath)
	if err != nil {
		if out, ok := readFailure(err); ok {
			return repostate.Snapshot{}, &out, nil
		}
		return repostate.Snapshot{}, nil, fmt.Errorf("read repository state: %w", err)
	}
	return snap, nil, nil
}

// guarded reads the current snapshot and refuses op when it is incompatible
// with the in-progress state found on disk.
func (o *Orchestrator) guarded(ctx context.Context, repoPath string, op Operation) (repostate.Snapshot, *Outcome, error) {
	snap, refusal, err := o.read(ctx, repoPath)
	if err != nil || refusal != nil {
		return snap, refusal, err
	}

	state := StateOf(snap)
	if !Allowed(state, op) {
		out := failed(ErrorAlreadyInProgress, fmt.Sprintf("cannot %s while the repository is %s", op, describeState(state)))
		return snap, &out, nil
	}
	return snap, nil, nil
}

// settle turns a classified command result into the operation outcome,
// re-reading the repository on success.
func (o *Orchestrator) settle(ctx context.Context, repoPath string, res git.Result, kind outcome.Kind) (Outcome, error) {
	if kind != outcome.Success {
		return failed(codeFor(kind), diagnostic(res)), nil
	}
	return o.snapshot(ctx, repoPath)
}

func (o *Orchestrator) snapshot(ctx context.Context, repoPath string) (Outcome, error) {
	snap, refusal, err := o.read(ctx, repoPath)
	if err != nil {
		return Outcome{}, err
	}
	if refusal != nil {
		return *refusal, nil
	}
	return succeeded(snap), nil
}

// unresolved returns the files among candidates that still carry conflict
// entries or, when scanContent is set, complete conflict marker blocks.
func (o *Orchestrator) unresolved(repoPath string, snap repostate.Snapshot, candidates []string, scanContent bool) ([]string, error) {
	var remaining []string
	for _, file := range candidates {
		if snap.Files[file].Conflict {
			remaining = append(remaining, file)
			continue
		}
		if !scanContent || snap.Files[file].Removed {
			continue
		}
		found, err := repostate.FileHasConflictMarkers(repoPath, file)
		if err != nil {
			return nil, err
		}
		if found {
			remaining = append(remaining, file)
		}
	}
	return remaining, nil
}

func isStateError(err error) bool {
	return errors.Is(err, repostate.ErrNotRepository) ||
		errors.Is(err, repostate.ErrNotTopLevel) ||
		errors.Is(err, repostate.ErrUnreadable)
}

func describeState(state State) string {
	switch state {
	case StateMerging:
		return "in the middle of a merge"
	case StateRebasing:
		return "in the middle of a rebase"
	default:
		return "clean"
	}
}

func diagnostic(res git.Result) string {
	if out := res.Output(); out != "" {
		return out
	}
	return fmt.Sprintf("git %s exited with status %d", res.Command(), res.ExitCode)
}

// cleanFiles normalizes caller supplied repository-relative paths, dropping
// duplicates while preserving order.
func cleanFiles(files []string) ([]string, error) {
	cleaned := make([]string, 0, len(files))
	seen := make(map[string]struct{}, len(files))

	for _, file := range files {
		trimmed := strings.TrimSpace(file)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: file path cannot be empty", ErrInvalidRequest)
		}
		if filepath.IsAbs(trimmed) || path.IsAbs(filepath.ToSlash(trimmed)) {
			return nil, fmt.Errorf("%w: file path %q must be relative to the repository", ErrInvalidRequest, file)
		}

		normalized := path.Clean(filepath.ToSlash(trimmed))
		if normalized == "." || normalized == ".." || strings.HasPrefix(normalized, "../") {
			return nil, fmt.Errorf("%w: file path %q escapes the repository", ErrInvalidRequest, file)
		}

		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		cleaned = append(cleaned, normalized)
	}

	return cleaned, nil
}
