package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rancher/git-state-api/internal/outcome"
	"github.com/rancher/git-state-api/internal/refs"
	"github.com/rancher/git-state-api/internal/repostate"
)

const stashMessage = "git-state-api: carry local changes across checkout"

// Status returns a freshly derived snapshot of repoPath.
func (o *Orchestrator) Status(ctx context.Context, repoPath string) (Outcome, error) {
	if err := requirePath(repoPath); err != nil {
		return Outcome{}, err
	}
	return o.withRepo(ctx, OpStatus, repoPath, func(ctx context.Context) (Outcome, error) {
		return o.snapshot(ctx, repoPath)
	})
}

// Init creates an empty repository at repoPath, or reinitializes an existing
// one. A fresh repository starts on the configured initial branch.
func (o *Orchestrator) Init(ctx context.Context, repoPath string) (Outcome, error) {
	if err := requirePath(repoPath); err != nil {
		return Outcome{}, err
	}

	return o.withRepo(ctx, OpInit, repoPath, func(ctx context.Context) (Outcome, error) {
		res, kind, err := o.run(ctx, repoPath, outcome.Other, "init")
		if err != nil {
			return Outcome{}, err
		}
		if kind != outcome.Success {
			return failed(codeFor(kind), diagnostic(res)), nil
		}

		branch := refs.NormalizeBranch(o.cfg.InitialBranch)
		if branch == "" {
			return o.snapshot(ctx, repoPath)
		}

		head, err := o.git.Run(ctx, repoPath, "rev-parse", "--verify", "-q", "HEAD")
		if err != nil {
			return Outcome{}, err
		}
		if !head.Succeeded() {
			res, kind, err = o.run(ctx, repoPath, outcome.Other, "symbolic-ref", "HEAD", "refs/heads/"+branch)
			if err != nil {
				return Outcome{}, err
			}
			if kind != outcome.Success {
				return failed(codeFor(kind), diagnostic(res)), nil
			}
		}
		return o.snapshot(ctx, repoPath)
	})
}

// Commit stages files and records a commit. An empty file list stages every
// pending change. While a merge is in progress this concludes it, and an
// empty message falls back to the merge message git prepared.
func (o *Orchestrator) Commit(ctx context.Context, repoPath, message string, files []string) (Outcome, error) {
	if err := requirePath(repoPath); err != nil {
		return Outcome{}, err
	}
	cleaned, err := cleanFiles(files)
	if err != nil {
		return Outcome{}, err
	}
	message = strings.TrimSpace(message)

	return o.withRepo(ctx, OpCommit, repoPath, func(ctx context.Context) (Outcome, error) {
		snap, refusal, err := o.guarded(ctx, repoPath, OpCommit)
		if err != nil || refusal != nil {
			return deref(refusal), err
		}

		if message == "" {
			message = snap.CommitMessage
		}
		if message == "" {
			return failed(ErrorGenericFailure, "commit message cannot be empty"), nil
		}

		candidates := cleaned
		if len(candidates) == 0 {
			candidates = changedPaths(snap)
		}
		remaining, err := o.unresolved(repoPath, snap, candidates, snap.InMerge)
		if err != nil {
			return Outcome{}, err
		}
		if len(remaining) > 0 {
			return failed(ErrorUnresolvedConflict, fmt.Sprintf("conflicts remain in %s", strings.Join(remaining, ", "))), nil
		}

		addArgs := []string{"add", "-A"}
		if len(cleaned) > 0 {
			addArgs = append(append(addArgs, "--"), cleaned...)
		}
		res, kind, err := o.run(ctx, repoPath, outcome.Other, addArgs...)
		if err != nil {
			return Outcome{}, err
		}
		if kind != outcome.Success {
			return failed(codeFor(kind), diagnostic(res)), nil
		}

		res, kind, err = o.run(ctx, repoPath, outcome.Commit, "commit", "-m", message)
		if err != nil {
			return Outcome{}, err
		}
		return o.settle(ctx, repoPath, res, kind)
	})
}

// ListBranches reports the local branches of repoPath.
func (o *Orchestrator) ListBranches(ctx context.Context, repoPath string) (Outcome, error) {
	if err := requirePath(repoPath); err != nil {
		return Outcome{}, err
	}

	return o.withRepo(ctx, OpBranches, repoPath, func(ctx context.Context) (Outcome, error) {
		branches, err := o.state.Branches(ctx, repoPath)
		if err != nil {
			if refusal, ok := readFailure(err); ok {
				return refusal, nil
			}
			return Outcome{}, fmt.Errorf("list branches: %w", err)
		}
		return Outcome{Branches: branches}, nil
	})
}

// CreateBranch creates name at startPoint, or at HEAD when startPoint is
// empty. The current branch does not change.
func (o *Orchestrator) CreateBranch(ctx context.Context, repoPath, name, startPoint string) (Outcome, error) {
	if err := requirePath(repoPath); err != nil {
		return Outcome{}, err
	}
	branch, err := refs.Branch(name)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	args := []string{"branch", branch}
	if strings.TrimSpace(startPoint) != "" {
		start, err := refs.Revision(startPoint)
		if err != nil {
			return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		args = append(args, start)
	}

	return o.withRepo(ctx, OpCreateBranch, repoPath, func(ctx context.Context) (Outcome, error) {
		if _, refusal, err := o.guarded(ctx, repoPath, OpCreateBranch); err != nil || refusal != nil {
			return deref(refusal), err
		}

		res, kind, err := o.run(ctx, repoPath, outcome.Branch, args...)
		if err != nil {
			return Outcome{}, err
		}
		return o.settle(ctx, repoPath, res, kind)
	})
}

// Checkout switches the work tree to name. When local edits would be
// overwritten and CarryLocalChanges is set, the edits are stashed, the switch
// is made and the edits are re-applied on top of the target; edits that
// collide there are left as conflict entries and reported as ErrorConflict.
func (o *Orchestrator) Checkout(ctx context.Context, repoPath, name string) (Outcome, error) {
	if err := requirePath(repoPath); err != nil {
		return Outcome{}, err
	}
	rev, err := refs.Revision(name)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	return o.withRepo(ctx, OpCheckout, repoPath, func(ctx context.Context) (Outcome, error) {
		snap, refusal, err := o.guarded(ctx, repoPath, OpCheckout)
		if err != nil || refusal != nil {
			return deref(refusal), err
		}

		res, kind, err := o.run(ctx, repoPath, outcome.Checkout, "checkout", rev, "--")
		if err != nil {
			return Outcome{}, err
		}
		if kind != outcome.Conflict || !o.cfg.CarryLocalChanges || snap.HasConflicts() {
			return o.settle(ctx, repoPath, res, kind)
		}
		return o.carryCheckout(ctx, repoPath, rev, res.Output())
	})
}

func (o *Orchestrator) carryCheckout(ctx context.Context, repoPath, rev, refusal string) (Outcome, error) {
	stash, kind, err := o.run(ctx, repoPath, outcome.Other, "stash", "push", "--include-untracked", "-m", stashMessage)
	if err != nil {
		return Outcome{}, err
	}
	if kind != outcome.Success {
		return failed(ErrorConflict, refusal), nil
	}
	if strings.Contains(strings.ToLower(stash.Output()), "no local changes to save") {
		return failed(ErrorConflict, refusal), nil
	}
	stashed, err := o.stashTip(ctx, repoPath)
	if err != nil {
		return Outcome{}, err
	}

	if o.log != nil {
		o.log.Info("carrying local changes across checkout", "path", repoPath, "revision", rev)
	}

	res, kind, err := o.run(ctx, repoPath, outcome.Checkout, "checkout", rev, "--")
	if err != nil {
		return Outcome{}, err
	}
	if kind != outcome.Success {
		restore, restoreKind, err := o.run(ctx, repoPath, outcome.StashPop, "stash", "pop")
		if err != nil {
			return Outcome{}, err
		}
		if restoreKind != outcome.Success && o.log != nil {
			o.log.Warn("failed to restore stashed changes", "path", repoPath, "output", restore.Output())
		}
		return failed(codeFor(kind), diagnostic(res)), nil
	}

	pop, kind, err := o.run(ctx, repoPath, outcome.StashPop, "stash", "pop")
	if err != nil {
		return Outcome{}, err
	}
	if kind == outcome.Conflict {
		// git keeps the entry when the pop conflicts; its changes now live
		// in the work tree as conflict entries.
		if err := o.dropStash(ctx, repoPath, stashed); err != nil {
			return Outcome{}, err
		}
		return failed(ErrorConflict, refusal+"\n"+pop.Output()), nil
	}
	return o.settle(ctx, repoPath, pop, kind)
}

// stashTip returns the commit refs/stash points at, or "" when there is none.
func (o *Orchestrator) stashTip(ctx context.Context, repoPath string) (string, error) {
	res, _, err := o.run(ctx, repoPath, outcome.Other, "rev-parse", "-q", "--verify", "refs/stash")
	if err != nil {
		return "", err
	}
	if !res.Succeeded() {
		return "", nil
	}
	return strings.TrimSpace(res.Stdout), nil
}

// dropStash drops the top stash entry if it is still the one created for a
// carried checkout.
func (o *Orchestrator) dropStash(ctx context.Context, repoPath, stashed string) error {
	tip, err := o.stashTip(ctx, repoPath)
	if err != nil || tip == "" || tip != stashed {
		return err
	}
	res, kind, err := o.run(ctx, repoPath, outcome.Other, "stash", "drop", "-q")
	if err != nil {
		return err
	}
	if kind != outcome.Success && o.log != nil {
		o.log.Warn("failed to drop carried stash entry", "path", repoPath, "output", res.Output())
	}
	return nil
}

// Merge merges withRef into the current branch. A conflicting merge leaves
// the repository mid-merge and is reported as ErrorConflict.
func (o *Orchestrator) Merge(ctx context.Context, repoPath, withRef string) (Outcome, error) {
	if err := requirePath(repoPath); err != nil {
		return Outcome{}, err
	}
	rev, err := refs.Revision(withRef)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	return o.withRepo(ctx, OpMerge, repoPath, func(ctx context.Context) (Outcome, error) {
		if _, refusal, err := o.guarded(ctx, repoPath, OpMerge); err != nil || refusal != nil {
			return deref(refusal), err
		}

		res, kind, err := o.run(ctx, repoPath, outcome.Merge, "merge", "--no-edit", rev)
		if err != nil {
			return Outcome{}, err
		}
		return o.settle(ctx, repoPath, res, kind)
	})
}

// Rebase replays the current branch onto onto. A patch that does not apply
// leaves the repository mid-rebase and is reported as ErrorMergeFailed.
func (o *Orchestrator) Rebase(ctx context.Context, repoPath, onto string) (Outcome, error) {
	if err := requirePath(repoPath); err != nil {
		return Outcome{}, err
	}
	rev, err := refs.Revision(onto)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	return o.withRepo(ctx, OpRebase, repoPath, func(ctx context.Context) (Outcome, error) {
		if _, refusal, err := o.guarded(ctx, repoPath, OpRebase); err != nil || refusal != nil {
			return deref(refusal), err
		}

		res, kind, err := o.run(ctx, repoPath, outcome.Rebase, "rebase", rev)
		if err != nil {
			return Outcome{}, err
		}
		return o.settle(ctx, repoPath, res, kind)
	})
}

// RebaseContinue resumes an in-progress rebase once every conflict has been
// resolved. Another conflicting patch stops the rebase again with
// ErrorMergeFailed.
func (o *Orchestrator) RebaseContinue(ctx context.Context, repoPath string) (Outcome, error) {
	if err := requirePath(repoPath); err != nil {
		return Outcome{}, err
	}

	return o.withRepo(ctx, OpRebaseContinue, repoPath, func(ctx context.Context) (Outcome, error) {
		snap, refusal, err := o.guarded(ctx, repoPath, OpRebaseContinue)
		if err != nil || refusal != nil {
			return deref(refusal), err
		}
		if !snap.InRebase {
			return failed(ErrorGenericFailure, "no rebase in progress"), nil
		}

		remaining := snap.Conflicts()
		if len(remaining) == 0 {
			remaining, err = o.unresolved(repoPath, snap, snap.Staged(), true)
			if err != nil {
				return Outcome{}, err
			}
		}
		if len(remaining) > 0 {
			return failed(ErrorUnresolvedConflict, fmt.Sprintf("conflicts remain in %s", strings.Join(remaining, ", "))), nil
		}

		res, kind, err := o.run(ctx, repoPath, outcome.RebaseContinue, "rebase", "--continue")
		if err != nil {
			return Outcome{}, err
		}
		return o.settle(ctx, repoPath, res, kind)
	})
}

// ResolveConflicts marks files as resolved by staging their current content.
// Files without a conflict entry are skipped, so repeating the call changes
// nothing. An empty list resolves every conflicted path. The in-progress
// state, if any, is left in place.
func (o *Orchestrator) ResolveConflicts(ctx context.Context, repoPath string, files []string) (Outcome, error) {
	if err := requirePath(repoPath); err != nil {
		return Outcome{}, err
	}
	cleaned, err := cleanFiles(files)
	if err != nil {
		return Outcome{}, err
	}

	return o.withRepo(ctx, OpResolveConflicts, repoPath, func(ctx context.Context) (Outcome, error) {
		snap, refusal, err := o.guarded(ctx, repoPath, OpResolveConflicts)
		if err != nil || refusal != nil {
			return deref(refusal), err
		}

		targets := snap.Conflicts()
		if len(cleaned) > 0 {
			targets = nil
			for _, file := range cleaned {
				if snap.Files[file].Conflict {
					targets = append(targets, file)
				}
			}
		}
		if len(targets) == 0 {
			return succeeded(snap), nil
		}

		res, kind, err := o.run(ctx, repoPath, outcome.Other, append([]string{"add", "-A", "--"}, targets...)...)
		if err != nil {
			return Outcome{}, err
		}
		return o.settle(ctx, repoPath, res, kind)
	})
}

// Abort abandons whichever merge or rebase is in progress. A clean repository
// is returned unchanged.
func (o *Orchestrator) Abort(ctx context.Context, repoPath string) (Outcome, error) {
	return o.abort(ctx, OpAbort, repoPath)
}

// AbortMerge abandons an in-progress merge.
func (o *Orchestrator) AbortMerge(ctx context.Context, repoPath string) (Outcome, error) {
	return o.abort(ctx, OpAbortMerge, repoPath)
}

// AbortRebase abandons an in-progress rebase.
func (o *Orchestrator) AbortRebase(ctx context.Context, repoPath string) (Outcome, error) {
	return o.abort(ctx, OpAbortRebase, repoPath)
}

func (o *Orchestrator) abort(ctx context.Context, op Operation, repoPath string) (Outcome, error) {
	if err := requirePath(repoPath); err != nil {
		return Outcome{}, err
	}

	return o.withRepo(ctx, op, repoPath, func(ctx context.Context) (Outcome, error) {
		snap, refusal, err := o.guarded(ctx, repoPath, op)
		if err != nil || refusal != nil {
			return deref(refusal), err
		}

		var args []string
		switch StateOf(snap) {
		case StateMerging:
			args = []string{"merge", "--abort"}
		case StateRebasing:
			args = []string{"rebase", "--abort"}
		default:
			return succeeded(snap), nil
		}

		res, kind, err := o.run(ctx, repoPath, outcome.Other, args...)
		if err != nil {
			return Outcome{}, err
		}
		return o.settle(ctx, repoPath, res, kind)
	})
}

func requirePath(repoPath string) error {
	if strings.TrimSpace(repoPath) == "" {
		return fmt.Errorf("%w: repository path is required", ErrInvalidRequest)
	}
	return nil
}

func readFailure(err error) (Outcome, bool) {
	if isStateError(err) {
		return failed(ErrorGenericFailure, err.Error()), true
	}
	return Outcome{}, false
}

func deref(out *Outcome) Outcome {
	if out == nil {
		return Outcome{}
	}
	return *out
}

func changedPaths(snap repostate.Snapshot) []string {
	paths := make([]string, 0, len(snap.Files))
	for path := range snap.Files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
