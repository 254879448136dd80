package orchestrator

import (
	"github.com/rancher/git-state-api/internal/outcome"
	"github.com/rancher/git-state-api/internal/repostate"
)

// ErrorCode is the stable failure vocabulary exposed to callers.
type ErrorCode string

const (
	ErrorConflict           ErrorCode = "conflict"
	ErrorMergeFailed        ErrorCode = "merge-failed"
	ErrorAlreadyInProgress  ErrorCode = "already-in-progress"
	ErrorGenericFailure     ErrorCode = "generic-failure"
	ErrorUnresolvedConflict ErrorCode = "unresolved-conflict"
)

var kindErrorCodes = map[outcome.Kind]ErrorCode{
	outcome.Conflict:          ErrorConflict,
	outcome.MergeFailed:       ErrorMergeFailed,
	outcome.AlreadyInProgress: ErrorAlreadyInProgress,
	outcome.GenericFailure:    ErrorGenericFailure,
}

// codeFor maps a classified failure to its error code.
func codeFor(kind outcome.Kind) ErrorCode {
	if code, ok := kindErrorCodes[kind]; ok {
		return code
	}
	return ErrorGenericFailure
}

// Outcome is the single tagged result of an orchestrated operation: either a
// success, carrying the fresh Status when the operation produces one, or a
// failure with ErrorCode and a human-readable Message.
type Outcome struct {
	Status    *repostate.Snapshot
	Branches  []repostate.Branch
	ErrorCode ErrorCode
	Message   string
}

// Failed reports whether the outcome is a failure.
func (o Outcome) Failed() bool {
	return o.ErrorCode != ""
}

func succeeded(snap repostate.Snapshot) Outcome {
	return Outcome{Status: &snap}
}

func failed(code ErrorCode, message string) Outcome {
	return Outcome{ErrorCode: code, Message: message}
}

// State is the per-repository operational state derived from disk.
type State string

const (
	StateClean    State = "clean"
	StateMerging  State = "conflicted-merge"
	StateRebasing State = "conflicted-rebase"
)

// StateOf derives the operational state from a snapshot.
func StateOf(snap repostate.Snapshot) State {
	switch {
	case snap.InRebase:
		return StateRebasing
	case snap.InMerge:
		return StateMerging
	default:
		return StateClean
	}
}

// Operation names an orchestrated operation for guards and logging.
type Operation string

const (
	OpStatus           Operation = "status"
	OpInit             Operation = "init"
	OpCommit           Operation = "commit"
	OpBranches         Operation = "branches"
	OpCreateBranch     Operation = "branch-create"
	OpCheckout         Operation = "checkout"
	OpMerge            Operation = "merge"
	OpRebase           Operation = "rebase"
	OpRebaseContinue   Operation = "rebase-continue"
	OpResolveConflicts Operation = "resolve-conflicts"
	OpAbort            Operation = "abort"
	OpAbortMerge       Operation = "merge-abort"
	OpAbortRebase      Operation = "rebase-abort"
)

// incompatible lists, per in-progress state, the operations that must be
// refused with ErrorAlreadyInProgress.
var incompatible = map[State]map[Operation]struct{}{
	StateMerging: {
		OpMerge:          {},
		OpRebase:         {},
		OpCheckout:       {},
		OpRebaseContinue: {},
		OpAbortRebase:    {},
	},
	StateRebasing: {
		OpMerge:      {},
		OpRebase:     {},
		OpCheckout:   {},
		OpCommit:     {},
		OpAbortMerge: {},
	},
}

// Allowed reports whether op may run while the repository is in state.
func Allowed(state State, op Operation) bool {
	_, refused := incompatible[state][op]
	return !refused
}
