// Package outcome classifies finished git invocations into a small, stable set
// of outcome kinds. Classification is command specific: the same exit status
// means different things for checkout, merge and rebase.
package outcome

import (
	"strings"

	"github.com/rancher/git-state-api/internal/git"
)

// Kind enumerates the classified result of a git invocation.
type Kind string

const (
	Success           Kind = "success"
	Conflict          Kind = "conflict"
	MergeFailed       Kind = "merge-failed"
	AlreadyInProgress Kind = "already-in-progress"
	GenericFailure    Kind = "generic-failure"
)

// Command identifies the operation whose output is being classified.
type Command string

const (
	Checkout       Command = "checkout"
	Merge          Command = "merge"
	Rebase         Command = "rebase"
	RebaseContinue Command = "rebase-continue"
	StashPop       Command = "stash-pop"
	Commit         Command = "commit"
	Branch         Command = "branch"
	Other          Command = "other"
)

// rule maps any of its needles, matched case-insensitively against the
// combined output, to kind.
type rule struct {
	kind    Kind
	needles []string
}

var inProgressRules = []rule{
	{kind: AlreadyInProgress, needles: []string{
		"you have not concluded your merge",
		"merge_head exists",
		"there is already a rebase-merge directory",
		"there is already a rebase-apply directory",
		"it seems that there is already a",
	}},
}

var patchFailedRules = []rule{
	{kind: MergeFailed, needles: []string{
		"could not apply",
		"conflict (",
		"patch failed",
		"failed to merge in the changes",
		"resolve all conflicts manually",
	}},
}

var rules = map[Command][]rule{
	Checkout: {
		{kind: Conflict, needles: []string{
			"would be overwritten by checkout",
			"your local changes to the following files would be overwritten",
			"untracked working tree files would be overwritten",
			"you need to resolve your current index first",
			"because you have unmerged files",
		}},
	},
	Merge: {
		{kind: Conflict, needles: []string{
			"conflict (",
			"automatic merge failed",
			"would be overwritten by merge",
			"because you have unmerged files",
		}},
	},
	Rebase: append([]rule{
		{kind: Conflict, needles: []string{
			"cannot rebase: you have unstaged changes",
			"cannot rebase: your index contains uncommitted changes",
			"would be overwritten by checkout",
		}},
	}, patchFailedRules...),
	RebaseContinue: patchFailedRules,
	StashPop: {
		{kind: Conflict, needles: []string{
			"conflict (",
			"would be overwritten",
			"could not restore untracked files",
		}},
	},
}

// Classify maps an invocation's exit status and output to a Kind.
func Classify(cmd Command, exitStatus int, stdout, stderr string) Kind {
	if exitStatus == 0 {
		return Success
	}

	output := strings.ToLower(stdout + "\n" + stderr)

	if kind, ok := match(inProgressRules, output); ok {
		return kind
	}
	if kind, ok := match(rules[cmd], output); ok {
		return kind
	}
	return GenericFailure
}

// ClassifyResult is Classify applied to an executor Result.
func ClassifyResult(cmd Command, res git.Result) Kind {
	return Classify(cmd, res.ExitCode, res.Stdout, res.Stderr)
}

func match(table []rule, output string) (Kind, bool) {
	for _, r := range table {
		for _, needle := range r.needles {
			if strings.Contains(output, needle) {
				return r.kind, true
			}
		}
	}
	return "", false
}
