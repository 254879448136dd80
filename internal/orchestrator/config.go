package orchestrator

import "time"

// Config captures the runtime controls the orchestrator needs.
type Config struct {
	// CarryLocalChanges makes a checkout that would overwrite local edits
	// stash them, switch, and re-apply them on the target instead of refusing.
	CarryLocalChanges bool

	// InitialBranch names the unborn branch of repositories created by Init.
	InitialBranch string

	// LockTimeout bounds how long an operation waits for the repository lock.
	// Zero waits for as long as the caller's context allows.
	LockTimeout time.Duration
}
