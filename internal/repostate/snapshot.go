package repostate

import "sort"

// FileStatus describes the pending change on one path. A conflicted path is
// never reported as staged.
type FileStatus struct {
	IsNew    bool `json:"isNew"`
	Staged   bool `json:"staged"`
	Removed  bool `json:"removed"`
	Conflict bool `json:"conflict"`
}

// Snapshot is the canonical state of a repository at one point in time. It is
// derived from disk on every read and never cached.
type Snapshot struct {
	InMerge       bool                  `json:"inMerge"`
	InRebase      bool                  `json:"inRebase"`
	CommitMessage string                `json:"commitMessage,omitempty"`
	Files         map[string]FileStatus `json:"files"`
}

// Conflicts returns the sorted paths that still carry a conflict entry.
func (s Snapshot) Conflicts() []string {
	var paths []string
	for path, st := range s.Files {
		if st.Conflict {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}

// HasConflicts reports whether any path is still conflicted.
func (s Snapshot) HasConflicts() bool {
	for _, st := range s.Files {
		if st.Conflict {
			return true
		}
	}
	return false
}

// Staged returns the sorted paths whose change is in the index.
func (s Snapshot) Staged() []string {
	var paths []string
	for path, st := range s.Files {
		if st.Staged {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}

// Branch is a local branch head.
type Branch struct {
	Name    string `json:"name"`
	Current bool   `json:"current"`
}
