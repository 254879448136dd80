// Package refs normalizes and validates ref names supplied by API callers before
// they are handed to git as arguments.
package refs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	errEmpty        = errors.New("name cannot be empty")
	errOptionLike   = errors.New("name cannot start with '-'")
	errWhitespace   = errors.New("name cannot contain whitespace")
	errDoubleDot    = errors.New("name cannot contain '..'")
	errForbidden    = errors.New("name contains forbidden git characters")
	errLockSuffix   = errors.New("name cannot end with '.lock'")
	errTrailingDot  = errors.New("name cannot end with '.'")
	errControlChars = errors.New("name cannot contain control characters")
)

// NormalizeBranch trims whitespace, removes leading/trailing slashes, and strips
// a refs/heads/ prefix from a branch name. It returns an empty string when the
// normalized branch would otherwise be empty.
func NormalizeBranch(branch string) string {
	branch = strings.TrimSpace(branch)
	branch = strings.Trim(branch, "/")

	if len(branch) >= len("refs/heads/") && strings.EqualFold(branch[:len("refs/heads/")], "refs/heads/") {
		branch = branch[len("refs/heads/"):]
	}

	branch = strings.TrimSpace(branch)
	branch = strings.Trim(branch, "/")

	return strings.TrimSpace(branch)
}

// Branch normalizes a new branch name and applies git's naming rules.
func Branch(name string) (string, error) {
	normalized := NormalizeBranch(name)
	if err := validateBranchName(normalized); err != nil {
		return "", fmt.Errorf("invalid branch %q: %w", name, err)
	}
	return normalized, nil
}

// Revision validates an existing revision expression (branch, tag, sha,
// HEAD~2, origin/main). It is more permissive than Branch but still refuses
// anything git would parse as an option.
func Revision(rev string) (string, error) {
	rev = strings.TrimSpace(rev)
	switch {
	case rev == "":
		return "", fmt.Errorf("invalid revision: %w", errEmpty)
	case strings.HasPrefix(rev, "-"):
		return "", fmt.Errorf("invalid revision %q: %w", rev, errOptionLike)
	case strings.ContainsAny(rev, " \t\n\r"):
		return "", fmt.Errorf("invalid revision %q: %w", rev, errWhitespace)
	case hasControlChars(rev):
		return "", fmt.Errorf("invalid revision %q: %w", rev, errControlChars)
	}
	return rev, nil
}

func validateBranchName(branch string) error {
	if branch == "" {
		return errEmpty
	}

	if strings.HasPrefix(branch, "-") {
		return errOptionLike
	}

	if strings.ContainsAny(branch, " \t\n\r") {
		return errWhitespace
	}

	if hasControlChars(branch) {
		return errControlChars
	}

	if strings.Contains(branch, "..") {
		return errDoubleDot
	}

	if strings.ContainsAny(branch, "~^:?*[]{\\") || strings.Contains(branch, "@{") || branch == "@" {
		return errForbidden
	}

	if strings.HasSuffix(branch, ".lock") {
		return errLockSuffix
	}

	if strings.HasSuffix(branch, ".") {
		return errTrailingDot
	}

	return nil
}

func hasControlChars(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}
	return false
}
