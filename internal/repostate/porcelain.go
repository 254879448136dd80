package repostate

import "strings"

// unmerged XY pairs from git-status(1).
var conflictCodes = map[string]struct{}{
	"DD": {}, "AU": {}, "UD": {}, "UA": {}, "DU": {}, "AA": {}, "UU": {},
}

// ParsePorcelain parses `git status --porcelain=v1 -z` output into per-path
// file statuses. Ignored entries are skipped.
func ParsePorcelain(out string) map[string]FileStatus {
	files := make(map[string]FileStatus)

	fields := strings.Split(out, "\x00")
	for i := 0; i < len(fields); i++ {
		entry := fields[i]
		if len(entry) < 4 || entry[2] != ' ' {
			continue
		}

		x, y := entry[0], entry[1]
		path := entry[3:]

		// Renames and copies carry their source path in the next field.
		if x == 'R' || x == 'C' || y == 'R' || y == 'C' {
			i++
		}

		if x == '!' {
			continue
		}

		files[path] = fileStatus(x, y)
	}

	return files
}

func fileStatus(x, y byte) FileStatus {
	if _, ok := conflictCodes[string([]byte{x, y})]; ok {
		return FileStatus{
			IsNew:    x == 'A' && y == 'A',
			Removed:  x == 'D' && y == 'D',
			Conflict: true,
		}
	}

	return FileStatus{
		IsNew:   x == '?' || x == 'A',
		Staged:  x != ' ' && x != '?',
		Removed: x == 'D' || y == 'D',
	}
}
