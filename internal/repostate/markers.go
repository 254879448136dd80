package repostate

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var (
	markerOurs   = []byte("<<<<<<<")
	markerSplit  = []byte("=======")
	markerTheirs = []byte(">>>>>>>")
)

// ContainsConflictMarkers reports whether r holds a complete conflict block:
// an opening marker, a separator and a closing marker, each at line start.
func ContainsConflictMarkers(r io.Reader) (bool, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	const (
		outside = iota
		inOurs
		inTheirs
	)
	state := outside

	for scanner.Scan() {
		line := scanner.Bytes()
		switch state {
		case outside:
			if isMarker(line, markerOurs) {
				state = inOurs
			}
		case inOurs:
			if isMarker(line, markerSplit) {
				state = inTheirs
			}
		case inTheirs:
			if isMarker(line, markerTheirs) {
				return true, nil
			}
		}
	}
	return false, scanner.Err()
}

// FileHasConflictMarkers checks a work tree file. Missing files have none.
func FileHasConflictMarkers(repoPath, file string) (bool, error) {
	f, err := os.Open(filepath.Join(repoPath, file))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()

	found, err := ContainsConflictMarkers(f)
	if err != nil {
		return false, fmt.Errorf("scan %s: %w", file, err)
	}
	return found, nil
}

func isMarker(line, marker []byte) bool {
	if !bytes.HasPrefix(line, marker) {
		return false
	}
	rest := line[len(marker):]
	return len(rest) == 0 || rest[0] == ' ' || rest[0] == '\r'
}
