package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
)

// sandbox tracks the directories created through the dev routes. File
// manipulation is confined to them.
type sandbox struct {
	root string

	mu   sync.Mutex
	dirs map[string]struct{}
}

func newSandbox(root string) *sandbox {
	return &sandbox{root: root, dirs: make(map[string]struct{})}
}

func (s *sandbox) create() (string, error) {
	dir, err := os.MkdirTemp(s.root, "git-state-api-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}

	s.mu.Lock()
	s.dirs[dir] = struct{}{}
	s.mu.Unlock()
	return dir, nil
}

// contains reports whether path lies inside a tracked directory.
func (s *sandbox) contains(path string) bool {
	if !filepath.IsAbs(path) {
		return false
	}
	path = filepath.Clean(path)
	if resolved, err := filepath.EvalSymlinks(filepath.Dir(path)); err == nil {
		path = filepath.Join(resolved, filepath.Base(path))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for dir := range s.dirs {
		if path != dir && strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (s *sandbox) remove(dir string) error {
	dir = filepath.Clean(dir)
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}

	s.mu.Lock()
	_, ok := s.dirs[dir]
	delete(s.dirs, dir)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%s was not created by createtempdir", dir)
	}
	return os.RemoveAll(dir)
}

func (s *sandbox) cleanupAll() error {
	s.mu.Lock()
	dirs := make([]string, 0, len(s.dirs))
	for dir := range s.dirs {
		dirs = append(dirs, dir)
	}
	s.dirs = make(map[string]struct{})
	s.mu.Unlock()

	var errs []error
	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Server) handleCreateTempDir(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	dir, err := s.sandbox.create()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": dir})
}

func (s *Server) handleCreateFile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req, ok := s.bindFile(w, r)
	if !ok {
		return
	}
	content := req.Content
	if content == "" {
		content = "test content\n"
	}
	s.writeSandboxFile(w, req.File, content)
}

func (s *Server) handleChangeFile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req, ok := s.bindFile(w, r)
	if !ok {
		return
	}
	if _, err := os.Stat(req.File); err != nil {
		writeError(w, http.StatusBadRequest, codeNoSuchPath, "no such file: "+req.File)
		return
	}
	content := req.Content
	if content == "" {
		content = "change " + uuid.NewString() + "\n"
	}
	s.writeSandboxFile(w, req.File, content)
}

func (s *Server) handleRemoveFile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req, ok := s.bindFile(w, r)
	if !ok {
		return
	}
	if err := os.Remove(req.File); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusBadRequest, codeNoSuchPath, "no such file: "+req.File)
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req cleanupRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	if err := s.sandbox.remove(req.Path); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) bindFile(w http.ResponseWriter, r *http.Request) (fileRequest, bool) {
	var req fileRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return req, false
	}
	if !s.sandbox.contains(req.File) {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "file must be inside a directory created by createtempdir")
		return req, false
	}
	return req, true
}

func (s *Server) writeSandboxFile(w http.ResponseWriter, file, content string) {
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}
