package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/rancher/git-state-api/internal/orchestrator"
	"github.com/rancher/git-state-api/internal/repostate"
)

// API level error codes. Domain failures use orchestrator.ErrorCode values.
const (
	codeInvalidRequest = "invalid-request"
	codeNoSuchPath     = "no-such-path"
	codeNotFound       = "not-found"
)

type errorBody struct {
	ErrorCode string `json:"errorCode,omitempty"`
	Error     string `json:"error"`
}

type branchesBody struct {
	Branches []repostate.Branch `json:"branches"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{ErrorCode: code, Error: message})
}

// respond maps an orchestrator result onto the wire: domain failures are 400
// with their error code, infrastructure errors are 500 without one.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, out orchestrator.Outcome, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
	case err != nil:
		if s.log != nil {
			s.log.Error("request failed", "path", r.URL.Path, "request_id", requestIDFrom(r.Context()), "error", err)
		}
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
	case out.Failed():
		writeError(w, http.StatusBadRequest, string(out.ErrorCode), out.Message)
	case out.Branches != nil:
		writeJSON(w, http.StatusOK, branchesBody{Branches: out.Branches})
	case out.Status != nil:
		writeJSON(w, http.StatusOK, out.Status)
	default:
		writeJSON(w, http.StatusOK, struct{}{})
	}
}

// requireDir rejects repository paths that do not name an existing directory.
func requireDir(w http.ResponseWriter, repoPath string) bool {
	info, err := os.Stat(repoPath)
	if err != nil || !info.IsDir() {
		writeError(w, http.StatusBadRequest, codeNoSuchPath, "no such directory: "+repoPath)
		return false
	}
	return true
}
