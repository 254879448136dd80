package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := repoRequest{Path: r.URL.Query().Get("path")}
	if err := s.check(req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	if !requireDir(w, req.Path) {
		return
	}
	out, err := s.repos.Status(r.Context(), req.Path)
	s.respond(w, r, out, err)
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req repoRequest
	if !s.bind(w, r, &req, &req) {
		return
	}
	out, err := s.repos.Init(r.Context(), req.Path)
	s.respond(w, r, out, err)
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req commitRequest
	if !s.bind(w, r, &req, &req.repoRequest) {
		return
	}
	out, err := s.repos.Commit(r.Context(), req.Path, req.Message, req.Files)
	s.respond(w, r, out, err)
}

func (s *Server) handleListBranches(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := repoRequest{Path: r.URL.Query().Get("path")}
	if err := s.check(req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	if !requireDir(w, req.Path) {
		return
	}
	out, err := s.repos.ListBranches(r.Context(), req.Path)
	s.respond(w, r, out, err)
}

func (s *Server) handleCreateBranch(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createBranchRequest
	if !s.bind(w, r, &req, &req.repoRequest) {
		return
	}
	out, err := s.repos.CreateBranch(r.Context(), req.Path, req.Name, req.StartPoint)
	s.respond(w, r, out, err)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req checkoutRequest
	if !s.bind(w, r, &req, &req.repoRequest) {
		return
	}
	out, err := s.repos.Checkout(r.Context(), req.Path, req.Name)
	s.respond(w, r, out, err)
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req mergeRequest
	if !s.bind(w, r, &req, &req.repoRequest) {
		return
	}
	out, err := s.repos.Merge(r.Context(), req.Path, req.With)
	s.respond(w, r, out, err)
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req repoRequest
	if !s.bind(w, r, &req, &req) {
		return
	}
	out, err := s.repos.Abort(r.Context(), req.Path)
	s.respond(w, r, out, err)
}

func (s *Server) handleAbortMerge(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req repoRequest
	if !s.bind(w, r, &req, &req) {
		return
	}
	out, err := s.repos.AbortMerge(r.Context(), req.Path)
	s.respond(w, r, out, err)
}

func (s *Server) handleRebase(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req rebaseRequest
	if !s.bind(w, r, &req, &req.repoRequest) {
		return
	}
	out, err := s.repos.Rebase(r.Context(), req.Path, req.Onto)
	s.respond(w, r, out, err)
}

func (s *Server) handleRebaseContinue(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req repoRequest
	if !s.bind(w, r, &req, &req) {
		return
	}
	out, err := s.repos.RebaseContinue(r.Context(), req.Path)
	s.respond(w, r, out, err)
}

func (s *Server) handleAbortRebase(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req repoRequest
	if !s.bind(w, r, &req, &req) {
		return
	}
	out, err := s.repos.AbortRebase(r.Context(), req.Path)
	s.respond(w, r, out, err)
}

func (s *Server) handleResolveConflicts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req resolveConflictsRequest
	if !s.bind(w, r, &req, &req.repoRequest) {
		return
	}
	out, err := s.repos.ResolveConflicts(r.Context(), req.Path, req.Files)
	s.respond(w, r, out, err)
}

// bind decodes and validates the body into dst and checks that repo names an
// existing directory. It writes the error response itself and reports
// whether the handler should continue.
func (s *Server) bind(w http.ResponseWriter, r *http.Request, dst any, repo *repoRequest) bool {
	if err := s.decode(w, r, dst); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return false
	}
	return requireDir(w, repo.Path)
}
