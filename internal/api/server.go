// Package api exposes the orchestrator over HTTP. Every repository operation
// is a JSON request scoped by a repository path; successful calls answer with
// the fresh status snapshot and domain failures with a stable error code.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/julienschmidt/httprouter"

	"github.com/rancher/git-state-api/internal/orchestrator"
)

// Prefix is the path every repository route is mounted under.
const Prefix = "/api"

// Repositories is the orchestrator surface the server drives.
type Repositories interface {
	Status(ctx context.Context, repoPath string) (orchestrator.Outcome, error)
	Init(ctx context.Context, repoPath string) (orchestrator.Outcome, error)
	Commit(ctx context.Context, repoPath, message string, files []string) (orchestrator.Outcome, error)
	ListBranches(ctx context.Context, repoPath string) (orchestrator.Outcome, error)
	CreateBranch(ctx context.Context, repoPath, name, startPoint string) (orchestrator.Outcome, error)
	Checkout(ctx context.Context, repoPath, name string) (orchestrator.Outcome, error)
	Merge(ctx context.Context, repoPath, withRef string) (orchestrator.Outcome, error)
	Rebase(ctx context.Context, repoPath, onto string) (orchestrator.Outcome, error)
	RebaseContinue(ctx context.Context, repoPath string) (orchestrator.Outcome, error)
	ResolveConflicts(ctx context.Context, repoPath string, files []string) (orchestrator.Outcome, error)
	Abort(ctx context.Context, repoPath string) (orchestrator.Outcome, error)
	AbortMerge(ctx context.Context, repoPath string) (orchestrator.Outcome, error)
	AbortRebase(ctx context.Context, repoPath string) (orchestrator.Outcome, error)
}

// Options tune the server.
type Options struct {
	// Dev mounts the /testing routes used to script scenarios against a
	// running server.
	Dev bool

	// SandboxRoot is where /testing/createtempdir creates directories. The
	// system temp dir is used when empty.
	SandboxRoot string
}

// Server routes HTTP requests to a Repositories implementation.
type Server struct {
	repos    Repositories
	log      *slog.Logger
	validate *validator.Validate
	router   *httprouter.Router
	sandbox  *sandbox
}

// NewServer builds the router for repos.
func NewServer(repos Repositories, logger *slog.Logger, opts Options) (*Server, error) {
	validate, err := newValidator()
	if err != nil {
		return nil, err
	}

	s := &Server{
		repos:    repos,
		log:      logger,
		validate: validate,
		router:   httprouter.New(),
	}
	if opts.Dev {
		s.sandbox = newSandbox(opts.SandboxRoot)
	}

	s.router.HandleMethodNotAllowed = true
	s.router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "no route for "+r.URL.Path)
	})

	s.setupRoutes()
	return s, nil
}

// Handler returns the root handler with request logging applied.
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.router)
}

// Close removes any directories the dev routes created.
func (s *Server) Close() error {
	if s.sandbox == nil {
		return nil
	}
	return s.sandbox.cleanupAll()
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)

	s.router.GET(Prefix+"/status", s.handleStatus)
	s.router.POST(Prefix+"/init", s.handleInit)
	s.router.POST(Prefix+"/commit", s.handleCommit)
	s.router.GET(Prefix+"/branches", s.handleListBranches)
	s.router.POST(Prefix+"/branches", s.handleCreateBranch)
	s.router.POST(Prefix+"/checkout", s.handleCheckout)
	s.router.POST(Prefix+"/merge", s.handleMerge)
	s.router.POST(Prefix+"/merge/abort", s.handleAbortMerge)
	s.router.POST(Prefix+"/rebase", s.handleRebase)
	s.router.POST(Prefix+"/rebase/continue", s.handleRebaseContinue)
	s.router.POST(Prefix+"/rebase/abort", s.handleAbortRebase)
	s.router.POST(Prefix+"/resolveconflicts", s.handleResolveConflicts)
	s.router.POST(Prefix+"/abort", s.handleAbort)

	if s.sandbox != nil {
		s.router.POST("/testing/createtempdir", s.handleCreateTempDir)
		s.router.POST("/testing/createfile", s.handleCreateFile)
		s.router.POST("/testing/changefile", s.handleChangeFile)
		s.router.POST("/testing/removefile", s.handleRemoveFile)
		s.router.POST("/testing/cleanup", s.handleCleanup)
	}
}
