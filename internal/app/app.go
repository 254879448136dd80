package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/rancher/git-state-api/internal/api"
	"github.com/rancher/git-state-api/internal/git"
	"github.com/rancher/git-state-api/internal/orchestrator"
	"github.com/rancher/git-state-api/internal/repolock"
)

const shutdownTimeout = 5 * time.Second

// Runner glues together the orchestrator, the HTTP surface and supporting
// services.
type Runner struct {
	cfg     Config
	log     *slog.Logger
	gitExec git.Executor // only set for testing via NewRunnerWithDeps
}

// NewRunner constructs a Runner with the supplied configuration.
func NewRunner(cfg Config) (*Runner, error) {
	logger, err := NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	return &Runner{cfg: cfg, log: logger}, nil
}

// NewRunnerWithDeps constructs a Runner with injected dependencies for testing.
func NewRunnerWithDeps(cfg Config, log *slog.Logger, gitExec git.Executor) *Runner {
	return &Runner{cfg: cfg, log: log, gitExec: gitExec}
}

// Run listens on the configured address and serves until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", r.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", r.cfg.Addr, err)
	}
	return r.Serve(ctx, ln)
}

// Serve serves the API on ln until ctx is cancelled, then shuts down
// gracefully, letting in-flight git operations finish.
func (r *Runner) Serve(ctx context.Context, ln net.Listener) error {
	srv, err := r.newServer()
	if err != nil {
		return fmt.Errorf("build api server: %w", err)
	}
	defer func() {
		if err := srv.Close(); err != nil && r.log != nil {
			r.log.Warn("failed to clean up sandbox directories", "error", err)
		}
	}()

	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if r.log != nil {
		r.log.Info("starting git state api", "addr", ln.Addr().String(), "dev", r.cfg.Dev, "lock_dir", r.cfg.LockDir)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	if r.log != nil {
		r.log.Info("shutting down git state api")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (r *Runner) newServer() (*api.Server, error) {
	gitExec := r.gitExec
	if gitExec == nil {
		gitExec = r.buildGitExecutor()
	}

	orchCfg := orchestrator.Config{
		CarryLocalChanges: r.cfg.CarryCheckoutChanges,
		InitialBranch:     r.cfg.InitialBranch,
		LockTimeout:       r.cfg.LockTimeout,
	}
	orch := orchestrator.New(orchCfg, gitExec, repolock.New(r.cfg.LockDir), r.log)

	return api.NewServer(orch, r.log, api.Options{Dev: r.cfg.Dev})
}

func (r *Runner) buildGitExecutor() git.Executor {
	exec := git.NewShellExecutor()
	exec.Git = r.cfg.GitBinary
	exec.UserName = r.cfg.GitUserName
	exec.UserEmail = r.cfg.GitUserEmail
	exec.CommandTimeout = r.cfg.CommandTimeout
	return exec
}
