package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rancher/git-state-api/internal/app"
)

// Version is set at build time via ldflags.
var Version = "dev"

func newRootCmd() *cobra.Command {
	var (
		addr      string
		dev       bool
		logLevel  string
		logFormat string
	)

	cmd := &cobra.Command{
		Use:          "git-state-api",
		Short:        "Serve git repository operations over a JSON API",
		Version:      Version,
		SilenceUsage: true,
		Long: `git-state-api runs commit, branch, checkout, merge, rebase and conflict
resolution against local repositories and reports each repository's state
(in-progress merge or rebase, per-file conflict flags) as JSON.

Configuration is read from GITAPI_* environment variables; flags override them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Addr = addr
			}
			if flags.Changed("dev") {
				cfg.Dev = dev
			}
			if flags.Changed("log-level") && !cfg.Verbose {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("log-format") {
				cfg.LogFormat = logFormat
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			runner, err := app.NewRunner(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runner.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (GITAPI_ADDR)")
	cmd.Flags().BoolVar(&dev, "dev", false, "mount the /testing routes (GITAPI_DEV)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (GITAPI_LOG_LEVEL)")
	cmd.Flags().StringVar(&logFormat, "log-format", "", "text or json (GITAPI_LOG_FORMAT)")

	return cmd
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		log.Printf("git-state-api failed: %v", err)
		os.Exit(1)
	}
}
