package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nijaru/yt-summary/handlers"
	"github.com/nijaru/yt-summary/logger"
	"github.com/nijaru/yt-summary/pipeline"
	"github.com/nijaru/yt-summary/workspace"
)

func newServeCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return errors.Wrap(err, "load configuration")
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			log, err := logger.New(cfg)
			if err != nil {
				return errors.Wrap(err, "initialize logger")
			}

			workspaces := workspace.NewManager(cfg.TempDir, log)
			sweepLog := log.WithField("root", workspaces.Root())
			if removed, err := workspaces.Sweep(cfg.SweepStaleAfter); err != nil {
				sweepLog.WithError(err).Warn("Workspace sweep failed")
			} else if removed > 0 {
				sweepLog.WithField("removed", removed).Info("Removed stale workspaces")
			}

			// Jobs run on base, not on the signal context, so in-flight jobs
			// finish streaming while the listener drains.
			base, cancelJobs := context.WithCancel(context.Background())
			defer cancelJobs()

			service, err := pipeline.NewService(base, cfg,
				pipeline.WithLogger(log),
				pipeline.WithWorkspaces(workspaces),
			)
			if err != nil {
				return errors.Wrap(err, "initialize pipeline")
			}

			handler := handlers.New(cfg, service, handlers.WithLogger(log))
			server := handlers.NewServer(base, cfg, handler.Routes(), log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			serveErr := make(chan error, 1)
			go func() {
				serveErr <- server.Start()
			}()

			select {
			case err := <-serveErr:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return errors.Wrap(err, "server error")
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Error("Server shutdown error")
			}
			cancelJobs()
			if err := handler.Wait(shutdownCtx); err != nil {
				log.WithError(err).Warn("Jobs still running at shutdown")
			}
			log.Info("Server stopped")
			return nil
		},
	}
}
