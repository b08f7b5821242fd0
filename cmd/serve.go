package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/argonauts/internal/adapters/http/api"
	"github.com/okian/argonauts/internal/adapters/http/swagger"
	"github.com/okian/argonauts/internal/adapters/repository"
	"github.com/okian/argonauts/internal/adapters/storage"
	"github.com/okian/argonauts/internal/adapters/watch"
	app "github.com/okian/argonauts/internal/app"
	"github.com/okian/argonauts/pkg/logger"
	"github.com/spf13/cobra"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func newServeCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the report, cluster results and plots over HTTP",
		Long: `serve exposes the outputs of the last run read-only and reloads them when a
stage rewrites them. It never runs stages itself.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				c.cfg.Serve.Addr = addr
			}
			return c.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides serve.addr)")
	return cmd
}

func (c *cli) serve(ctx context.Context) error {
	log := logger.Named("serve")
	layout := storage.NewLayout(c.cfg.OutputDir)
	// The watcher needs the directory before the first run creates it.
	if err := layout.Ensure(); err != nil {
		return err
	}

	history, err := openHistory(ctx, c.cfg)
	if err != nil {
		return err
	}
	var store repository.Store
	if history != nil {
		defer history.Close()
		store = history
	}

	viewer := app.NewViewer(layout, store, logger.Named("viewer"))
	if err := viewer.Reload(ctx); err != nil {
		log.Warn(ctx, "initial load failed; serving until outputs are rewritten", logger.Error(err))
	}

	w, err := watch.New(layout.Dir, viewer.WatchedFiles(), viewer, watch.WithLogger(logger.Named("watch")))
	if err != nil {
		return err
	}
	go w.Run(ctx)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := w.Shutdown(shutdownCtx); err != nil {
			log.Error(ctx, "watcher shutdown failed", logger.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              c.cfg.Serve.Addr,
		Handler:           newHandler(ctx, viewer, c.cfg.History.MaxList),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", srv.Addr), logger.String("output_dir", layout.Dir))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
		return err
	}
	log.Info(ctx, "server stopped")
	return nil
}

func newHandler(ctx context.Context, deps api.Dependencies, maxRuns int) http.Handler {
	mux := http.NewServeMux()
	api.NewServer(deps, maxRuns).Register(ctx, mux)
	swagger.Register(ctx, mux)
	return mux
}
