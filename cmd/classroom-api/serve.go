package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/upb/classroom/routes"
)

// keyRefresher keeps the issuer keys fresh until ctx is done
type keyRefresher interface {
	Run(ctx context.Context) error
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			deps, err := bootstrap(ctx, opts)
			if err != nil {
				return err
			}

			cfg := deps.Config.Server
			srv := &http.Server{
				Addr:              cfg.Address(),
				Handler:           routes.SetupRoutes(deps),
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       cfg.ReadTimeout,
				WriteTimeout:      cfg.WriteTimeout,
			}

			runErr := serve(ctx, srv, deps.KeySet, cfg.ShutdownTimeout, deps.Logger)

			closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := deps.Close(closeCtx); err != nil {
				deps.Logger.Error("shutdown error", zap.Error(err))
			}
			return runErr
		},
	}
}

// serve runs the HTTP server and the key refresher until ctx is cancelled
// or one of them fails, then shuts the server down gracefully.
func serve(ctx context.Context, srv *http.Server, keys keyRefresher, shutdownTimeout time.Duration, logger *zap.Logger) error {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return keys.Run(gCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server exited properly")
	return nil
}
