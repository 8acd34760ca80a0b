package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/okian/scorestat/internal/adapters/http/api"
	"github.com/okian/scorestat/internal/adapters/http/site"
	"github.com/okian/scorestat/internal/adapters/http/swagger"
	service "github.com/okian/scorestat/internal/app"
	"github.com/okian/scorestat/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func newServeCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				c.cfg.Addr = addr
			}
			return c.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides SCORESTAT_ADDR)")
	return cmd
}

// newRouter mounts the API, the docs and the landing page on one router.
func newRouter(ctx context.Context, svc *service.Service, origins []string) chi.Router {
	r := chi.NewRouter()
	api.NewServer(svc, api.WithAllowedOrigins(origins), api.WithLogger(logger.Named("api"))).Register(ctx, r)
	swagger.Register(ctx, r)
	site.Register(ctx, r)
	return r
}

func (c *cli) serve(ctx context.Context) error {
	log := logger.Get()

	svc, stop, err := c.startService(ctx)
	if err != nil {
		return err
	}
	defer stop()

	srv := &http.Server{
		Addr:              c.cfg.Addr,
		Handler:           newRouter(ctx, svc, c.cfg.Origins()),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", c.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			return err
		}
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
