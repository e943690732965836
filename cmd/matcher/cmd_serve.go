package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"social-rideshare/internal/handlers"
	"social-rideshare/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the matcher over HTTP",
		Long: `Starts the HTTP API:

  POST /match_and_merge      {"graph": ..., "number": k}, answers with the partition
  POST /api/v1/assignments   same request, answers with groups, costs and warnings
  GET  /api/v1/health`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			gin.SetMode(gin.ReleaseMode)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runServe(ctx, nil)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, e.g. 127.0.0.1:0 for a random port (default from config)")
	return cmd
}

// runServe serves until ctx is done. ready, when set, receives the bound
// address.
func (a *app) runServe(ctx context.Context, ready chan<- string) error {
	p, err := buildPipeline(a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer closePipeline(p, a.logger)

	h := &handlers.Handler{Solver: p.service}
	if p.store != nil {
		h.Cache = p.store
	}

	sc := a.cfg.Server
	srv := server.New(server.Config{
		Addr:         sc.Addr,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		MaxBodyBytes: sc.MaxBodyBytes,
	}, h, a.logger)

	actualAddr, err := srv.Start()
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	if ready != nil {
		ready <- actualAddr
	}

	<-ctx.Done()
	a.logger.Info("starting graceful shutdown", zap.NamedError("reason", context.Cause(ctx)))

	// a zero timeout waits for in-flight requests indefinitely
	shutdownCtx := context.Background()
	if sc.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, sc.ShutdownTimeout)
		defer cancel()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("could not gracefully shutdown the server: %w", err)
	}
	return nil
}
