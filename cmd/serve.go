package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/portage/internal/server"
	"github.com/desertthunder/portage/internal/shared"
	"github.com/desertthunder/portage/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP API with the background job workers embedded in the
// same process. QUEUED and IMPORTING jobs left over from a previous run
// are re-enqueued before the listener starts.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.openStore(); err != nil {
		return err
	}

	host := r.config.Server.Host
	if cmd.String("host") != "" {
		host = cmd.String("host")
	}
	port := r.config.Server.Port
	if cmd.Int("port") != 0 {
		port = cmd.Int("port")
	}

	secret := r.config.Server.SecretKey
	if secret == "" {
		secret = shared.GenerateID()
		r.logger.Warn("server.secret_key not set; sessions will not survive restarts")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline := r.config.Pipeline.Normalize()
	queue := tasks.NewQueue(pipeline.JobWorkers, pipeline.QueueSize, r.engine.Process, r.logger)
	queue.Start(ctx)

	if recovered, err := r.engine.Recover(queue); err != nil {
		r.logger.Error("startup recovery failed", "error", err)
	} else if recovered > 0 {
		r.logger.Info("re-enqueued unfinished jobs", "count", recovered)
	}

	router := server.NewBasicRouter()
	router.Handler(server.NewHealthHandler(r.db))
	router.Use(
		server.RequestLogger(r.logger),
		server.TenantMiddleware(r.users, secret, r.logger),
	)
	router.Handler(server.NewImportsHandler(r.jobs, r.items, queue, r.logger))
	router.Handler(server.NewConnectionsHandler(r.connections, r.config, r.logger))

	addr := fmt.Sprintf("%s:%d", host, port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			queue.Stop()
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		r.logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("shutdown error", "error", err)
	}

	queue.Stop()
	return nil
}
