// Command server runs the murmur HTTP and chat API together with the
// popularity recomputation loop.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"murmur/internal/bootstrap"
	"murmur/internal/cache"
	"murmur/internal/config"
	"murmur/internal/middleware"
	"murmur/internal/notifications"
	"murmur/internal/observability"
	"murmur/internal/server"
	"murmur/internal/service"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	srv := server.NewServer(server.Deps{
		Config:   cfg,
		DB:       rt.DB,
		Redis:    rt.Redis,
		Services: rt.Services,
		Hub:      notifications.NewChatHub(cache.NewStore(rt.Redis)),
	})

	job := service.NewPopularityJob(rt.DB, cfg)
	if err := job.Start(ctx); err != nil {
		log.Fatalf("Failed to start popularity job: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		middleware.Logger.Info("Shutting down server...")
	case err := <-errCh:
		if err != nil {
			middleware.Logger.Error("Server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	job.Stop()
	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := rt.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		log.Printf("Shutdown finished with errors: %v", err)
		os.Exit(1)
	}
}
