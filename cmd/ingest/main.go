package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"canonical-trade-ingest/internal/config"
	"canonical-trade-ingest/internal/pipeline"
)

func main() {
	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(flag.CommandLine, os.Args[1:], ".env")
	if err != nil {
		logger.Fatalf("Configuration error: %v", err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to signal main goroutine completion
	done := make(chan error, 1)

	forceAfter := cfg.ShutdownGrace + 30*time.Second
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(forceAfter):
			logger.Printf("Graceful shutdown timed out after %v, forcing exit", forceAfter)
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, cfg, logger)

	// Signal completion to shutdown handler
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// run builds the pipeline and runs the directory runner, the HTTP server and
// the optional PENDING event sweep until ctx is cancelled or one of them fails.
func run(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	p, err := pipeline.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	runner := p.NewRunner()
	srv := newServer(runner, p.Outbox, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runner.Run(gctx)
	})

	if cfg.HTTPAddr != "" {
		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           srv.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Printf("Starting HTTP server on %s", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	if cfg.RepublishInterval > 0 {
		g.Go(func() error {
			srv.runSweeper(gctx, cfg.RepublishInterval)
			return nil
		})
	}

	return g.Wait()
}
