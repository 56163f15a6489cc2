// Command process runs named files from the input directory through the
// ingestion pipeline once and prints each ProcessingResult as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"canonical-trade-ingest/internal/config"
	"canonical-trade-ingest/internal/domain"
	"canonical-trade-ingest/internal/pipeline"
)

func main() {
	logger := log.New(os.Stderr, "[process] ", log.LstdFlags|log.Lshortfile)

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] file...\n", os.Args[0])
		flag.PrintDefaults()
	}
	cfg, err := config.Load(flag.CommandLine, os.Args[1:], ".env")
	if err != nil {
		logger.Fatalf("Configuration error: %v", err)
	}
	names := flag.Args()
	if len(names) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	failed, err := run(ctx, cfg, names, logger)
	if err != nil {
		logger.Fatalf("Error: %v", err)
	}
	if failed > 0 {
		logger.Printf("%d of %d files did not fully succeed", failed, len(names))
		os.Exit(1)
	}
}

// run processes names in order and returns how many did not end in SUCCESS.
func run(ctx context.Context, cfg config.Config, names []string, logger *log.Logger) (int, error) {
	p, err := pipeline.Build(ctx, cfg, logger)
	if err != nil {
		return 0, err
	}
	defer p.Close()

	runner := p.NewRunner()
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	failed := 0
	for _, name := range names {
		result, err := runner.ProcessNow(ctx, name)
		if err != nil {
			return failed, fmt.Errorf("process %s: %w", name, err)
		}
		if result.Status != domain.FileStatusSuccess {
			failed++
		}
		if err := enc.Encode(result); err != nil {
			return failed, err
		}
	}
	return failed, nil
}
