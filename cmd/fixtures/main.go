// Command fixtures writes the same generated orders as JSON, XML, CSV and
// fixed-width files, for feeding a watched input directory.
package main

import (
	"flag"
	"log"
	"os"

	"canonical-trade-ingest/internal/fixedwidth"
	"canonical-trade-ingest/internal/pipeline"
)

func main() {
	dir := flag.String("dir", "input", "Output directory")
	count := flag.Int("count", 10, "Records per file")
	seed := flag.Int64("seed", 1, "Generator seed")
	invalidEvery := flag.Int("invalid-every", 0, "Make every Nth record fail validation (0 disables)")
	prefix := flag.String("prefix", "orders", "File name prefix")
	layoutName := flag.String("layout", fixedwidth.LayoutStandard, "Built-in fixed-width layout (standard, timestamped)")
	layoutFile := flag.String("layout-file", "", "JSON fixed-width layout file (overrides -layout)")
	flag.Parse()

	logger := log.New(os.Stdout, "[fixtures] ", log.LstdFlags)

	var layout *fixedwidth.Layout
	var err error
	if *layoutFile != "" {
		layout, err = fixedwidth.LoadLayout(*layoutFile)
	} else {
		layout, err = fixedwidth.LayoutByName(*layoutName)
	}
	if err != nil {
		logger.Fatalf("Layout error: %v", err)
	}

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		logger.Fatalf("Create %s: %v", *dir, err)
	}

	names, err := pipeline.WriteFixtures(*dir, pipeline.FixtureOptions{
		Count:        *count,
		Seed:         *seed,
		InvalidEvery: *invalidEvery,
		Prefix:       *prefix,
		Layout:       layout,
	})
	if err != nil {
		logger.Fatalf("Write fixtures: %v", err)
	}
	logger.Printf("Wrote %d records to each of %v in %s", *count, names, *dir)
}
