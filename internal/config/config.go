// Package config resolves runtime settings from defaults, a .env file,
// environment variables and command-line flags, in that order of precedence
// (later wins).
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"canonical-trade-ingest/internal/fixedwidth"
	"canonical-trade-ingest/internal/queue"
)

// Config holds all runtime settings.
type Config struct {
	// Watcher
	InputDir      string
	Workers       int
	QueueSize     int
	SettleDelay   time.Duration
	ScanInterval  time.Duration
	ShutdownGrace time.Duration

	// Storage. Without a Postgres DSN, or with UseMemory, stores are in-memory.
	PostgresDSN   string
	ClickhouseDSN string
	UseMemory     bool

	// Message queue. Without a URL, events go to an in-process queue.
	QueueURL          string
	QueueLogin        string
	QueuePasscode     string
	QueueDestination  string
	RepublishInterval time.Duration // 0 disables the PENDING event sweep

	// Fixed-width layout: a file path wins over a built-in layout name.
	FixedWidthLayout     string
	FixedWidthLayoutFile string

	HTTPAddr string
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		InputDir:         "input",
		Workers:          4,
		QueueSize:        100,
		SettleDelay:      500 * time.Millisecond,
		ScanInterval:     30 * time.Second,
		ShutdownGrace:    60 * time.Second,
		QueueDestination: queue.DefaultDestination,
		FixedWidthLayout: fixedwidth.LayoutStandard,
		HTTPAddr:         ":8080",
	}
}

// LoadEnvFile loads variables from path into the environment without
// overriding variables already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// FromEnv applies environment variables on top of c. lookup is usually os.LookupEnv.
func (c *Config) FromEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"INPUT_DIR":               &c.InputDir,
		"POSTGRES_DSN":            &c.PostgresDSN,
		"CLICKHOUSE_DSN":          &c.ClickhouseDSN,
		"QUEUE_URL":               &c.QueueURL,
		"QUEUE_LOGIN":             &c.QueueLogin,
		"QUEUE_PASSCODE":          &c.QueuePasscode,
		"QUEUE_DESTINATION":       &c.QueueDestination,
		"FIXED_WIDTH_LAYOUT":      &c.FixedWidthLayout,
		"FIXED_WIDTH_LAYOUT_FILE": &c.FixedWidthLayoutFile,
		"HTTP_ADDR":               &c.HTTPAddr,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"WORKERS":    &c.Workers,
		"QUEUE_SIZE": &c.QueueSize,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"SETTLE_DELAY":       &c.SettleDelay,
		"SCAN_INTERVAL":      &c.ScanInterval,
		"SHUTDOWN_GRACE":     &c.ShutdownGrace,
		"REPUBLISH_INTERVAL": &c.RepublishInterval,
	}
	for key, dst := range durations {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}

	if v, ok := lookup("USE_MEMORY"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("USE_MEMORY: %w", err)
		}
		c.UseMemory = b
	}
	return nil
}

// RegisterFlags defines a flag for every setting, defaulting to the current value.
func (c *Config) RegisterFlags(flags *flag.FlagSet) {
	flags.StringVar(&c.InputDir, "input-dir", c.InputDir, "Directory watched for order files")
	flags.IntVar(&c.Workers, "workers", c.Workers, "Number of file processing workers")
	flags.IntVar(&c.QueueSize, "queue-size", c.QueueSize, "Capacity of the pending file queue")
	flags.DurationVar(&c.SettleDelay, "settle-delay", c.SettleDelay, "Wait after a file appears before processing it")
	flags.DurationVar(&c.ScanInterval, "scan-interval", c.ScanInterval, "Reconciliation scan interval")
	flags.DurationVar(&c.ShutdownGrace, "shutdown-grace", c.ShutdownGrace, "Time allowed for in-flight files on shutdown")
	flags.StringVar(&c.PostgresDSN, "postgres-dsn", c.PostgresDSN, "PostgreSQL connection string")
	flags.StringVar(&c.ClickhouseDSN, "clickhouse-dsn", c.ClickhouseDSN, "ClickHouse connection string for the processing audit log")
	flags.BoolVar(&c.UseMemory, "use-memory", c.UseMemory, "Use in-memory storage instead of PostgreSQL and ClickHouse")
	flags.StringVar(&c.QueueURL, "queue-url", c.QueueURL, "STOMP broker URL (tcp://, ssl://, ws:// or wss://)")
	flags.StringVar(&c.QueueLogin, "queue-login", c.QueueLogin, "Broker login")
	flags.StringVar(&c.QueuePasscode, "queue-passcode", c.QueuePasscode, "Broker passcode")
	flags.StringVar(&c.QueueDestination, "queue-destination", c.QueueDestination, "Destination for canonical trade events")
	flags.DurationVar(&c.RepublishInterval, "republish-interval", c.RepublishInterval, "Interval for retrying PENDING events (0 disables)")
	flags.StringVar(&c.FixedWidthLayout, "fixed-width-layout", c.FixedWidthLayout, "Built-in fixed-width layout (standard, timestamped)")
	flags.StringVar(&c.FixedWidthLayoutFile, "fixed-width-layout-file", c.FixedWidthLayoutFile, "JSON fixed-width layout file")
	flags.StringVar(&c.HTTPAddr, "http-addr", c.HTTPAddr, "HTTP address for /metrics, /health and on-demand processing")
}

// Validate checks settings for consistency.
func (c Config) Validate() error {
	var errs []error
	if c.InputDir == "" {
		errs = append(errs, errors.New("input dir is required"))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("queue size must be positive, got %d", c.QueueSize))
	}
	if c.SettleDelay < 0 || c.ScanInterval <= 0 || c.ShutdownGrace <= 0 || c.RepublishInterval < 0 {
		errs = append(errs, errors.New("durations must not be negative and scan interval and shutdown grace must be positive"))
	}
	if c.QueueDestination == "" {
		errs = append(errs, errors.New("queue destination is required"))
	}
	return errors.Join(errs...)
}

// UsePostgres reports whether trades, outbox events and processed files go to PostgreSQL.
func (c Config) UsePostgres() bool {
	return !c.UseMemory && c.PostgresDSN != ""
}

// UseClickhouse reports whether processing results go to ClickHouse.
func (c Config) UseClickhouse() bool {
	return !c.UseMemory && c.ClickhouseDSN != ""
}

// Layout resolves the fixed-width layout.
func (c Config) Layout() (*fixedwidth.Layout, error) {
	if c.FixedWidthLayoutFile != "" {
		return fixedwidth.LoadLayout(c.FixedWidthLayoutFile)
	}
	return fixedwidth.LayoutByName(c.FixedWidthLayout)
}

// Load resolves settings: defaults, then envFile, then the environment, then
// args parsed with flags. An empty envFile skips the file.
func Load(flags *flag.FlagSet, args []string, envFile string) (Config, error) {
	cfg := Default()
	if envFile != "" {
		if err := LoadEnvFile(envFile); err != nil {
			return cfg, err
		}
	}
	if err := cfg.FromEnv(os.LookupEnv); err != nil {
		return cfg, err
	}

	cfg.RegisterFlags(flags)
	if err := flags.Parse(args); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
