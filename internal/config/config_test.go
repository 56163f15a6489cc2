package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canonical-trade-ingest/internal/fixedwidth"
)

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 500*time.Millisecond, cfg.SettleDelay)
	assert.Equal(t, 30*time.Second, cfg.ScanInterval)
	assert.Equal(t, 60*time.Second, cfg.ShutdownGrace)
	assert.Equal(t, "canonical.trades.queue", cfg.QueueDestination)
	assert.False(t, cfg.UsePostgres())
	assert.False(t, cfg.UseClickhouse())
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	err := cfg.FromEnv(mapLookup(map[string]string{
		"INPUT_DIR":          "/data/in",
		"WORKERS":            "8",
		"SETTLE_DELAY":       "2s",
		"POSTGRES_DSN":       "postgres://localhost/trades",
		"QUEUE_DESTINATION":  "",
		"USE_MEMORY":         "false",
		"REPUBLISH_INTERVAL": "1m",
	}))
	require.NoError(t, err)

	assert.Equal(t, "/data/in", cfg.InputDir)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 2*time.Second, cfg.SettleDelay)
	assert.Equal(t, time.Minute, cfg.RepublishInterval)
	assert.Equal(t, "canonical.trades.queue", cfg.QueueDestination, "empty values keep the default")
	assert.True(t, cfg.UsePostgres())
}

func TestFromEnv_Invalid(t *testing.T) {
	for key, value := range map[string]string{
		"WORKERS":       "many",
		"SCAN_INTERVAL": "soon",
		"USE_MEMORY":    "maybe",
	} {
		cfg := Default()
		err := cfg.FromEnv(mapLookup(map[string]string{key: value}))
		require.Error(t, err, key)
		assert.Contains(t, err.Error(), key)
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("WORKERS=2\nQUEUE_LOGIN=file-user\nHTTP_ADDR=:7000\n"), 0o600))

	// The environment wins over the file; flags win over both.
	t.Setenv("QUEUE_LOGIN", "env-user")
	t.Setenv("HTTP_ADDR", ":7001")
	t.Setenv("WORKERS", "")
	os.Unsetenv("WORKERS")

	cfg, err := Load(newFlagSet(), []string{"-http-addr", ":7002", "-use-memory"}, envFile)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, "env-user", cfg.QueueLogin)
	assert.Equal(t, ":7002", cfg.HTTPAddr)
	assert.True(t, cfg.UseMemory)
}

func TestLoad_MissingEnvFile(t *testing.T) {
	_, err := Load(newFlagSet(), nil, filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(newFlagSet(), []string{"-workers", "0"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers")
}

func TestUseStores(t *testing.T) {
	cfg := Default()
	cfg.PostgresDSN = "postgres://x"
	cfg.ClickhouseDSN = "clickhouse://x"
	assert.True(t, cfg.UsePostgres())
	assert.True(t, cfg.UseClickhouse())

	cfg.UseMemory = true
	assert.False(t, cfg.UsePostgres())
	assert.False(t, cfg.UseClickhouse())
}

func TestLayout(t *testing.T) {
	cfg := Default()
	layout, err := cfg.Layout()
	require.NoError(t, err)
	assert.Equal(t, fixedwidth.LayoutStandard, layout.Name)

	cfg.FixedWidthLayout = fixedwidth.LayoutTimestamped
	layout, err = cfg.Layout()
	require.NoError(t, err)
	assert.Equal(t, 129, layout.Width)

	cfg.FixedWidthLayout = "nope"
	_, err = cfg.Layout()
	assert.Error(t, err)

	cfg.FixedWidthLayoutFile = filepath.Join(t.TempDir(), "missing.json")
	_, err = cfg.Layout()
	assert.Error(t, err)
}
