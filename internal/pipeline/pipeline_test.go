package pipeline

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canonical-trade-ingest/internal/config"
	"canonical-trade-ingest/internal/domain"
	"canonical-trade-ingest/internal/fixedwidth"
	"canonical-trade-ingest/internal/queue"
)

func buildMemory(t *testing.T, layout string) (*Pipeline, config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.InputDir = t.TempDir()
	cfg.UseMemory = true
	cfg.FixedWidthLayout = layout

	p, err := Build(context.Background(), cfg, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p, cfg
}

func TestBuild_MemoryEndToEnd(t *testing.T) {
	for _, layoutName := range []string{fixedwidth.LayoutStandard, fixedwidth.LayoutTimestamped} {
		t.Run(layoutName, func(t *testing.T) {
			p, cfg := buildMemory(t, layoutName)
			layout, err := cfg.Layout()
			require.NoError(t, err)

			names, err := WriteFixtures(cfg.InputDir, FixtureOptions{Count: 6, Seed: 7, InvalidEvery: 3, Layout: layout})
			require.NoError(t, err)
			require.Equal(t, []string{"orders.json", "orders.xml", "orders.csv", "orders.txt"}, names)

			ctx := context.Background()
			for _, name := range names {
				result, err := p.Orchestrator.ProcessFile(ctx, name)
				require.NoError(t, err, name)
				assert.Equal(t, domain.FileStatusPartialSuccess, result.Status, "%s: %v", name, result.Errors)
				assert.Equal(t, 6, result.TotalRecords, name)
				assert.Equal(t, 4, result.SuccessCount, name)
				assert.Equal(t, 2, result.FailedCount, name)
				assert.Equal(t, 4, result.PublishedCount, name)

				trades, err := p.Trades.GetBySourceFile(ctx, name)
				require.NoError(t, err)
				assert.Len(t, trades, 4)

				stored, err := p.Results.GetByFileName(ctx, name)
				require.NoError(t, err)
				assert.Len(t, stored, 1)
			}

			mq, ok := p.Publisher.(*queue.MemoryQueue)
			require.True(t, ok)
			assert.Equal(t, 16, mq.Len(cfg.QueueDestination))

			pending, err := p.Events.GetPending(ctx, 100)
			require.NoError(t, err)
			assert.Empty(t, pending)
		})
	}
}

func TestBuild_SameTradesAcrossFormats(t *testing.T) {
	p, cfg := buildMemory(t, fixedwidth.LayoutStandard)
	names, err := WriteFixtures(cfg.InputDir, FixtureOptions{Count: 4, Seed: 42})
	require.NoError(t, err)

	ctx := context.Background()
	var txIDs [][]string
	for _, name := range names {
		result, err := p.Orchestrator.ProcessFile(ctx, name)
		require.NoError(t, err)
		require.Equal(t, domain.FileStatusSuccess, result.Status, "%s: %v", name, result.Errors)

		var ids []string
		for _, tr := range result.Trades {
			ids = append(ids, tr.TransactionID)
		}
		txIDs = append(txIDs, ids)
	}
	for i := 1; i < len(txIDs); i++ {
		assert.Equal(t, txIDs[0], txIDs[i], names[i])
	}
}

func TestBuild_InvalidLayoutFile(t *testing.T) {
	cfg := config.Default()
	cfg.InputDir = t.TempDir()
	cfg.FixedWidthLayoutFile = filepath.Join(cfg.InputDir, "missing.json")

	_, err := Build(context.Background(), cfg, log.New(io.Discard, "", 0))
	assert.Error(t, err)
}

func TestGenerateOrders_Deterministic(t *testing.T) {
	a := GenerateOrders(FixtureOptions{Count: 5, Seed: 3})
	b := GenerateOrders(FixtureOptions{Count: 5, Seed: 3})
	c := GenerateOrders(FixtureOptions{Count: 5, Seed: 4})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	assert.Len(t, GenerateOrders(FixtureOptions{}), 10)
}

func TestWriteFixtures_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteFixtures(dir, FixtureOptions{Count: 2, Prefix: "batch"})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var got []string
	for _, e := range entries {
		got = append(got, e.Name())
	}
	assert.ElementsMatch(t, []string{"batch.json", "batch.xml", "batch.csv", "batch.txt"}, got)
}
