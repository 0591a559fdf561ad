package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/Brownout/pkg/errors"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func record(policy string, bytes uint64, elapsed time.Duration, outcome string) Record {
	return Record{
		StartedAt:        time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
		Policy:           policy,
		DeadTimeMicros:   1000,
		SuccessThreshold: 8,
		FailThreshold:    1,
		PowerLossMode:    "periodic",
		TotalBytes:       bytes,
		BytesProcessed:   bytes,
		ChunksSucceeded:  bytes / 1024,
		Elapsed:          elapsed,
		Outcome:          outcome,
	}
}

func TestLedger_AppendAndRecent(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	first, err := l.Append(ctx, record("none", 4096, time.Second, "completed"))
	require.NoError(t, err)
	second, err := l.Append(ctx, record("linear", 8192, 2*time.Second, "aborted"))
	require.NoError(t, err)
	assert.Greater(t, second, first)

	recs, err := l.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, second, recs[0].ID, "newest first")
	assert.Equal(t, "linear", recs[0].Policy)
	assert.Equal(t, uint64(8192), recs[0].BytesProcessed)
	assert.Equal(t, 2*time.Second, recs[0].Elapsed)
	assert.Equal(t, "periodic", recs[0].PowerLossMode)
	assert.True(t, recs[1].StartedAt.Equal(time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)))

	recs, err = l.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestLedger_BestPerPolicy(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	for _, r := range []Record{
		record("none", 4096, 4*time.Second, "completed"),     // 1024 B/s
		record("none", 4096, time.Second, "completed"),       // 4096 B/s
		record("linear", 4096, 2*time.Second, "completed"),   // 2048 B/s
		record("linear", 8192, time.Second/2, "aborted"),     // ignored
		record("random", 1024, 10*time.Second, "completed"), // 102.4 B/s
	} {
		_, err := l.Append(ctx, r)
		require.NoError(t, err)
	}

	best, err := l.BestPerPolicy(ctx)
	require.NoError(t, err)
	require.Len(t, best, 3)
	assert.Equal(t, "none", best[0].Policy)
	assert.InDelta(t, 4096, best[0].Throughput(), 1e-6)
	assert.Equal(t, "linear", best[1].Policy)
	assert.Equal(t, "completed", best[1].Outcome)
	assert.Equal(t, "random", best[2].Policy)
}

func TestLedger_OpenFailure(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "no", "such", "dir", "runs.db"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeLedgerOpen))
}

func TestLedger_WriteAfterClose(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	l.Close()

	_, err = l.Append(context.Background(), record("none", 1024, time.Second, "completed"))
	assert.True(t, errors.HasCode(err, errors.ErrCodeLedgerWrite))
}

func TestRecord_Throughput(t *testing.T) {
	assert.Zero(t, Record{BytesProcessed: 10}.Throughput())
	assert.InDelta(t, 512.0, Record{BytesProcessed: 1024, Elapsed: 2 * time.Second}.Throughput(), 1e-9)
}
