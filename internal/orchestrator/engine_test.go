package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/Brownout/internal/monitor"
	"github.com/turtacn/Brownout/internal/store"
	"github.com/turtacn/Brownout/internal/workload"
	"github.com/turtacn/Brownout/pkg/consts"
	"github.com/turtacn/Brownout/pkg/errors"
	"github.com/turtacn/Brownout/pkg/protocol"
)

func smallConfig() *protocol.Config {
	cfg := protocol.Default()
	cfg.Workload.TotalBytes = 16 * 1024
	cfg.Workload.DeadTimeMicros = 0
	cfg.Workload.Seed = 1
	return &cfg
}

func TestNewEngine(t *testing.T) {
	e, err := NewEngine(smallConfig())
	require.NoError(t, err)
	assert.Equal(t, "none", e.Settings().PolicyName)

	bad := smallConfig()
	bad.Workload.Policy = "zigzag"
	_, err = NewEngine(bad)
	assert.True(t, errors.HasCode(err, errors.ErrCodePolicyUnknown))
}

func TestEngine_RunWithoutProducers(t *testing.T) {
	e, err := NewEngine(smallConfig())
	require.NoError(t, err)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, consts.OutcomeCompleted, res.Outcome)
	assert.Equal(t, uint64(16*1024), res.BytesProcessed)
	assert.Equal(t, uint64(16), res.ChunksSucceeded)
}

func TestEngine_RunRecordsToLedger(t *testing.T) {
	ledger, err := store.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer ledger.Close()

	cfg := smallConfig()
	cfg.Workload.Policy = "linear"
	e, err := NewEngine(cfg, WithLedger(ledger))
	require.NoError(t, err)

	_, err = e.Run(context.Background())
	require.NoError(t, err)

	recs, err := ledger.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "linear", recs[0].Policy)
	assert.Equal(t, "off", recs[0].PowerLossMode)
	assert.Equal(t, uint64(16*1024), recs[0].BytesProcessed)
}

func TestEngine_RunWithPeriodicPowerLoss(t *testing.T) {
	cfg := smallConfig()
	cfg.Workload.TotalBytes = 256 * 1024
	cfg.Workload.Policy = "linear"
	cfg.Workload.FailThreshold = 1
	cfg.PowerLoss = protocol.PowerLossConfig{Mode: "periodic", Interval: "1ms"}

	e, err := NewEngine(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	res, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, consts.OutcomeCompleted, res.Outcome)
	assert.GreaterOrEqual(t, res.BytesProcessed, uint64(256*1024))
	assert.Equal(t, res.Resizes, res.ChunksInterrupted, "fail threshold 1 resizes on every interruption")
}

func TestEngine_RunRejectsBadEmulator(t *testing.T) {
	cfg := smallConfig()
	cfg.PowerLoss.Mode = "sometimes"
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	_, err = e.Run(context.Background())
	assert.True(t, errors.HasCode(err, errors.ErrCodeEmulatorConfig))
}

func TestEngine_Abort(t *testing.T) {
	cfg := smallConfig()
	e, err := NewEngine(cfg, WithAbort(workload.AbortFunc(func() bool { return true })))
	require.NoError(t, err)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, consts.OutcomeAborted, res.Outcome)
	assert.Zero(t, res.BytesProcessed)
}

func TestEngine_Sweep(t *testing.T) {
	e, err := NewEngine(smallConfig())
	require.NoError(t, err)

	entries, err := e.Sweep(context.Background(), []workload.ChunkScale{0, 3, workload.FinestScale})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, uint64(16), entries[0].Result.ChunksSucceeded)
	assert.Equal(t, uint64(128), entries[1].Result.ChunksSucceeded)
	assert.Equal(t, uint64(1024), entries[2].Result.ChunksSucceeded)

	_, ok := Best(entries)
	assert.True(t, ok)
}

func TestBest(t *testing.T) {
	entries := []SweepEntry{
		{Scale: 0, Result: workload.Result{Outcome: "completed", BytesProcessed: 100, Elapsed: time.Second}},
		{Scale: 1, Result: workload.Result{Outcome: "aborted", BytesProcessed: 900, Elapsed: time.Second}},
		{Scale: 2, Result: workload.Result{Outcome: "completed", BytesProcessed: 300, Elapsed: time.Second}},
	}
	best, ok := Best(entries)
	require.True(t, ok)
	assert.Equal(t, workload.ChunkScale(2), best.Scale)

	_, ok = Best(nil)
	assert.False(t, ok)
}

func TestEngine_TickClock(t *testing.T) {
	cfg := smallConfig()
	cfg.Workload.DeadTimeMicros = 50
	cfg.Clock = protocol.ClockConfig{Source: consts.ClockTick, TickPeriod: "10us"}
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, consts.OutcomeCompleted, res.Outcome)
}

func TestNewEngine_RejectsClock(t *testing.T) {
	for _, c := range []protocol.ClockConfig{
		{Source: "sundial"},
		{Source: consts.ClockTick, TickPeriod: "soon"},
		{Source: consts.ClockTick, TickPeriod: "100ns"},
	} {
		cfg := smallConfig()
		cfg.Clock = c
		_, err := NewEngine(cfg)
		assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid), "clock %+v", c)
	}
}

// hookPrimitive calls fn on every primitive operation.
type hookPrimitive struct {
	fn func()
}

func (p hookPrimitive) Run() { p.fn() }

func TestEngine_SweepClearsCompletionBetweenRuns(t *testing.T) {
	completedState := monitor.RunState.WithLabelValues(string(consts.StateCompleted))
	completeHigh, stateHigh, ops := 0, 0, 0
	prim := hookPrimitive{fn: func() {
		ops++
		if testutil.ToFloat64(monitor.CompletePin) != 0 {
			completeHigh++
		}
		if testutil.ToFloat64(completedState) != 0 {
			stateHigh++
		}
	}}

	cfg := smallConfig()
	cfg.Workload.TotalBytes = 2048
	e, err := NewEngine(cfg, WithRunnerOptions(workload.WithPrimitive(prim)))
	require.NoError(t, err)

	entries, err := e.Sweep(context.Background(), []workload.ChunkScale{0, 1})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 2*2048/consts.PrimitiveBlockSize, ops)
	assert.Zero(t, completeHigh, "completion pin high while chunks ran")
	assert.Zero(t, stateHigh, "COMPLETED state high while chunks ran")
	assert.Equal(t, 1.0, testutil.ToFloat64(monitor.CompletePin))
	assert.Equal(t, 1.0, testutil.ToFloat64(completedState))
}

func TestEngine_BackToBackRunsShareSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trigger.sock")
	missing := 0
	first := true
	prim := hookPrimitive{fn: func() {
		if first {
			first = false
			if _, err := os.Stat(path); err != nil {
				missing++
			}
		}
	}}

	cfg := smallConfig()
	cfg.Workload.TotalBytes = 1024
	cfg.Workload.SkipSync = true
	cfg.PowerLoss.SocketPath = path
	e, err := NewEngine(cfg, WithRunnerOptions(workload.WithPrimitive(prim)))
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		first = true
		res, err := e.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, consts.OutcomeCompleted, res.Outcome)

		_, err = os.Stat(path)
		assert.True(t, os.IsNotExist(err), "socket still present after run %d returned", i)
	}
	assert.Zero(t, missing, "socket missing while a run was live")
}

func TestEngine_FirstPeriodicEdgeSyncs(t *testing.T) {
	cfg := smallConfig()
	cfg.PowerLoss = protocol.PowerLossConfig{Mode: consts.PowerLossPeriodic, Interval: "1h"}
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := e.Run(ctx)
	require.NoError(t, err, "only the immediate first edge can start the run")
	assert.Equal(t, consts.OutcomeCompleted, res.Outcome)
}
