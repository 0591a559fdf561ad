package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/Brownout/internal/monitor"
	"github.com/turtacn/Brownout/internal/powerloss"
	"github.com/turtacn/Brownout/internal/store"
	"github.com/turtacn/Brownout/internal/workload"
	"github.com/turtacn/Brownout/pkg/consts"
	"github.com/turtacn/Brownout/pkg/errors"
	"github.com/turtacn/Brownout/pkg/logger"
	"github.com/turtacn/Brownout/pkg/protocol"
)

// Engine wires configuration, power-loss producers, the workload runner,
// metrics and the results ledger.
type Engine struct {
	cfg      *protocol.Config
	settings workload.Settings
	ledger   *store.Ledger
	abort    workload.AbortSource
	recorder *monitor.Recorder
	tick     time.Duration // zero selects the monotonic clock
	extra    []workload.Option
}

type Option func(*Engine)

// WithLedger records every finished run.
func WithLedger(l *store.Ledger) Option { return func(e *Engine) { e.ledger = l } }

// WithAbort installs the operator abort input.
func WithAbort(a workload.AbortSource) Option { return func(e *Engine) { e.abort = a } }

// WithRunnerOptions passes options through to every runner.
func WithRunnerOptions(opts ...workload.Option) Option {
	return func(e *Engine) { e.extra = append(e.extra, opts...) }
}

// NewEngine validates the workload section of cfg.
func NewEngine(cfg *protocol.Config, opts ...Option) (*Engine, error) {
	s, err := workload.NewSettings(cfg.Workload)
	if err != nil {
		return nil, err
	}
	tick, err := tickPeriod(cfg.Clock)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:      cfg,
		settings: s,
		recorder: monitor.NewRecorder(),
		tick:     tick,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Settings returns the validated settings for display.
func (e *Engine) Settings() workload.SettingsView {
	return e.settings.View()
}

// Run performs one run with the configured settings.
func (e *Engine) Run(ctx context.Context) (workload.Result, error) {
	return e.run(ctx, e.settings)
}

// SweepEntry is the outcome of one sweep step.
type SweepEntry struct {
	Scale  workload.ChunkScale
	Result workload.Result
}

// Sweep runs once per starting scale (all scales when none are given) and
// stops at the first error, returning what finished so far.
func (e *Engine) Sweep(ctx context.Context, scales []workload.ChunkScale) ([]SweepEntry, error) {
	if len(scales) == 0 {
		scales = workload.Scales()
	}
	var out []SweepEntry
	for _, scale := range scales {
		s := e.settings
		s.StartingScale = scale
		logger.Log.Info("Sweep step", "scale", scale, "policy", s.Policy.String())

		res, err := e.run(ctx, s)
		if err != nil {
			return out, err
		}
		out = append(out, SweepEntry{Scale: scale, Result: res})
		if res.Outcome != consts.OutcomeCompleted {
			break
		}
	}
	return out, nil
}

// Best picks the completed entry with the highest throughput.
func Best(entries []SweepEntry) (SweepEntry, bool) {
	var best SweepEntry
	found := false
	for _, en := range entries {
		if en.Result.Outcome != consts.OutcomeCompleted {
			continue
		}
		if !found || en.Result.Throughput() > best.Result.Throughput() {
			best, found = en, true
		}
	}
	return best, found
}

func (e *Engine) run(ctx context.Context, s workload.Settings) (workload.Result, error) {
	if !e.hasProducers() && !s.SkipSync {
		logger.Log.Info("No power-loss producer configured, starting without sync")
		s.SkipSync = true
	}

	runCtx, cancel := context.WithCancel(ctx)
	var producers sync.WaitGroup
	defer func() {
		cancel()
		producers.Wait()
	}()

	opts := []workload.Option{
		workload.WithIndicator(e.recorder),
		workload.WithObserver(e.recorder),
	}
	if e.abort != nil {
		opts = append(opts, workload.WithAbort(e.abort))
	}
	if e.tick > 0 {
		clock := workload.NewTickClock(e.tick)
		clock.Start(runCtx)
		opts = append(opts, workload.WithClock(clock))
	}
	opts = append(opts, e.extra...)

	// The runner resets the signal when built, so it must exist before the
	// first producer can raise the sync edge.
	sig := &workload.PowerLossSignal{}
	runner := workload.NewRunner(s, sig, opts...)
	if err := e.startProducers(runCtx, &producers, sig, s.Seed); err != nil {
		return workload.Result{}, err
	}

	started := time.Now()
	res, runErr := runner.Run(runCtx)

	if e.ledger != nil && res.Outcome != "" {
		if _, err := e.ledger.Append(context.WithoutCancel(ctx), e.toRecord(s, started, res)); err != nil {
			logger.Log.Error("Failed to record run", "err", err)
			if runErr == nil {
				runErr = err
			}
		}
	}
	return res, runErr
}

func tickPeriod(c protocol.ClockConfig) (time.Duration, error) {
	switch c.Source {
	case "", consts.ClockMonotonic:
		return 0, nil
	case consts.ClockTick:
		if c.TickPeriod == "" {
			return consts.DefaultTickPeriod, nil
		}
		d, err := time.ParseDuration(c.TickPeriod)
		if err != nil || d < time.Microsecond {
			return 0, errors.New(errors.ErrCodeConfigInvalid, "Configure", "invalid tick period "+c.TickPeriod, err)
		}
		return d, nil
	default:
		return 0, errors.Newf(errors.ErrCodeConfigInvalid, "Configure", "unknown clock source %q", c.Source)
	}
}

func (e *Engine) hasProducers() bool {
	pl := e.cfg.PowerLoss
	return (pl.Mode != "" && pl.Mode != consts.PowerLossOff) || pl.Signal || pl.SocketPath != ""
}

// startProducers launches every configured power-loss producer on wg. They
// stop when ctx is done.
func (e *Engine) startProducers(ctx context.Context, wg *sync.WaitGroup, sig *workload.PowerLossSignal, seed int64) error {
	em, err := powerloss.NewEmulator(e.cfg.PowerLoss, sig, seed)
	if err != nil {
		return err
	}
	if em != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			em.Run(ctx)
		}()
	}
	if e.cfg.PowerLoss.Signal {
		done := powerloss.WatchSignals(ctx, sig)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-done
		}()
	}
	if e.cfg.PowerLoss.SocketPath != "" {
		trigger := powerloss.NewSocketTrigger(e.cfg.PowerLoss.SocketPath, sig)
		if err := trigger.Listen(); err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			trigger.Serve(ctx)
		}()
	}
	return nil
}

func (e *Engine) toRecord(s workload.Settings, started time.Time, res workload.Result) store.Record {
	mode := e.cfg.PowerLoss.Mode
	if mode == "" {
		mode = consts.PowerLossOff
	}
	return store.Record{
		StartedAt:         started,
		Policy:            s.Policy.String(),
		StartingScale:     int(s.StartingScale),
		FinalScale:        int(res.FinalScale),
		DeadTimeMicros:    s.DeadTimeMicros,
		SuccessThreshold:  int(s.SuccessThreshold),
		FailThreshold:     int(s.FailThreshold),
		PowerLossMode:     mode,
		TotalBytes:        s.TotalWorkloadBytes,
		BytesProcessed:    res.BytesProcessed,
		ChunksSucceeded:   res.ChunksSucceeded,
		ChunksInterrupted: res.ChunksInterrupted,
		AbsorbedLosses:    res.AbsorbedLosses,
		Resizes:           res.Resizes,
		Elapsed:           res.Elapsed,
		Outcome:           res.Outcome,
	}
}

// Personal.AI order the ending
