package workload

import (
	"context"
	"math/rand"
	"time"

	"github.com/turtacn/Brownout/pkg/consts"
	"github.com/turtacn/Brownout/pkg/errors"
	"github.com/turtacn/Brownout/pkg/fsm"
	"github.com/turtacn/Brownout/pkg/logger"
)

// AbortSource is polled once at the top of every running cycle.
type AbortSource interface {
	PollAbort() bool
}

// AbortFunc adapts a function to AbortSource.
type AbortFunc func() bool

func (f AbortFunc) PollAbort() bool { return f() }

// Observer receives run telemetry. Calls happen on the runner goroutine.
type Observer interface {
	StateChanged(from, to consts.RunState)
	ChunkDone(bytes int, outcome Outcome)
	Resized(policy ScalingPolicy, r Resize)
	LossAbsorbed()
	RunFinished(res Result)
}

// Result summarizes a finished run.
type Result struct {
	Outcome           string        `json:"outcome"`
	BytesProcessed    uint64        `json:"bytes_processed"`
	Elapsed           time.Duration `json:"elapsed"`
	ChunksSucceeded   uint64        `json:"chunks_succeeded"`
	ChunksInterrupted uint64        `json:"chunks_interrupted"`
	AbsorbedLosses    uint64        `json:"absorbed_losses"`
	Resizes           uint64        `json:"resizes"`
	FinalScale        ChunkScale    `json:"final_scale"`
}

// Throughput is committed bytes per second of wall time.
func (r Result) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.BytesProcessed) / r.Elapsed.Seconds()
}

// Runner drives the workload loop: AWAITING_SYNC -> RUNNING -> COMPLETED.
type Runner struct {
	settings Settings
	signal   *PowerLossSignal
	state    *EngineState
	clock    Clock
	exec     *Executor
	policy   *PolicyEngine
	abort    AbortSource
	ind      Indicator
	observer Observer
	fsm      *fsm.StateMachine
	log      logger.Logger
	prim     Primitive

	started time.Time
	result  Result
}

type Option func(*Runner)

func WithClock(c Clock) Option { return func(r *Runner) { r.clock = c } }
func WithAbort(a AbortSource) Option { return func(r *Runner) { r.abort = a } }
func WithIndicator(i Indicator) Option { return func(r *Runner) { r.ind = i } }
func WithObserver(o Observer) Option { return func(r *Runner) { r.observer = o } }
func WithRand(rng Rand) Option { return func(r *Runner) { r.policy = NewPolicyEngine(rng) } }
func WithLogger(l logger.Logger) Option { return func(r *Runner) { r.log = l } }
func WithPrimitive(p Primitive) Option { return func(r *Runner) { r.prim = p } }

// NewRunner prepares a run of s. The signal is shared with the power-loss producers.
func NewRunner(s Settings, sig *PowerLossSignal, opts ...Option) *Runner {
	r := &Runner{
		settings: s,
		signal:   sig,
		state:    NewState(s, sig),
		log:      logger.Log,
		fsm:      fsm.New(fsm.State(consts.StateAwaitingSync)),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.clock == nil {
		r.clock = NewMonotonicClock()
	}
	if r.ind == nil {
		r.ind = nopIndicator{}
	}
	if r.prim == nil {
		r.prim = NewAESPrimitive()
	}
	r.exec = NewExecutor(r.prim, r.ind)
	if r.policy == nil {
		seed := s.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		r.policy = NewPolicyEngine(rand.New(rand.NewSource(seed)))
	}
	if r.abort == nil {
		r.abort = AbortFunc(func() bool { return false })
	}
	r.log = r.log.With("policy", s.Policy.String())
	r.setupFSM()
	return r
}

func (r *Runner) setupFSM() {
	awaiting := fsm.State(consts.StateAwaitingSync)
	running := fsm.State(consts.StateRunning)
	completed := fsm.State(consts.StateCompleted)

	r.fsm.AddTransition(awaiting, running, fsm.Event(consts.EventSync), r.onSync)
	r.fsm.AddTransition(running, completed, fsm.Event(consts.EventFinish), r.onComplete)
	r.fsm.AddTransition(running, completed, fsm.Event(consts.EventAbort), r.onComplete)
	r.fsm.MarkTerminal(completed)

	r.fsm.OnTransition(func(from, to fsm.State, event fsm.Event) {
		r.log.Info("Workload state changed", "from", from, "to", to, "event", event)
		if r.observer != nil {
			r.observer.StateChanged(consts.RunState(from), consts.RunState(to))
		}
	})
}

// Phase is the current loop state.
func (r *Runner) Phase() consts.RunState { return consts.RunState(r.fsm.Current()) }

// Run executes the loop to COMPLETED and blocks until then. A keypress abort
// ends the run with outcome "aborted" and no error; a cancelled ctx does the
// same but returns an ErrCodeRunCancelled error. An unknown policy is fatal.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if !r.settings.SkipSync {
		if err := r.awaitSync(ctx); err != nil {
			return Result{}, err
		}
	}
	if err := r.fsm.Fire(fsm.Event(consts.EventSync)); err != nil {
		return Result{}, err
	}

	var cancelErr error
	for !r.fsm.Done() {
		if err := ctx.Err(); err != nil {
			cancelErr = errors.New(errors.ErrCodeRunCancelled, "Run", "run cancelled", err)
			if err := r.fsm.Fire(fsm.Event(consts.EventAbort), consts.OutcomeAborted); err != nil {
				r.log.Error("Abort transition failed", "err", err)
				return r.snapshot(consts.OutcomeAborted), err
			}
			break
		}
		if r.abort.PollAbort() {
			r.log.Warn("Abort requested by operator")
			if err := r.fsm.Fire(fsm.Event(consts.EventAbort), consts.OutcomeAborted); err != nil {
				r.log.Error("Abort transition failed", "err", err)
				return r.snapshot(consts.OutcomeAborted), err
			}
			break
		}
		if err := r.cycle(ctx); err != nil {
			r.log.Error("Workload loop halted", "err", err, "scale", r.state.ChunkScale)
			return r.snapshot(consts.OutcomeFailed), err
		}
	}
	return r.result, cancelErr
}

// awaitSync spins until the first power-loss edge, the start handshake with the
// external trigger.
func (r *Runner) awaitSync(ctx context.Context) error {
	r.log.Info("Awaiting first power-loss edge")
	for !r.signal.Pending() {
		if err := ctx.Err(); err != nil {
			return errors.New(errors.ErrCodeSyncCancelled, "AwaitSync", "cancelled before the first power-loss edge", err)
		}
	}
	return nil
}

func (r *Runner) onSync(event fsm.Event, args ...interface{}) error {
	r.signal.Clear()
	r.state.Init()
	r.result = Result{}
	r.started = time.Now()
	return nil
}

func (r *Runner) onComplete(event fsm.Event, args ...interface{}) error {
	outcome := consts.OutcomeCompleted
	if len(args) > 0 {
		if s, ok := args[0].(string); ok {
			outcome = s
		}
	}
	r.result = r.snapshot(outcome)
	r.ind.Complete()
	if r.observer != nil {
		r.observer.RunFinished(r.result)
	}
	r.log.Info("Workload finished",
		"outcome", outcome,
		"bytes", r.result.BytesProcessed,
		"elapsed", r.result.Elapsed,
		"interrupted", r.result.ChunksInterrupted)
	return nil
}

// cycle is one chunk, its accounting, the dead-time wait and the termination check.
func (r *Runner) cycle(ctx context.Context) error {
	size := r.state.ChunkScale.Bytes()
	outcome := r.exec.ExecuteChunk(r.state)

	resize, err := r.policy.ApplyOutcome(r.state, outcome)
	if err != nil {
		return err
	}
	if outcome == Success {
		r.result.ChunksSucceeded++
	} else {
		r.result.ChunksInterrupted++
	}
	if r.observer != nil {
		r.observer.ChunkDone(size, outcome)
	}
	if resize.Trigger != TriggerNone {
		r.result.Resizes++
		r.log.Debug("Chunk scale resized", "trigger", resize.Trigger, "from", resize.From, "to", resize.To)
		if r.observer != nil {
			r.observer.Resized(r.state.Policy, resize)
		}
	}

	r.deadTime(ctx)

	if r.state.Done() {
		return r.fsm.Fire(fsm.Event(consts.EventFinish), consts.OutcomeCompleted)
	}
	return nil
}

// deadTime busy-waits DeadTimeMicros. A power loss arriving here is not a chunk
// event: it is cleared and the wait starts over.
func (r *Runner) deadTime(ctx context.Context) {
	wait := Micros(r.state.DeadTimeMicros)
	start := r.clock.NowMicros()
	for {
		if r.signal.Take() {
			r.result.AbsorbedLosses++
			if r.observer != nil {
				r.observer.LossAbsorbed()
			}
			start = r.clock.NowMicros()
		}
		if r.clock.NowMicros().Since(start) >= wait {
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (r *Runner) snapshot(outcome string) Result {
	res := r.result
	res.Outcome = outcome
	res.BytesProcessed = r.state.BytesProcessed
	res.FinalScale = r.state.ChunkScale
	if !r.started.IsZero() {
		res.Elapsed = time.Since(r.started)
	}
	return res
}

// Personal.AI order the ending
