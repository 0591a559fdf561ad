package workload

import (
	"io"
	"sync"

	"github.com/turtacn/Brownout/pkg/consts"
	"github.com/turtacn/Brownout/pkg/logger"
)

var quietLog = logger.New(io.Discard, "error", "json")

// fakeClock advances by step on every read and calls onRead first.
type fakeClock struct {
	now    Micros
	step   Micros
	reads  int
	onRead func(read int)
}

func (c *fakeClock) NowMicros() Micros {
	c.reads++
	if c.onRead != nil {
		c.onRead(c.reads)
	}
	c.now += c.step
	return c.now
}

// scriptedPrimitive counts calls and lets a test raise the signal mid-chunk.
type scriptedPrimitive struct {
	calls  int
	onCall func(call int)
}

func (p *scriptedPrimitive) Run() {
	p.calls++
	if p.onCall != nil {
		p.onCall(p.calls)
	}
}

// seqRand replays vals modulo n.
type seqRand struct {
	vals []int
	i    int
}

func (r *seqRand) Intn(n int) int {
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v % n
}

type pinEvent struct {
	working  bool
	complete bool
}

type recordingIndicator struct {
	mu     sync.Mutex
	events []pinEvent
}

func (i *recordingIndicator) Working(on bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.events = append(i.events, pinEvent{working: on})
}

func (i *recordingIndicator) Complete() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.events = append(i.events, pinEvent{complete: true})
}

type recordingObserver struct {
	states   []consts.RunState
	chunks   []Outcome
	resizes  []Resize
	absorbed int
	finished []Result
}

func (o *recordingObserver) StateChanged(_, to consts.RunState) { o.states = append(o.states, to) }
func (o *recordingObserver) ChunkDone(_ int, out Outcome) { o.chunks = append(o.chunks, out) }
func (o *recordingObserver) Resized(_ ScalingPolicy, r Resize) { o.resizes = append(o.resizes, r) }
func (o *recordingObserver) LossAbsorbed() { o.absorbed++ }
func (o *recordingObserver) RunFinished(res Result) { o.finished = append(o.finished, res) }

func testSettings(policy ScalingPolicy, total uint64) Settings {
	return Settings{
		TotalWorkloadBytes: total,
		StartingScale:      CoarsestScale,
		DeadTimeMicros:     5,
		Policy:             policy,
		SuccessThreshold:   2,
		FailThreshold:      2,
		SkipSync:           true,
	}
}

func testState(policy ScalingPolicy) *EngineState {
	return NewState(testSettings(policy, 1<<20), &PowerLossSignal{})
}
