package workload

import "sync/atomic"

// EngineState is the single mutable record of a run. The workload loop owns it;
// the executor writes the working flag, the policy engine the counters, scale and
// bytes. PowerLoss is the only field touched from other goroutines.
type EngineState struct {
	PowerLoss *PowerLossSignal

	working atomic.Bool

	ChunkScale         ChunkScale
	StartingChunkScale ChunkScale

	// BytesProcessed only grows, and only on a committed chunk.
	BytesProcessed     uint64
	TotalWorkloadBytes uint64
	DeadTimeMicros     uint32
	Policy             ScalingPolicy

	// At most one of the two streaks is non-zero.
	ConsecutiveFailures  uint16
	ConsecutiveSuccesses uint16

	FailThreshold    uint16
	SuccessThreshold uint16
}

// NewState builds the state for settings s around sig and resets it.
func NewState(s Settings, sig *PowerLossSignal) *EngineState {
	st := &EngineState{
		PowerLoss:          sig,
		StartingChunkScale: s.StartingScale,
		TotalWorkloadBytes: s.TotalWorkloadBytes,
		DeadTimeMicros:     s.DeadTimeMicros,
		Policy:             s.Policy,
		FailThreshold:      s.FailThreshold,
		SuccessThreshold:   s.SuccessThreshold,
	}
	st.Init()
	return st
}

// Init resets the runtime fields. Configuration fields are untouched.
func (st *EngineState) Init() {
	st.PowerLoss.Clear()
	st.working.Store(false)
	st.ChunkScale = st.StartingChunkScale
	st.BytesProcessed = 0
	st.ConsecutiveFailures = 0
	st.ConsecutiveSuccesses = 0
}

// Working reports whether a chunk is executing. Readable from any goroutine.
func (st *EngineState) Working() bool {
	return st.working.Load()
}

// Done reports whether the committed bytes reached the workload target.
func (st *EngineState) Done() bool {
	return st.BytesProcessed >= st.TotalWorkloadBytes
}

func (st *EngineState) failuresTripped() bool {
	return st.ConsecutiveFailures >= st.FailThreshold
}

func (st *EngineState) successesTripped() bool {
	return st.ConsecutiveSuccesses >= st.SuccessThreshold
}

// Personal.AI order the ending
