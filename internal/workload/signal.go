package workload

import "sync/atomic"

// PowerLossSignal is a level flag raised by an asynchronous producer and cleared by
// the engine. Several raises between two observations collapse into one.
type PowerLossSignal struct {
	flag  atomic.Bool
	edges atomic.Uint64
}

// Raise sets the flag. Safe to call from any goroutine.
func (s *PowerLossSignal) Raise() {
	s.flag.Store(true)
	s.edges.Add(1)
}

// Pending reports the flag without clearing it.
func (s *PowerLossSignal) Pending() bool {
	return s.flag.Load()
}

// Take clears the flag and reports whether it was set, in one atomic step,
// so a Raise racing with the observation is never lost.
func (s *PowerLossSignal) Take() bool {
	return s.flag.Swap(false)
}

// Clear drops the flag unconditionally.
func (s *PowerLossSignal) Clear() {
	s.flag.Store(false)
}

// Edges counts every Raise since creation, including collapsed ones.
func (s *PowerLossSignal) Edges() uint64 {
	return s.edges.Load()
}

// Personal.AI order the ending
