package consts

import "time"

// RunState defines the lifecycle state of the workload loop.
type RunState string

const (
	StateAwaitingSync RunState = "AWAITING_SYNC" // Waiting for the first power-loss edge
	StateRunning      RunState = "RUNNING"       // Chunk -> dead-time -> termination check
	StateCompleted    RunState = "COMPLETED"     // Terminal, completion indicator asserted
)

// RunEvent names the transitions of the workload loop.
type RunEvent string

const (
	EventSync   RunEvent = "sync"
	EventFinish RunEvent = "finish"
	EventAbort  RunEvent = "abort"
)

// Outcome of a finished run.
const (
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
	OutcomeFailed    = "failed"
)

// Fixture defaults
const (
	DefaultTotalWorkloadBytes = 3145728 // ~30s of work on the reference fixture
	DefaultDeadTimeMicros     = 1000
	DefaultSuccessThreshold   = 8
	DefaultFailThreshold      = 1
	DefaultPolicy             = "none"

	// PrimitiveBlockSize is the number of bytes covered by one primitive operation.
	// Every chunk size is a multiple of it.
	PrimitiveBlockSize = 16

	// MaxThreshold bounds both policy thresholds (16-bit counters).
	MaxThreshold = 65535
)

// Power-loss producer modes
const (
	PowerLossOff      = "off"
	PowerLossPeriodic = "periodic"
	PowerLossRandom   = "random"
)

// Elapsed-time sources
const (
	ClockMonotonic = "monotonic"
	ClockTick      = "tick"
)

const (
	DefaultTickPeriod       = 100 * time.Microsecond
	DefaultPowerLossPeriod  = 50 * time.Millisecond
	DefaultStorePath        = "brownout.db"
	DefaultConfigPath       = "brownout.yaml"
	EnvConfigPath           = "BROWNOUT_CONFIG"
	DefaultTriggerLineLimit = 256
)

// Personal.AI order the ending
