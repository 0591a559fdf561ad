package workload

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/turtacn/Brownout/pkg/errors"
)

// ScalingPolicy selects how the chunk scale reacts to outcome streaks.
type ScalingPolicy uint8

const (
	PolicyNone ScalingPolicy = iota
	PolicyLinear
	PolicyRandom
	PolicyRandomAdaptive
	PolicyLinearAdaptive
)

var policyNames = [...]string{
	PolicyNone:           "none",
	PolicyLinear:         "linear",
	PolicyRandom:         "random",
	PolicyRandomAdaptive: "random-adaptive",
	PolicyLinearAdaptive: "linear-adaptive",
}

// Policies lists every known policy in selector order.
func Policies() []ScalingPolicy {
	return []ScalingPolicy{PolicyNone, PolicyLinear, PolicyRandom, PolicyRandomAdaptive, PolicyLinearAdaptive}
}

func (p ScalingPolicy) Valid() bool {
	return int(p) < len(policyNames)
}

func (p ScalingPolicy) String() string {
	if !p.Valid() {
		return fmt.Sprintf("unknown(%d)", uint8(p))
	}
	return policyNames[p]
}

// ParsePolicy accepts a policy name (case-insensitive, '_' or '-') or its selector number.
func ParsePolicy(s string) (ScalingPolicy, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for i, n := range policyNames {
		if n == name {
			return ScalingPolicy(i), nil
		}
	}
	if n, err := strconv.Atoi(name); err == nil && n >= 0 && n < len(policyNames) {
		return ScalingPolicy(n), nil
	}
	return 0, errors.Newf(errors.ErrCodePolicyUnknown, "ParsePolicy",
		"unknown scaling policy %q (want one of %s)", s, strings.Join(policyNames[:], ", "))
}

// Outcome of one chunk attempt.
type Outcome int

const (
	Success Outcome = iota
	Interrupted
)

func (o Outcome) String() string {
	if o == Success {
		return "success"
	}
	return "interrupted"
}

// Trigger records which streak caused a resize.
type Trigger string

const (
	TriggerNone    Trigger = ""
	TriggerFailure Trigger = "failure"
	TriggerSuccess Trigger = "success"
)

// Resize describes the decision taken for one outcome. Trigger is empty when the
// policy took no action; From may equal To after a random re-roll.
type Resize struct {
	Trigger Trigger
	From    ChunkScale
	To      ChunkScale
}

// Rand is the randomness the random policies draw ordinals from.
type Rand interface {
	Intn(n int) int
}

// PolicyEngine applies outcomes to the engine state.
type PolicyEngine struct {
	rng Rand
}

func NewPolicyEngine(rng Rand) *PolicyEngine {
	return &PolicyEngine{rng: rng}
}

// ApplyOutcome accounts for the outcome, lets the configured policy resize the
// next chunk, then clears the power-loss flag. It must run exactly once per chunk.
// The only error is an unknown policy, which leaves the scale untouched.
func (p *PolicyEngine) ApplyOutcome(st *EngineState, o Outcome) (Resize, error) {
	switch o {
	case Success:
		st.BytesProcessed += uint64(st.ChunkScale.Bytes())
		st.ConsecutiveFailures = 0
		st.ConsecutiveSuccesses = bump(st.ConsecutiveSuccesses)
	case Interrupted:
		st.ConsecutiveSuccesses = 0
		st.ConsecutiveFailures = bump(st.ConsecutiveFailures)
	}

	resize, err := p.resize(st)
	if err != nil {
		return Resize{From: st.ChunkScale, To: st.ChunkScale}, err
	}

	st.PowerLoss.Clear()
	return resize, nil
}

func (p *PolicyEngine) resize(st *EngineState) (Resize, error) {
	var fn func(*EngineState) Trigger
	switch st.Policy {
	case PolicyNone:
		fn = p.resizeNone
	case PolicyLinear:
		fn = p.resizeLinear
	case PolicyRandom:
		fn = p.resizeRandom
	case PolicyRandomAdaptive:
		fn = p.resizeRandomAdaptive
	case PolicyLinearAdaptive:
		fn = p.resizeLinearAdaptive
	default:
		return Resize{}, errors.Newf(errors.ErrCodePolicyDispatch, "ApplyOutcome",
			"unrecognized scaling policy %s, chunk scale frozen at %s", st.Policy, st.ChunkScale)
	}
	from := st.ChunkScale
	trig := fn(st)
	return Resize{Trigger: trig, From: from, To: st.ChunkScale}, nil
}

func (p *PolicyEngine) resizeNone(*EngineState) Trigger { return TriggerNone }

func (p *PolicyEngine) resizeLinear(st *EngineState) Trigger {
	if st.failuresTripped() {
		st.ConsecutiveFailures = 0
		st.ChunkScale = st.ChunkScale.Finer()
		return TriggerFailure
	}
	return TriggerNone
}

func (p *PolicyEngine) resizeRandom(st *EngineState) Trigger {
	if st.failuresTripped() {
		st.ConsecutiveFailures = 0
		st.ChunkScale = p.reroll()
		return TriggerFailure
	}
	return TriggerNone
}

func (p *PolicyEngine) resizeRandomAdaptive(st *EngineState) Trigger {
	if st.failuresTripped() {
		st.ConsecutiveFailures = 0
		st.ChunkScale = p.reroll()
		return TriggerFailure
	}
	if st.successesTripped() {
		st.ConsecutiveSuccesses = 0
		st.ChunkScale = p.reroll()
		return TriggerSuccess
	}
	return TriggerNone
}

// resizeLinearAdaptive re-rolls on failure but steps linearly on success. The
// asymmetry with resizeLinear is observable behavior and kept as is.
func (p *PolicyEngine) resizeLinearAdaptive(st *EngineState) Trigger {
	if st.failuresTripped() {
		st.ConsecutiveFailures = 0
		st.ChunkScale = p.reroll()
		return TriggerFailure
	}
	if st.successesTripped() {
		st.ConsecutiveSuccesses = 0
		st.ChunkScale = st.ChunkScale.Coarser()
		return TriggerSuccess
	}
	return TriggerNone
}

func (p *PolicyEngine) reroll() ChunkScale {
	return ChunkScale(p.rng.Intn(NumScales))
}

func bump(c uint16) uint16 {
	if c == math.MaxUint16 {
		return c
	}
	return c + 1
}

// Personal.AI order the ending
