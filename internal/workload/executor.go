package workload

import "github.com/turtacn/Brownout/pkg/consts"

// Indicator mirrors the fixture's output pins: the working pin brackets every
// chunk and the completion LED latches once the run ends.
type Indicator interface {
	Working(on bool)
	Complete()
}

type nopIndicator struct{}

func (nopIndicator) Working(bool) {}
func (nopIndicator) Complete() {}

// Executor runs chunks of primitive operations.
type Executor struct {
	prim Primitive
	ind  Indicator
}

func NewExecutor(prim Primitive, ind Indicator) *Executor {
	if ind == nil {
		ind = nopIndicator{}
	}
	return &Executor{prim: prim, ind: ind}
}

// ExecuteChunk runs the primitive over the current chunk size, checking the
// power-loss flag after every operation. A chunk is all or nothing: on
// Interrupted none of its bytes count. The flag is left for the policy engine.
func (x *Executor) ExecuteChunk(st *EngineState) Outcome {
	size := st.ChunkScale.Bytes()

	x.markStart(st)
	for done := 0; done < size; done += consts.PrimitiveBlockSize {
		x.prim.Run()
		if st.PowerLoss.Pending() {
			x.markEnd(st)
			return Interrupted
		}
	}
	x.markEnd(st)
	return Success
}

func (x *Executor) markStart(st *EngineState) {
	x.ind.Working(true)
	st.working.Store(true)
}

func (x *Executor) markEnd(st *EngineState) {
	x.ind.Working(false)
	st.working.Store(false)
}

// Personal.AI order the ending
