package workload

import "fmt"

// ChunkScale selects a chunk size by ordinal. Ordinal 0 is the largest chunk,
// the last ordinal the smallest (finest checkpoint granularity).
type ChunkScale int

// chunkBytes is strictly decreasing; every entry is a multiple of the primitive block size.
var chunkBytes = [...]int{1024, 512, 256, 128, 64, 32, 16}

// NumScales is the number of selectable chunk scales.
const NumScales = len(chunkBytes)

const (
	CoarsestScale ChunkScale = 0
	FinestScale   ChunkScale = ChunkScale(NumScales - 1)
)

// Valid reports whether s lies in [CoarsestScale, FinestScale].
func (s ChunkScale) Valid() bool {
	return s >= CoarsestScale && s <= FinestScale
}

// Bytes returns the chunk size for s, or 0 if s is out of range.
func (s ChunkScale) Bytes() int {
	if !s.Valid() {
		return 0
	}
	return chunkBytes[s]
}

// Finer steps one ordinal toward smaller chunks, clamped at FinestScale.
func (s ChunkScale) Finer() ChunkScale {
	if s >= FinestScale {
		return FinestScale
	}
	return s + 1
}

// Coarser steps one ordinal toward larger chunks, clamped at CoarsestScale.
func (s ChunkScale) Coarser() ChunkScale {
	if s <= CoarsestScale {
		return CoarsestScale
	}
	return s - 1
}

func (s ChunkScale) String() string {
	return fmt.Sprintf("%d (%d B)", int(s), s.Bytes())
}

// Scales lists every ordinal from coarsest to finest.
func Scales() []ChunkScale {
	out := make([]ChunkScale, NumScales)
	for i := range out {
		out[i] = ChunkScale(i)
	}
	return out
}

// Personal.AI order the ending
