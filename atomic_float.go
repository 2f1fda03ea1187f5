package distlimiter

import (
	"math"
	"sync/atomic"
)

// atomicFloat64 is a single-cell float64 with get-and-set semantics,
// implemented on top of atomic.Uint64 since the standard library does not
// provide a typed atomic float. Used for Limiter.weight and Limiter.remain,
// both of which the spec calls out as single-cell atomics.
type atomicFloat64 struct {
	bits atomic.Uint64
}

func (a *atomicFloat64) Load() float64 {
	return math.Float64frombits(a.bits.Load())
}

func (a *atomicFloat64) Store(v float64) {
	a.bits.Store(math.Float64bits(v))
}
