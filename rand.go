package distlimiter

import (
	"math/rand"
	"sync"
)

// Rand is the source of randomness for the fractional-boundary admission
// decision in Slot.tryAcquireToken. Tests inject a deterministic Rand so
// probabilistic grants are reproducible; production code uses
// defaultRand, a process-wide lock-guarded *rand.Rand.
type Rand interface {
	// Float64 returns a pseudo-random number in [0.0, 1.0).
	Float64() float64
}

type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func newLockedRand() *lockedRand {
	return &lockedRand{rnd: rand.New(rand.NewSource(rand.Int63()))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rnd.Float64()
}

var defaultRand Rand = newLockedRand()
