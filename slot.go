package distlimiter

import "sync"

// slot is the accounting record for one second of one resource on one
// instance. Every mutating and reading method is serialized behind mu, a
// per-slot lock rather than a limiter-wide one, so slots for different
// seconds (and different resources) never contend with each other.
type slot struct {
	mu sync.Mutex

	instanceTime          int64
	instanceRequestCount  int64
	instanceReleasedCount int64
	limit                 float64
	exhausted             bool

	clusterTime         int64
	clusterRequestCount int64

	rnd Rand
}

func newSlot(rnd Rand) *slot {
	return &slot{rnd: rnd}
}

// init resets the instance-local counters for the new second t. limit,
// clusterTime, and clusterRequestCount are left untouched; the Limiter sets
// limit itself right after init, and the cluster fields are owned by the
// Syncer.
func (s *slot) init(t int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instanceTime = t
	s.instanceRequestCount = 0
	s.instanceReleasedCount = 0
	s.exhausted = false
}

// setLimit assigns the effective per-second cap for this slot. Called once
// per slot roll by the owning Limiter.
func (s *slot) setLimit(limit float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = limit
}

// tryAcquireToken is the admission decision for one request in this slot.
// instanceRequestCount is incremented unconditionally, even on denial: it
// feeds the weight calculation in refresh, which reflects demand rather
// than grants.
func (s *slot) tryAcquireToken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.instanceRequestCount++

	if s.exhausted {
		return false
	}

	released := float64(s.instanceReleasedCount)
	if released > s.limit {
		// Paranoia: should not happen under a correct driver.
		return false
	}

	if released+1 <= s.limit {
		s.instanceReleasedCount++
		return true
	}

	// Fractional boundary: this is the last possible grant for this slot.
	s.exhausted = true
	delta := s.limit - released // in [0, 1)
	if s.rnd.Float64() < delta {
		s.instanceReleasedCount++
		return true
	}
	return false
}

// isInstanceExpired reports whether this slot's instance-local data is
// stale relative to now, given a ring of size w.
func (s *slot) isInstanceExpired(now int64, w int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instanceTime == 0 || now-s.instanceTime >= int64(w)
}

// isClusterExpired reports whether this slot's cluster data is stale
// relative to now, given a ring of size w.
func (s *slot) isClusterExpired(now int64, w int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clusterTime == 0 || now-s.clusterTime >= int64(w)
}

func (s *slot) setClusterRequestCount(v int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clusterRequestCount = v
}

func (s *slot) setClusterTime(t int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clusterTime = t
}

// getRemain returns the unspent budget for this slot: 0 once exhausted,
// otherwise limit minus tokens already released.
func (s *slot) getRemain() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exhausted {
		return 0
	}
	return s.limit - float64(s.instanceReleasedCount)
}

// snapshot returns a consistent read of the fields the Syncer and refresh
// need, taken under a single lock acquisition.
func (s *slot) snapshot() (instanceTime, instanceRequestCount, clusterRequestCount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instanceTime, s.instanceRequestCount, s.clusterRequestCount
}
