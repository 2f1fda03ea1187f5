package distlimiter

import "testing"

// fixedRand is a deterministic Rand returning a constant value, used to
// make the fractional-boundary grant decision reproducible in tests.
type fixedRand struct{ v float64 }

func (f fixedRand) Float64() float64 { return f.v }

// sequenceRand returns each value in vs in turn, repeating the last value
// once exhausted.
type sequenceRand struct {
	vs []float64
	i  int
}

func (s *sequenceRand) Float64() float64 {
	if s.i >= len(s.vs) {
		return s.vs[len(s.vs)-1]
	}
	v := s.vs[s.i]
	s.i++
	return v
}

func TestSlotInitResetsCounters(t *testing.T) {
	s := newSlot(fixedRand{0})
	s.setLimit(10)
	s.tryAcquireToken()
	s.tryAcquireToken()

	s.init(42)

	if s.instanceTime != 42 {
		t.Fatalf("instanceTime = %d, want 42", s.instanceTime)
	}
	if s.instanceRequestCount != 0 || s.instanceReleasedCount != 0 || s.exhausted {
		t.Fatalf("init did not reset counters: %+v", s)
	}
	if s.limit != 10 {
		t.Fatalf("init must not touch limit, got %v", s.limit)
	}
}

func TestTryAcquireToken_GrantsWithinIntegerLimit(t *testing.T) {
	s := newSlot(fixedRand{0})
	s.init(1)
	s.setLimit(3)

	for i := 0; i < 3; i++ {
		if !s.tryAcquireToken() {
			t.Fatalf("expected grant at i=%d", i)
		}
	}
	if s.instanceReleasedCount != 3 {
		t.Fatalf("instanceReleasedCount = %d, want 3", s.instanceReleasedCount)
	}
}

func TestTryAcquireToken_LatchesOnceExhausted(t *testing.T) {
	// With an integer limit delta is 0 at the boundary, so rnd=0.999999
	// never satisfies rnd.Float64() < delta and the boundary denies;
	// subsequent calls must also deny.
	s := newSlot(fixedRand{0.999999})
	s.init(1)
	s.setLimit(2) // integer limit; boundary reached on 3rd call

	if !s.tryAcquireToken() {
		t.Fatal("expected grant 1")
	}
	if !s.tryAcquireToken() {
		t.Fatal("expected grant 2")
	}
	if s.tryAcquireToken() {
		t.Fatal("expected deny at the boundary (delta=0)")
	}
	if !s.exhausted {
		t.Fatal("expected exhausted=true after boundary call")
	}
	for i := 0; i < 5; i++ {
		if s.tryAcquireToken() {
			t.Fatalf("expected latched deny at i=%d", i)
		}
	}
}

func TestTryAcquireToken_FractionalBoundaryGrantsProbabilistically(t *testing.T) {
	// limit=2.5: first two calls grant unconditionally, the third is the
	// fractional boundary with delta=0.5. rnd=0.4 < 0.5 grants.
	s := newSlot(fixedRand{0.4})
	s.init(1)
	s.setLimit(2.5)

	if !s.tryAcquireToken() || !s.tryAcquireToken() {
		t.Fatal("expected first two grants")
	}
	if !s.tryAcquireToken() {
		t.Fatal("expected boundary grant when rnd < delta")
	}
	if s.instanceReleasedCount != 3 {
		t.Fatalf("instanceReleasedCount = %d, want 3", s.instanceReleasedCount)
	}
	if s.tryAcquireToken() {
		t.Fatal("expected deny after exhaustion")
	}
}

func TestTryAcquireToken_IncrementsRequestCountEvenWhenDenied(t *testing.T) {
	s := newSlot(fixedRand{0.999})
	s.init(1)
	s.setLimit(0) // first call hits the boundary with delta=0 and latches; later calls deny as exhausted

	s.tryAcquireToken()
	s.tryAcquireToken()
	s.tryAcquireToken()

	if s.instanceRequestCount != 3 {
		t.Fatalf("instanceRequestCount = %d, want 3 (demand, not grants)", s.instanceRequestCount)
	}
	if s.instanceReleasedCount != 0 {
		t.Fatalf("instanceReleasedCount = %d, want 0", s.instanceReleasedCount)
	}
}

func TestGetRemain(t *testing.T) {
	s := newSlot(fixedRand{0})
	s.init(1)
	s.setLimit(5)
	s.tryAcquireToken()
	s.tryAcquireToken()

	if got := s.getRemain(); got != 3 {
		t.Fatalf("getRemain() = %v, want 3", got)
	}

	s.exhausted = true
	if got := s.getRemain(); got != 0 {
		t.Fatalf("getRemain() after exhaustion = %v, want 0", got)
	}
}

func TestIsInstanceExpired(t *testing.T) {
	s := newSlot(fixedRand{0})
	if !s.isInstanceExpired(100, 30) {
		t.Fatal("uninitialized slot (instanceTime=0) must be expired")
	}
	s.init(70)
	if s.isInstanceExpired(71, 30) {
		t.Fatal("slot 1s old should not be expired for W=30")
	}
	if !s.isInstanceExpired(100, 30) {
		t.Fatal("slot 30s old should be expired for W=30")
	}
}

func TestIsClusterExpired(t *testing.T) {
	s := newSlot(fixedRand{0})
	if !s.isClusterExpired(100, 30) {
		t.Fatal("uninitialized cluster data must be expired")
	}
	s.setClusterTime(70)
	if s.isClusterExpired(71, 30) {
		t.Fatal("cluster data 1s old should not be expired for W=30")
	}
	if !s.isClusterExpired(100, 30) {
		t.Fatal("cluster data 30s old should be expired for W=30")
	}
}
