package distlimiter

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestMemStore_IncrByAccumulatesAndGetReflects(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Unix(100, 0))
	clk := NewClock(mock)
	defer clk.Stop()

	store := NewMemStore(clk)
	pipe := store.Pipeline()

	r1 := pipe.IncrBy("k", 3)
	r2 := pipe.IncrBy("k", 4)
	g := pipe.Get("k")

	if err := pipe.Exec(context.Background()); err != nil {
		t.Fatalf("Exec: %v", err)
	}

	if r1.Val == nil || *r1.Val != 3 {
		t.Fatalf("first IncrBy result = %v, want 3", r1.Val)
	}
	if r2.Val == nil || *r2.Val != 7 {
		t.Fatalf("second IncrBy result = %v, want 7", r2.Val)
	}
	if g.Val == nil || *g.Val != 7 {
		t.Fatalf("Get result = %v, want 7", g.Val)
	}
}

func TestMemStore_GetMissingKeyIsNil(t *testing.T) {
	mock := clock.NewMock()
	clk := NewClock(mock)
	defer clk.Stop()

	store := NewMemStore(clk)
	pipe := store.Pipeline()
	g := pipe.Get("missing")
	if err := pipe.Exec(context.Background()); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if g.Val != nil {
		t.Fatalf("Get(missing).Val = %v, want nil", g.Val)
	}
}

func TestMemStore_ExpireEvictsKeyAfterTTL(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Unix(0, 0))
	clk := NewClock(mock)
	defer clk.Stop()

	store := NewMemStore(clk)

	setupPipe := store.Pipeline()
	setupPipe.IncrBy("k", 1)
	setupPipe.Expire("k", 2*time.Second)
	if err := setupPipe.Exec(context.Background()); err != nil {
		t.Fatalf("Exec: %v", err)
	}

	mock.Add(3 * time.Second)
	waitForSecond(t, clk, 3, time.Second)

	readPipe := store.Pipeline()
	g := readPipe.Get("k")
	if err := readPipe.Exec(context.Background()); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if g.Val != nil {
		t.Fatalf("Get after TTL expiry = %v, want nil", g.Val)
	}
}

func TestStoreKeyFormat(t *testing.T) {
	got := StoreKey("checkout", 12345)
	want := "rate-limiter:request:checkout:12345"
	if got != want {
		t.Fatalf("StoreKey() = %q, want %q", got, want)
	}
}
