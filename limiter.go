package distlimiter

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// carryOverClampDefault is K, the maximum carry-over multiple applied to
// remain after a weight refresh, preventing an idle instance from
// accumulating unbounded credit.
const carryOverClampDefault = 8.0

// admissionLogLinesPerSecond caps the volume of per-admission debug log
// lines a single verbose-logging resource can emit; at real traffic
// volumes this is by far the highest-frequency log call site in the
// package, and without a cap it can dominate process log output. Enforced
// via zapcore's own sampling core rather than a bespoke limiter.
const admissionLogLinesPerSecond = 20

// Limiter owns one resource key's ring of slots, current weight, and
// carry-over remainder, and connects the slot-rolling, admission, sync, and
// refresh logic described in this package's design.
type Limiter struct {
	resourceKey string
	windowSize  int
	window      []*slot

	lastAcquireSecond atomic.Int64
	refreshedFlag     atomic.Bool
	weight            atomicFloat64
	remain            atomicFloat64
	qps               atomicFloat64

	logEnabled bool
	k          float64

	clock *Clock
	// logger is used for the lower-frequency slot-roll/sync/refresh log
	// lines. admissionLogger wraps it with zapcore's sampling core and is
	// used only for the hot-path per-admission Debugw call, which at real
	// traffic volumes is by far the highest-frequency log site in the
	// package.
	logger          *zap.SugaredLogger
	admissionLogger *zap.SugaredLogger
}

// newLimiter constructs a Limiter for resourceKey with a fresh ring of
// windowSize slots, weight 1.0, and zero carry-over.
func newLimiter(resourceKey string, windowSize int, qps float64, logEnabled bool, k float64, clk *Clock, rnd Rand, logger *zap.SugaredLogger) *Limiter {
	if windowSize < 3 {
		windowSize = 3
	}
	if k <= 0 {
		k = carryOverClampDefault
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	l := &Limiter{
		resourceKey: resourceKey,
		windowSize:  windowSize,
		window:      make([]*slot, windowSize),
		logEnabled:  logEnabled,
		k:           k,
		clock:       clk,
		logger:      logger,
	}
	for i := range l.window {
		l.window[i] = newSlot(rnd)
	}
	l.admissionLogger = logger.Desugar().WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewSamplerWithOptions(core, time.Second, admissionLogLinesPerSecond, 0)
	})).Sugar()
	l.weight.Store(1.0)
	l.remain.Store(0)
	l.qps.Store(qps)
	return l
}

// setQPS updates the operator-configured cluster-wide target for this
// resource. It may change on every admission call.
func (l *Limiter) setQPS(qps float64) {
	l.qps.Store(qps)
}

// getOrUpdateSlot returns the ring slot for the current second, rolling it
// (via slot.init) exactly once if this is the first call to observe that
// second. See the package-level design notes for the carry-over clamp and
// limit computation performed on roll.
func (l *Limiter) getOrUpdateSlot() *slot {
	t := l.clock.Now()
	idx := int(((t % int64(l.windowSize)) + int64(l.windowSize)) % int64(l.windowSize))
	s := l.window[idx]

	prev := l.lastAcquireSecond.Load()
	if prev == t {
		return s
	}
	if !l.lastAcquireSecond.CompareAndSwap(prev, t) {
		// Another goroutine won the race to roll this second; the slot it
		// rolled is the same slot we'd have picked, so just use it.
		return s
	}

	s.init(t)

	qps := l.qps.Load()
	weight := l.weight.Load()
	remain := l.remain.Load()

	if l.refreshedFlag.CompareAndSwap(true, false) {
		maxCarry := qps * weight * l.k
		if remain > maxCarry {
			remain = maxCarry
			l.remain.Store(remain)
		}
	}

	limit := qps*weight + remain
	s.setLimit(limit)

	if l.logEnabled {
		l.logger.Debugw("slot rolled",
			"resource", l.resourceKey, "second", t, "slot", idx,
			"qps", qps, "weight", weight, "remain", remain, "limit", limit)
	}

	return s
}

// TryAcquire is the hot-path admission decision for one request against
// this Limiter: roll the current slot if needed, consume a token, and
// record the carry-over for the next second.
func (l *Limiter) TryAcquire() bool {
	s := l.getOrUpdateSlot()
	ok := s.tryAcquireToken()
	l.remain.Store(s.getRemain())

	if l.logEnabled {
		l.admissionLogger.Debugw("admission decision",
			"resource", l.resourceKey, "granted", ok)
	}

	return ok
}

// sync stages this Limiter's upload (offset -2s) and download (offset -5s)
// operations into pipeline and returns a post-processor to run after the
// pipeline is flushed. See the package design notes for why the two
// offsets differ.
func (l *Limiter) sync(now int64, pipeline Pipeliner) func() {
	w := l.windowSize

	uploadAt := now - 2
	uploadIdx := int(((uploadAt % int64(w)) + int64(w)) % int64(w))
	uploadSlot := l.window[uploadIdx]

	var uploadReq *int64
	if !uploadSlot.isInstanceExpired(uploadAt, w) {
		_, instanceRequestCount, _ := uploadSlot.snapshot()
		key := StoreKey(l.resourceKey, uploadAt)
		pipeline.IncrBy(key, instanceRequestCount)
		pipeline.Expire(key, StoreKeyTTL)
		uploadReq = &instanceRequestCount
	}

	downloadAt := now - 5
	downloadIdx := int(((downloadAt % int64(w)) + int64(w)) % int64(w))
	downloadSlot := l.window[downloadIdx]
	downloadRes := pipeline.Get(StoreKey(l.resourceKey, downloadAt))

	return func() {
		if uploadReq != nil && l.logEnabled {
			l.logger.Debugw("uploaded slot count",
				"resource", l.resourceKey, "second", uploadAt, "count", *uploadReq)
		}

		if downloadRes.Err != nil {
			l.logger.Warnw("cluster count download failed",
				"resource", l.resourceKey, "second", downloadAt, "err", downloadRes.Err)
			return
		}

		var clusterCount int64
		if downloadRes.Val != nil {
			clusterCount = *downloadRes.Val
		}
		downloadSlot.setClusterRequestCount(clusterCount)
		downloadSlot.setClusterTime(downloadAt)

		if l.logEnabled {
			l.logger.Debugw("downloaded cluster count",
				"resource", l.resourceKey, "second", downloadAt, "count", clusterCount)
		}
	}
}

// refresh recomputes this Limiter's weight from the ring's cluster and
// instance counters. Invoked by the Syncer when now is window-aligned.
func (l *Limiter) refresh(now int64) {
	l.refreshedFlag.Store(true)

	w := l.windowSize
	var total, local int64

	for off := 1; off < w; off++ {
		idx := int((((now + int64(off)) % int64(w)) + int64(w)) % int64(w))
		s := l.window[idx]
		if s.isClusterExpired(now-1, w) {
			continue
		}
		_, instanceRequestCount, clusterRequestCount := s.snapshot()
		total += clusterRequestCount
		local += instanceRequestCount
	}

	var weight float64
	if total == 0 || local == 0 {
		weight = 1.0
	} else {
		weight = float64(local) / float64(total)
	}
	l.weight.Store(weight)

	if l.logEnabled {
		l.logger.Debugw("weight refreshed",
			"resource", l.resourceKey, "second", now, "weight", weight, "local", local, "total", total)
	}
}
