// Package distlimiter implements a distributed rate limiter that enforces a
// per-resource aggregate requests-per-second ceiling across a fleet of
// instances sharing a coordination store.
//
// Each instance grants or denies admission locally with no round-trip on the
// hot path (see Limiter.TryAcquire); a background Syncer reconciles
// instance-local counts with cluster-wide counts pulled from the store and
// periodically rebalances each instance's share of the configured QPS.
//
// The design favors bounded overshoot under burst and staleness over a
// strict, never-exceeded global ceiling: it is an advisory shaper, not a
// safety gate. See Config.Enabled for the fail-open behavior.
package distlimiter
