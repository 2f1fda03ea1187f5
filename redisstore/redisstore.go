// Package redisstore adapts github.com/redis/go-redis/v9 to the
// distlimiter.Store / distlimiter.Pipeliner contract: atomic INCRBY,
// EXPIRE, GET, and request pipelining for batched round-trips, in the
// idiom this corpus's other distributed rate limiters already use against
// Redis.
package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ratelim/distlimiter"
)

// Store wraps a *redis.Client to satisfy distlimiter.Store.
type Store struct {
	client *redis.Client
}

// New wraps an existing *redis.Client. The caller owns the client's
// lifecycle (Close, connection pool sizing, TLS, auth, etc.) — this package
// only adapts the capability contract the Syncer needs.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// Pipeline returns a new Pipeliner backed by a Redis pipeline.
func (s *Store) Pipeline() distlimiter.Pipeliner {
	return &pipeline{ctx: context.Background(), pipe: s.client.Pipeline()}
}

type pipeline struct {
	ctx  context.Context
	pipe redis.Pipeliner

	incrCmds []*redis.IntCmd
	incrRes  []*distlimiter.IntResult
	getCmds  []*redis.StringCmd
	getRes   []*distlimiter.IntResult
}

func (p *pipeline) IncrBy(key string, delta int64) *distlimiter.IntResult {
	cmd := p.pipe.IncrBy(p.ctx, key, delta)
	res := &distlimiter.IntResult{}
	p.incrCmds = append(p.incrCmds, cmd)
	p.incrRes = append(p.incrRes, res)
	return res
}

func (p *pipeline) Expire(key string, ttl time.Duration) {
	p.pipe.Expire(p.ctx, key, ttl)
}

func (p *pipeline) Get(key string) *distlimiter.IntResult {
	cmd := p.pipe.Get(p.ctx, key)
	res := &distlimiter.IntResult{}
	p.getCmds = append(p.getCmds, cmd)
	p.getRes = append(p.getRes, res)
	return res
}

// Exec flushes every staged command as a single round-trip, then resolves
// each IntResult from its command. A missing key's GET (redis.Nil) maps to
// a nil Val rather than an error, matching the Store contract's "GET on a
// missing or expired key yields null" semantics.
func (p *pipeline) Exec(ctx context.Context) error {
	_, err := p.pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	for i, cmd := range p.incrCmds {
		if cmdErr := cmd.Err(); cmdErr != nil {
			p.incrRes[i].Err = cmdErr
			continue
		}
		v := cmd.Val()
		p.incrRes[i].Val = &v
	}

	for i, cmd := range p.getCmds {
		if cmdErr := cmd.Err(); cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				p.getRes[i].Val = nil
				continue
			}
			p.getRes[i].Err = cmdErr
			continue
		}
		v, parseErr := cmd.Int64()
		if parseErr != nil {
			p.getRes[i].Err = parseErr
			continue
		}
		p.getRes[i].Val = &v
	}

	return nil
}
