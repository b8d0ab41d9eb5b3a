// Package cache fronts the scoring pipeline with a TTL result store and
// coalesces concurrent misses for the same key into one computation.
package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"trustscan/internal/domain"
	"trustscan/internal/ports"
)

// Outcome says how a lookup was satisfied.
type Outcome string

const (
	Hit      Outcome = "hit"
	Computed Outcome = "computed"
	Shared   Outcome = "shared"
)

// ComputeFunc produces the value for a missing key.
type ComputeFunc func(ctx context.Context) domain.Assessment

// Cache is safe for concurrent use. At most one ComputeFunc runs per key at
// a time; concurrent callers for that key wait for and share its result.
type Cache struct {
	store  ports.ResultStore
	ttl    time.Duration
	flight []singleflight.Group
	log    zerolog.Logger
}

func New(store ports.ResultStore, ttl time.Duration, logger zerolog.Logger) *Cache {
	return &Cache{
		store:  store,
		ttl:    ttl,
		flight: make([]singleflight.Group, DefaultShards),
		log:    logger.With().Str("component", "cache").Logger(),
	}
}

// Get returns the cached assessment for key or computes it. The shared
// computation runs detached from ctx: cancelling ctx only abandons this
// caller's wait.
func (c *Cache) Get(ctx context.Context, key string, compute ComputeFunc) (domain.Assessment, Outcome, error) {
	if v, ok := c.lookup(ctx, key); ok {
		return v, Hit, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.flight[shardIndex(key, len(c.flight))].DoChan(key, func() (any, error) {
		// a flight that finished just before this one started may have stored it
		if v, ok := c.lookup(detached, key); ok {
			return v, nil
		}
		v := compute(detached)
		if err := c.store.Put(detached, key, v, c.ttl); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
		return v, nil
	})

	select {
	case res := <-ch:
		v := res.Val.(domain.Assessment)
		if res.Shared {
			return v, Shared, nil
		}
		return v, Computed, nil
	case <-ctx.Done():
		return domain.Assessment{}, "", ctx.Err()
	}
}

func (c *Cache) lookup(ctx context.Context, key string) (domain.Assessment, bool) {
	v, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed, treating as miss")
		return domain.Assessment{}, false
	}
	return v, ok
}

func (c *Cache) Purge(ctx context.Context) error {
	return c.store.Purge(ctx)
}
