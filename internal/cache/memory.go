package cache

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jonboulle/clockwork"

	"trustscan/internal/domain"
	"trustscan/internal/ports"
)

// DefaultShards is the partition count for in-memory state. Keys on
// different shards never contend.
const DefaultShards = 32

type entry struct {
	key       string
	value     domain.Assessment
	expiresAt time.Time
}

// MemoryStore is a sharded LRU with per-entry expiry. The LRU's own TTL is
// a backstop; expiresAt is authoritative and checked on every read.
type MemoryStore struct {
	shards []*expirable.LRU[string, entry]
	clock  clockwork.Clock
	maxTTL time.Duration
}

var _ ports.ResultStore = (*MemoryStore)(nil)

func NewMemoryStore(size int, maxTTL time.Duration, clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	per := size / DefaultShards
	if per < 1 {
		per = 1
	}
	s := &MemoryStore{clock: clock, maxTTL: maxTTL, shards: make([]*expirable.LRU[string, entry], DefaultShards)}
	for i := range s.shards {
		s.shards[i] = expirable.NewLRU[string, entry](per, nil, maxTTL)
	}
	return s
}

func (s *MemoryStore) shard(key string) *expirable.LRU[string, entry] {
	return s.shards[shardIndex(key, len(s.shards))]
}

func (s *MemoryStore) Get(_ context.Context, key string) (domain.Assessment, bool, error) {
	sh := s.shard(key)
	e, ok := sh.Get(key)
	if !ok {
		return domain.Assessment{}, false, nil
	}
	if !s.clock.Now().Before(e.expiresAt) {
		sh.Remove(key)
		return domain.Assessment{}, false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, value domain.Assessment, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if s.maxTTL > 0 && ttl > s.maxTTL {
		ttl = s.maxTTL
	}
	s.shard(key).Add(key, entry{key: key, value: value, expiresAt: s.clock.Now().Add(ttl)})
	return nil
}

func (s *MemoryStore) Purge(context.Context) error {
	for _, sh := range s.shards {
		sh.Purge()
	}
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	now := s.clock.Now()
	removed := 0
	for _, sh := range s.shards {
		for _, k := range sh.Keys() {
			if e, ok := sh.Peek(k); ok && !now.Before(e.expiresAt) {
				if sh.Remove(k) {
					removed++
				}
			}
		}
	}
	return removed
}

func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		n += sh.Len()
	}
	return n
}

func shardIndex(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
