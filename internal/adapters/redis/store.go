// Package redis backs the result cache and the rate limiter with a shared
// Redis so several server processes see one cache and one budget per client.
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"trustscan/internal/domain"
	"trustscan/internal/ports"
)

const cachePrefix = "scan:"

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse REDIS_URL")
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "redis ping")
	}
	return client, nil
}

// Store is a ports.ResultStore keeping JSON assessments under scan:<key>.
type Store struct {
	rdb goredis.UniversalClient
}

var _ ports.ResultStore = (*Store)(nil)

func NewStore(rdb goredis.UniversalClient) *Store { return &Store{rdb: rdb} }

func (s *Store) Get(ctx context.Context, key string) (domain.Assessment, bool, error) {
	raw, err := s.rdb.Get(ctx, cachePrefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.Assessment{}, false, nil
	}
	if err != nil {
		return domain.Assessment{}, false, errors.Wrap(err, "redis get")
	}
	var a domain.Assessment
	if err := json.Unmarshal(raw, &a); err != nil {
		return domain.Assessment{}, false, errors.Wrap(err, "decode cached assessment")
	}
	return a, true, nil
}

func (s *Store) Put(ctx context.Context, key string, value domain.Assessment, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "encode assessment")
	}
	return errors.Wrap(s.rdb.Set(ctx, cachePrefix+key, raw, ttl).Err(), "redis set")
}

// Purge deletes every cached assessment, leaving other keys alone.
func (s *Store) Purge(ctx context.Context) error {
	iter := s.rdb.Scan(ctx, 0, cachePrefix+"*", 500).Iterator()
	batch := make([]string, 0, 500)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := s.rdb.Del(ctx, batch...).Err(); err != nil {
				return errors.Wrap(err, "redis del")
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "redis scan")
	}
	if len(batch) > 0 {
		return errors.Wrap(s.rdb.Del(ctx, batch...).Err(), "redis del")
	}
	return nil
}
