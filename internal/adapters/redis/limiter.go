package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"trustscan/internal/ports"
)

const limitPrefix = "ratelimit:"

// admitScript prunes, checks and records one event atomically. Members are
// unique so equal timestamps do not collapse.
//
// KEYS[1] log key; ARGV: now ms, window ms, capacity, member.
// Returns {allowed, remaining, oldest ms}.
var admitScript = goredis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local capacity = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', tostring(now - window))
local count = redis.call('ZCARD', key)
local allowed = 0
if count < capacity then
  redis.call('ZADD', key, ARGV[1], ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, ARGV[2])
local oldest = redis.call('ZRANGE', key, '0', '0', 'WITHSCORES')
local first = now
if oldest[2] then first = tonumber(oldest[2]) end
return {allowed, capacity - count, first}
`)

// Limiter is a rolling-window log shared through Redis sorted sets.
type Limiter struct {
	rdb      goredis.UniversalClient
	capacity int
	window   time.Duration
	clock    clockwork.Clock
}

var _ ports.Limiter = (*Limiter)(nil)

func NewLimiter(rdb goredis.UniversalClient, capacity int, window time.Duration, clock clockwork.Clock) *Limiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Limiter{rdb: rdb, capacity: capacity, window: window, clock: clock}
}

func (l *Limiter) Admit(ctx context.Context, clientKey string) (ports.Decision, error) {
	now := l.clock.Now().UnixMilli()
	res, err := admitScript.Run(ctx, l.rdb, []string{limitPrefix + clientKey},
		now, l.window.Milliseconds(), l.capacity, strconv.FormatInt(now, 10)+"-"+uuid.NewString()).Int64Slice()
	if err != nil {
		return ports.Decision{}, errors.Wrap(err, "redis admit")
	}
	if len(res) != 3 {
		return ports.Decision{}, errors.Errorf("redis admit: unexpected reply %v", res)
	}
	remaining := int(res[1])
	if remaining < 0 {
		remaining = 0
	}
	return ports.Decision{
		Allowed:   res[0] == 1,
		Remaining: remaining,
		ResetAt:   time.UnixMilli(res[2]).Add(l.window),
	}, nil
}
