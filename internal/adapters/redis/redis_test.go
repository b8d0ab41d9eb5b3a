package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustscan/internal/domain"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestStoreRoundTripAndExpiry(t *testing.T) {
	mr, rdb := newRedis(t)
	s := NewStore(rdb)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "https://example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	want := domain.Assessment{CanonicalURL: "https://example.com", Domain: "example.com", RiskScore: 35, TrustRating: domain.RatingNeutral}
	require.NoError(t, s.Put(ctx, "https://example.com", want, time.Hour))

	got, ok, err := s.Get(ctx, "https://example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.RiskScore, got.RiskScore)
	assert.Equal(t, want.TrustRating, got.TrustRating)

	mr.FastForward(time.Hour + time.Second)
	_, ok, err = s.Get(ctx, "https://example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStorePurgeOnlyTouchesCacheKeys(t *testing.T) {
	mr, rdb := newRedis(t)
	s := NewStore(rdb)
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, s.Put(ctx, k, domain.Assessment{}, time.Hour))
	}
	require.NoError(t, mr.Set("ratelimit:ip:1.2.3.4", "x"))

	require.NoError(t, s.Purge(ctx))
	assert.Equal(t, []string{"ratelimit:ip:1.2.3.4"}, mr.Keys())
}

func TestStoreReportsConnectionErrors(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.Close()
	_, _, err := NewStore(rdb).Get(context.Background(), "k")
	assert.Error(t, err)
}

func TestLimiterRollingWindow(t *testing.T) {
	_, rdb := newRedis(t)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	l := NewLimiter(rdb, 5, time.Minute, clock)
	ctx := context.Background()
	start := clock.Now()

	for i := 0; i < 5; i++ {
		d, err := l.Admit(ctx, "ip:1.2.3.4")
		require.NoError(t, err)
		require.True(t, d.Allowed, "call %d", i+1)
		assert.Equal(t, 4-i, d.Remaining)
	}
	d, err := l.Admit(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.True(t, start.Add(time.Minute).Equal(d.ResetAt), "reset at %s", d.ResetAt)

	d, err = l.Admit(ctx, "ip:5.6.7.8")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	clock.Advance(time.Minute)
	d, err = l.Admit(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
