// Package ratelimit bounds scan submissions per client within a rolling
// window.
package ratelimit

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"trustscan/internal/domain"
	"trustscan/internal/ports"
)

const (
	DefaultCapacity = 5
	DefaultWindow   = time.Minute
	shardCount      = 32
)

// RejectedError is returned for a denied admission. It matches
// domain.ErrRateLimited.
type RejectedError struct {
	ResetAt time.Time
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("Rate limit exceeded. Try again at %s", e.ResetAt.UTC().Format(time.RFC3339))
}

func (e *RejectedError) Unwrap() error { return domain.ErrRateLimited }

type shard struct {
	mu      sync.Mutex
	clients map[string][]time.Time
}

// Window is an in-process rolling-window log. Check-and-record for a key is
// atomic under that key's shard lock.
type Window struct {
	capacity int
	window   time.Duration
	clock    clockwork.Clock
	shards   [shardCount]shard
}

var _ ports.Limiter = (*Window)(nil)

func NewWindow(capacity int, window time.Duration, clock clockwork.Clock) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	w := &Window{capacity: capacity, window: window, clock: clock}
	for i := range w.shards {
		w.shards[i].clients = make(map[string][]time.Time)
	}
	return w
}

func (w *Window) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &w.shards[h.Sum32()%shardCount]
}

// Admit prunes timestamps outside the window, then records now if the
// client is under capacity.
func (w *Window) Admit(_ context.Context, clientKey string) (ports.Decision, error) {
	now := w.clock.Now()
	sh := w.shardFor(clientKey)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	recent := prune(sh.clients[clientKey], now, w.window)
	if len(recent) >= w.capacity {
		sh.clients[clientKey] = recent
		return ports.Decision{Allowed: false, Remaining: 0, ResetAt: recent[0].Add(w.window)}, nil
	}
	recent = append(recent, now)
	sh.clients[clientKey] = recent
	return ports.Decision{
		Allowed:   true,
		Remaining: w.capacity - len(recent),
		ResetAt:   recent[0].Add(w.window),
	}, nil
}

// Sweep forgets clients with no timestamps left in the window and returns
// how many were dropped.
func (w *Window) Sweep() int {
	now := w.clock.Now()
	dropped := 0
	for i := range w.shards {
		sh := &w.shards[i]
		sh.mu.Lock()
		for k, ts := range sh.clients {
			recent := prune(ts, now, w.window)
			if len(recent) == 0 {
				delete(sh.clients, k)
				dropped++
				continue
			}
			sh.clients[k] = recent
		}
		sh.mu.Unlock()
	}
	return dropped
}

// Clients returns the number of tracked client keys.
func (w *Window) Clients() int {
	n := 0
	for i := range w.shards {
		sh := &w.shards[i]
		sh.mu.Lock()
		n += len(sh.clients)
		sh.mu.Unlock()
	}
	return n
}

// prune keeps timestamps newer than now-window. ts is ordered, so the cut
// is a prefix.
func prune(ts []time.Time, now time.Time, window time.Duration) []time.Time {
	cut := 0
	for cut < len(ts) && now.Sub(ts[cut]) >= window {
		cut++
	}
	if cut == 0 {
		return ts
	}
	return append(ts[:0:0], ts[cut:]...)
}
