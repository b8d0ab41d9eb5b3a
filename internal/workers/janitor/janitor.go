// Package janitor periodically drops expired in-process state: stale cache
// entries and rate-limit logs of idle clients.
package janitor

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Sweeper removes expired state and reports how many items it dropped.
type Sweeper interface {
	Sweep() int
}

type Task struct {
	Name    string
	Sweeper Sweeper
}

// Run sweeps every task on a fixed interval until ctx is done.
func Run(ctx context.Context, interval time.Duration, log zerolog.Logger, tasks ...Task) error {
	if len(tasks) == 0 {
		return nil
	}
	if interval <= 0 {
		return errors.Errorf("janitor: invalid sweep interval %s", interval)
	}
	log = log.With().Str("component", "janitor").Logger()

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	if _, err := s.Every(interval).WaitForSchedule().Do(SweepOnce, log, tasks); err != nil {
		return errors.Wrap(err, "janitor: schedule sweep")
	}
	s.StartAsync()
	log.Info().Dur("interval", interval).Int("tasks", len(tasks)).Msg("janitor started")

	<-ctx.Done()
	s.Stop()
	return nil
}

// SweepOnce runs every task once.
func SweepOnce(log zerolog.Logger, tasks []Task) {
	for _, t := range tasks {
		start := time.Now()
		n := t.Sweeper.Sweep()
		log.Debug().Str("task", t.Name).Int("dropped", n).Dur("took", time.Since(start)).Msg("sweep")
	}
}
