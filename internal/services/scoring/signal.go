package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/panics"
)

// Signal is the outcome of one probe: either a value or an unknown marker
// with the reason the value could not be obtained.
type Signal[T any] struct {
	value  T
	ok     bool
	reason string
}

func Ok[T any](v T) Signal[T] { return Signal[T]{value: v, ok: true} }

func Unknown[T any](reason string) Signal[T] { return Signal[T]{reason: reason} }

// Get returns the value and whether it is known.
func (s Signal[T]) Get() (T, bool) { return s.value, s.ok }

func (s Signal[T]) Reason() string { return s.reason }

// runProbe bounds fn by timeout. A probe that errors, panics or overruns
// yields Unknown; the caller never waits past the deadline.
func runProbe[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) Signal[T] {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan Signal[T], 1)
	go func() {
		var out Signal[T]
		if r := panics.Try(func() {
			v, err := fn(ctx)
			if err != nil {
				out = Unknown[T](err.Error())
				return
			}
			out = Ok(v)
		}); r != nil {
			out = Unknown[T](fmt.Sprintf("probe panicked: %v", r.Value))
		}
		ch <- out
	}()

	select {
	case s := <-ch:
		return s
	case <-ctx.Done():
		return Unknown[T]("probe timed out")
	}
}
