// Package latency provides the injectable delay and fault strategy used in
// place of real network calls.
package latency

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/starford/certhub/internal/apperr"
)

// Simulator delays an operation and may fail it.
type Simulator interface {
	Wait(ctx context.Context, op string) error
}

// Func adapts a function to Simulator.
type Func func(ctx context.Context, op string) error

// Wait calls f.
func (f Func) Wait(ctx context.Context, op string) error { return f(ctx, op) }

// None returns a simulator that never delays and never fails.
func None() Simulator {
	return Func(func(ctx context.Context, _ string) error { return ctx.Err() })
}

// Fixed returns a simulator that sleeps for d on every call.
func Fixed(d time.Duration) Simulator {
	return Func(func(ctx context.Context, _ string) error { return sleep(ctx, d) })
}

// Failing returns a simulator that fails every call with err, wrapped in
// apperr.ErrTransport when err is nil.
func Failing(err error) Simulator {
	if err == nil {
		err = apperr.ErrTransport
	}
	return Func(func(ctx context.Context, op string) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("latency: %s: %w", op, err)
	})
}

// Random sleeps for a uniformly distributed duration in [min, max] and fails
// with apperr.ErrTransport with probability errorRate.
type Random struct {
	min, max  time.Duration
	errorRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom builds a Random simulator. A nil rng is seeded from the clock.
func NewRandom(min, max time.Duration, errorRate float64, rng *rand.Rand) *Random {
	if max < min {
		max = min
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Random{min: min, max: max, errorRate: errorRate, rng: rng}
}

// Wait implements Simulator.
func (r *Random) Wait(ctx context.Context, op string) error {
	r.mu.Lock()
	d := r.min
	if span := r.max - r.min; span > 0 {
		d += time.Duration(r.rng.Int63n(int64(span) + 1))
	}
	fail := r.errorRate > 0 && r.rng.Float64() < r.errorRate
	r.mu.Unlock()

	if err := sleep(ctx, d); err != nil {
		return err
	}
	if fail {
		return fmt.Errorf("latency: %s: %w", op, apperr.ErrTransport)
	}
	return nil
}

// FailOnce wraps next so that the first call for op fails with
// apperr.ErrTransport. Later calls are delegated to next.
func FailOnce(next Simulator, op string) Simulator {
	var once sync.Once
	return Func(func(ctx context.Context, got string) error {
		fail := false
		if got == op {
			once.Do(func() { fail = true })
		}
		if fail {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("latency: %s: %w", op, apperr.ErrTransport)
		}
		return next.Wait(ctx, got)
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
