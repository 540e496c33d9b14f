// Package retrier retries transient failures with exponential
// backoff. Used for the initial store connection and journal opening,
// where the database or filesystem may lag the service at startup.
package retrier

import (
	"context"
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

type Retrier struct {
	// Initial is the delay before the second attempt.
	Initial time.Duration
	// Max caps the grown delay.
	Max time.Duration
	// Multiplier grows the delay between attempts.
	Multiplier float64
	// Attempts is the total number of tries, first one included.
	Attempts int
	// Jitter randomizes each delay by +/- this fraction.
	Jitter float64
}

// Default is tuned for service startup: a handful of attempts over
// roughly half a minute.
func Default() Retrier {
	return Retrier{
		Initial:    time.Second,
		Max:        10 * time.Second,
		Multiplier: 2,
		Attempts:   5,
		Jitter:     0.1,
	}
}

// Do runs fn until it succeeds, attempts are exhausted or ctx is
// cancelled. The last error is returned annotated with the attempt
// count.
func (r Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	delay := r.Initial

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= r.Attempts {
			return errors.Wrapf(err, "gave up after %d attempts", attempt)
		}

		sleep := delay
		if r.Jitter > 0 {
			offset := (rand.Float64()*2 - 1) * r.Jitter * float64(delay)
			sleep = time.Duration(float64(delay) + offset)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		delay = time.Duration(float64(delay) * r.Multiplier)
		if delay > r.Max {
			delay = r.Max
		}
	}
}
