package retrier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastRetrier(attempts int) Retrier {
	r := Default()
	r.Initial = time.Millisecond
	r.Attempts = attempts
	return r
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	attempts := 0
	err := fastRetrier(3).Do(context.Background(), func(context.Context) error {
		attempts++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoRecoversAfterFailures(t *testing.T) {
	attempts := 0
	err := fastRetrier(5).Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoGivesUp(t *testing.T) {
	attempts := 0
	err := fastRetrier(3).Do(context.Background(), func(context.Context) error {
		attempts++
		return errors.New("down")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "gave up after 3 attempts")
}

func TestDoStopsOnContextCancel(t *testing.T) {
	r := fastRetrier(10)
	r.Initial = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := r.Do(ctx, func(context.Context) error {
		return errors.New("down")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
