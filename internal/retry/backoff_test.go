package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errTransient = errors.New("transient")
var errPermanent = errors.New("permanent")

func TestFixedDelayConfig(t *testing.T) {
	config := FixedDelayConfig(3, time.Second)

	assert.Equal(t, 4, config.MaxAttempts)
	assert.Equal(t, time.Second, config.InitialDelay)
	assert.Equal(t, time.Second, config.MaxDelay)
	assert.False(t, config.Jitter)

	b := NewBackoff(config)
	for attempt := 1; attempt <= 3; attempt++ {
		assert.Equal(t, time.Second, b.GetNextDelay(attempt))
	}
}

func TestFixedDelayConfig_NegativeRetries(t *testing.T) {
	assert.Equal(t, 1, FixedDelayConfig(-2, time.Millisecond).MaxAttempts)
}

func TestBackoff_SuccessFirstAttempt(t *testing.T) {
	b := NewBackoff(FixedDelayConfig(3, time.Millisecond))

	attempts := 0
	err := b.Retry(context.Background(), func() error {
		attempts++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestBackoff_RetryCeiling(t *testing.T) {
	b := NewBackoff(FixedDelayConfig(3, time.Millisecond))

	attempts := 0
	err := b.RetryWithPredicate(context.Background(), func() error {
		attempts++
		return errTransient
	}, func(err error) bool { return errors.Is(err, errTransient) })

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 4, attempts)
}

func TestBackoff_NonRetryableStopsImmediately(t *testing.T) {
	b := NewBackoff(FixedDelayConfig(3, time.Millisecond))

	attempts := 0
	err := b.RetryWithPredicate(context.Background(), func() error {
		attempts++
		return errPermanent
	}, func(err error) bool { return errors.Is(err, errTransient) })

	assert.ErrorIs(t, err, errPermanent)
	assert.Equal(t, 1, attempts)
}

func TestBackoff_SucceedsAfterRetries(t *testing.T) {
	b := NewBackoff(FixedDelayConfig(3, time.Millisecond))

	attempts := 0
	var notified []int
	err := b.RetryNotify(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errTransient
		}
		return nil
	}, func(error) bool { return true }, func(attempt int, err error, delay time.Duration) {
		notified = append(notified, attempt)
		assert.Equal(t, time.Millisecond, delay)
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{1, 2}, notified)
}

func TestBackoff_ContextCancelledDuringWait(t *testing.T) {
	b := NewBackoff(FixedDelayConfig(3, time.Hour))
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- b.Retry(ctx, func() error {
			attempts++
			return errTransient
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errTransient)
		assert.Equal(t, 1, attempts)
	case <-time.After(time.Second):
		t.Fatal("retry did not stop after cancellation")
	}
}

func TestBackoff_ExponentialGrowthCapped(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  5,
	})

	assert.Equal(t, 10*time.Millisecond, b.GetNextDelay(1))
	assert.Equal(t, 20*time.Millisecond, b.GetNextDelay(2))
	assert.Equal(t, 40*time.Millisecond, b.GetNextDelay(3))
	assert.Equal(t, 50*time.Millisecond, b.GetNextDelay(4))
}

func TestBackoff_JitterStaysInBounds(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   1.0,
		MaxAttempts:  3,
		Jitter:       true,
	})

	for i := 0; i < 50; i++ {
		d := b.GetNextDelay(1)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}
}
