package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGovernorSpacing(t *testing.T) {
	g := NewGovernor("test", 1200) // 50ms
	require.Equal(t, 50*time.Millisecond, g.Interval())

	ctx := context.Background()
	var starts []time.Time
	for i := 0; i < 5; i++ {
		require.NoError(t, g.Wait(ctx))
		starts = append(starts, time.Now())
	}
	const eps = 5 * time.Millisecond
	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(starts[i-1])
		assert.GreaterOrEqual(t, gap, g.Interval()-eps, "gap %d", i)
	}
	assert.Equal(t, 5, g.Calls())
	assert.False(t, g.LastCall().IsZero())
}

func TestGovernorUnlimited(t *testing.T) {
	g := NewGovernor("free", 0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, g.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestGovernorCancel(t *testing.T) {
	g := NewGovernor("slow", 1) // one per minute
	require.NoError(t, g.Wait(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, g.Wait(ctx))
}

func TestRetryLinearBackoff(t *testing.T) {
	var calls []time.Time
	err := Retry(context.Background(), 3, 20*time.Millisecond, func(attempt int) error {
		calls = append(calls, time.Now())
		return fmt.Errorf("boom %d", attempt)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom 3")
	require.Len(t, calls, 3)
	assert.GreaterOrEqual(t, calls[1].Sub(calls[0]), 18*time.Millisecond)
	assert.GreaterOrEqual(t, calls[2].Sub(calls[1]), 38*time.Millisecond)
}

func TestRetryStopsOnSuccessAndPermanent(t *testing.T) {
	n := 0
	err := Retry(context.Background(), 3, time.Millisecond, func(attempt int) error {
		n++
		if attempt < 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n = 0
	err = Retry(context.Background(), 3, time.Millisecond, func(int) error {
		n++
		return fmt.Errorf("not found: %w", ErrPermanent)
	})
	assert.ErrorIs(t, err, ErrPermanent)
	assert.Equal(t, 1, n)
}
