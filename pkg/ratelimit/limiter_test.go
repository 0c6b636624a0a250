package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlidingWindow(t *testing.T) {
	sw := NewSlidingWindow(3, time.Minute)
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	sw.now = func() time.Time { return current }

	for i := 0; i < 3; i++ {
		if !sw.Allow() {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
	}
	if sw.Allow() {
		t.Error("Expected fourth request to be rejected")
	}

	current = current.Add(time.Minute + time.Second)
	if !sw.Allow() {
		t.Error("Expected request to be allowed once the window slid")
	}

	sw.Reset()
	assert.True(t, sw.Allow())
}

func TestSlidingWindowWaitHonoursContext(t *testing.T) {
	sw := PerMinute(1)
	assert.NoError(t, sw.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := sw.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSlidingWindowWaitUnblocks(t *testing.T) {
	sw := NewSlidingWindow(1, 30*time.Millisecond)
	assert.NoError(t, sw.Wait(context.Background()))
	assert.NoError(t, sw.Wait(context.Background()))
}

func TestUnlimited(t *testing.T) {
	var l Limiter = Unlimited{}
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.Canceled)
}
