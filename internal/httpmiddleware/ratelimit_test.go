package httpmiddleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterBudgetPerClient(t *testing.T) {
	l := NewRateLimiter(2)

	require.True(t, l.take("10.0.0.1"))
	require.True(t, l.take("10.0.0.1"))
	require.False(t, l.take("10.0.0.1"))

	// Separate clients draw from separate buckets.
	require.True(t, l.take("10.0.0.2"))
}

func TestRateLimiterRefills(t *testing.T) {
	l := NewRateLimiter(60) // one token per second

	for i := 0; i < 60; i++ {
		require.True(t, l.take("c"))
	}
	require.False(t, l.take("c"))

	// Backdate the bucket instead of sleeping.
	l.mu.Lock()
	l.buckets["c"].last = time.Now().Add(-2 * time.Second)
	l.mu.Unlock()
	require.True(t, l.take("c"))
}

func TestRateLimiterSweepsIdleClients(t *testing.T) {
	l := NewRateLimiter(10)
	require.True(t, l.take("stale"))

	l.mu.Lock()
	l.buckets["stale"].last = time.Now().Add(-2 * time.Minute)
	l.mu.Unlock()

	l.sweep(time.Now())
	l.mu.Lock()
	_, ok := l.buckets["stale"]
	l.mu.Unlock()
	require.False(t, ok)
}
