package ratelimit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-sso/internal/ratelimit"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func TestAllow_Burst(t *testing.T) {
	c := &clock{now: time.Date(2025, 7, 29, 12, 0, 0, 0, time.UTC)}
	l := ratelimit.New(1, 3, ratelimit.WithNowFunc(c.Now))

	for i := 0; i < 3; i++ {
		require.True(t, l.Allow("10.0.0.1"), "request %d", i+1)
	}
	require.False(t, l.Allow("10.0.0.1"))
	require.True(t, l.Allow("10.0.0.2"))

	c.now = c.now.Add(time.Second)
	require.True(t, l.Allow("10.0.0.1"))
	require.False(t, l.Allow("10.0.0.1"))
}

func TestAllow_EvictsLeastRecentlyUsed(t *testing.T) {
	l := ratelimit.New(1, 1, ratelimit.WithMaxEntries(2))

	require.True(t, l.Allow("a"))
	require.True(t, l.Allow("b"))
	require.True(t, l.Allow("c"))
	require.Equal(t, 2, l.Len())

	// "a" was evicted so it starts with a fresh bucket
	require.True(t, l.Allow("a"))
}

func TestCleanup(t *testing.T) {
	c := &clock{now: time.Date(2025, 7, 29, 12, 0, 0, 0, time.UTC)}
	l := ratelimit.New(1, 1, ratelimit.WithNowFunc(c.Now))
	l.Allow("a")
	c.now = c.now.Add(20 * time.Minute)
	l.Allow("b")
	c.now = c.now.Add(15 * time.Minute)

	require.Equal(t, 1, l.Cleanup(0))
	require.Equal(t, 1, l.Len())
}
