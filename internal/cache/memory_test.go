package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemory_SetGet(t *testing.T) {
	c := NewMemory[string]("test", DefaultExpiration, DefaultCleanupInterval)
	ctx := context.Background()

	_, found := c.Get(ctx, "missing")
	require.False(t, found)

	c.Set(ctx, "k", "v", time.Minute)

	got, found := c.Get(ctx, "k")
	require.True(t, found)
	require.Equal(t, "v", got)
}

func TestMemory_Delete(t *testing.T) {
	c := NewMemory[int]("test", DefaultExpiration, DefaultCleanupInterval)
	ctx := context.Background()

	c.Set(ctx, "a", 1, time.Minute)
	c.Set(ctx, "b", 2, time.Minute)

	c.Delete(ctx, "a", "b")

	_, found := c.Get(ctx, "a")
	require.False(t, found)
	_, found = c.Get(ctx, "b")
	require.False(t, found)
}

func TestMemory_Expiration(t *testing.T) {
	c := NewMemory[string]("test", 10*time.Millisecond, time.Minute)
	ctx := context.Background()

	c.Set(ctx, "k", "v", 10*time.Millisecond)
	time.Sleep(25 * time.Millisecond)

	_, found := c.Get(ctx, "k")
	require.False(t, found)
}

func TestMemory_Flush(t *testing.T) {
	c := NewMemory[string]("test", DefaultExpiration, DefaultCleanupInterval)
	ctx := context.Background()

	c.Set(ctx, "k", "v", time.Minute)
	c.Flush(ctx)

	_, found := c.Get(ctx, "k")
	require.False(t, found)
}
