package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCacheStoresAndExpires(t *testing.T) {
	c := NewTTLCache[string, int]()

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("alive", 1, time.Minute)
	got, ok := c.Get("alive")
	assert.True(t, ok)
	assert.Equal(t, 1, got)

	c.Set("stale", 2, time.Nanosecond)
	time.Sleep(5 * time.Millisecond)
	_, ok = c.Get("stale")
	assert.False(t, ok)
}

func TestTTLCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewTTLCache[string, string]()
	c.Set("pinned", "value", 0)

	got, ok := c.Get("pinned")
	assert.True(t, ok)
	assert.Equal(t, "value", got)
}

func TestTTLCacheDelete(t *testing.T) {
	c := NewTTLCache[string, int]()
	c.Set("key", 42, time.Minute)
	c.Delete("key")

	_, ok := c.Get("key")
	assert.False(t, ok)
}

func TestNilTTLCacheIsSafe(t *testing.T) {
	var c *TTLCache[string, int]
	c.Set("key", 1, time.Minute)
	c.Delete("key")

	_, ok := c.Get("key")
	assert.False(t, ok)
}

func TestNoopCacheAlwaysMisses(t *testing.T) {
	var c NoopCache[string, int]
	c.Set("key", 1, time.Minute)

	_, ok := c.Get("key")
	assert.False(t, ok)
}
