package memcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetGet(t *testing.T) {
	c := New(time.Minute, time.Minute)
	c.Set("math.add:abc", 5, 0)

	v, ok := c.Get("math.add:abc")
	assert.True(t, ok)
	assert.Equal(t, 5, v)
}

func TestGetMissing(t *testing.T) {
	c := New(time.Minute, time.Minute)
	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestDel(t *testing.T) {
	c := New(time.Minute, time.Minute)
	c.Set("key", "v", 0)
	c.Del("key")

	_, ok := c.Get("key")
	assert.False(t, ok)
}

func TestCleanMatchesPattern(t *testing.T) {
	c := New(time.Minute, time.Minute)
	c.Set("math.add:1", 1, 0)
	c.Set("math.add:2", 2, 0)
	c.Set("math.sub:1", 3, 0)

	require := assert.New(t)
	require.NoError(c.Clean("math.add:*"))

	_, ok := c.Get("math.add:1")
	assert.False(t, ok)
	_, ok = c.Get("math.add:2")
	assert.False(t, ok)
	_, ok = c.Get("math.sub:1")
	assert.True(t, ok)
}

func TestExpiry(t *testing.T) {
	c := New(10*time.Millisecond, 5*time.Millisecond)
	c.Set("key", "v", 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	_, ok := c.Get("key")
	assert.False(t, ok)
}
