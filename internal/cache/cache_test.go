package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetSet(t *testing.T) {
	c := New(0)
	_, ok := c.Get("R1", "show chassis fpc | display xml")
	assert.False(t, ok)

	c.Set("R1", "show chassis fpc | display xml", "<rpc-reply/>", 0)
	got, ok := c.Get("R1", "show chassis fpc | display xml")
	assert.True(t, ok)
	assert.Equal(t, "<rpc-reply/>", got)

	_, ok = c.Get("R2", "show chassis fpc | display xml")
	assert.False(t, ok)
}

func TestCacheTTLIsCapped(t *testing.T) {
	c := New(time.Minute)
	c.Set("R1", "show chassis hardware detail | display xml", "<rpc-reply/>", TTLInventory)
	c.Set("R1", "show lldp neighbors", "", 10*time.Second)

	hw := c.GetEntry("R1", "show chassis hardware detail | display xml")
	require.NotNil(t, hw)
	assert.WithinDuration(t, hw.FetchedAt.Add(time.Minute), hw.ExpiresAt, time.Millisecond)

	lldp := c.GetEntry("R1", "show lldp neighbors")
	require.NotNil(t, lldp)
	assert.WithinDuration(t, lldp.FetchedAt.Add(10*time.Second), lldp.ExpiresAt, time.Millisecond)
	assert.Less(t, lldp.Age(), time.Second)
}

func TestCacheExpiry(t *testing.T) {
	c := New(time.Minute)
	c.Set("R1", "show lldp neighbors", "stale", -time.Second)
	c.Set("R1", "show chassis alarms | display xml", "fresh", TTLState)

	_, ok := c.Get("R1", "show lldp neighbors")
	assert.False(t, ok)
	assert.Nil(t, c.GetEntry("R1", "show lldp neighbors"))
	assert.Equal(t, 2, c.Len())

	assert.Equal(t, 1, c.Cleanup())
	assert.Equal(t, 1, c.Len())
}

func TestCacheForget(t *testing.T) {
	c := New(time.Minute)
	c.Set("R1", "a", "1", 0)
	c.Set("R1", "b", "2", 0)
	c.Set("R10", "a", "3", 0)

	c.Forget("R1")
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("R10", "a")
	assert.True(t, ok)
}

func TestNilCache(t *testing.T) {
	var c *Cache
	c.Set("R1", "a", "1", 0)
	_, ok := c.Get("R1", "a")
	assert.False(t, ok)
	assert.Nil(t, c.GetEntry("R1", "a"))
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.Cleanup())
	assert.NotPanics(t, func() { c.Forget("R1") })
}
