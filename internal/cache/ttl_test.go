package cache

import (
	"testing"
	"time"

	accountdomain "github.com/smallbiznis/meterreadings/internal/account/domain"
	"github.com/stretchr/testify/assert"
)

func TestTTLCacheExpiresEntries(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newTTLCache[string, int](func() time.Time { return now })

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, 0)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)

	v, ok = c.Get("b")
	assert.True(t, ok, "zero ttl never expires")
	assert.Equal(t, 2, v)
}

func TestAccountDirectoryCache(t *testing.T) {
	c := NewAccountDirectoryCache(time.Hour)

	_, ok := c.GetIDs()
	assert.False(t, ok)

	c.SetIDs(accountdomain.NewIDSet(2344, 2233))
	ids, ok := c.GetIDs()
	assert.True(t, ok)
	assert.True(t, ids.Has(2344))
	assert.False(t, ids.Has(1))

	c.Invalidate()
	_, ok = c.GetIDs()
	assert.False(t, ok)
}
