package cache

import (
	"time"

	accountdomain "github.com/smallbiznis/meterreadings/internal/account/domain"
)

const defaultAccountDirectoryTTL = 30 * time.Second

const accountDirectoryKey = "accounts"

// AccountDirectoryCache stores the account id set read on every upload.
type AccountDirectoryCache interface {
	GetIDs() (accountdomain.IDSet, bool)
	SetIDs(ids accountdomain.IDSet)
	Invalidate()
}

type accountDirectoryCache struct {
	ids Cache[string, accountdomain.IDSet]
	ttl time.Duration
}

// NewAccountDirectoryCache returns an in-memory cache for the account directory.
// A non-positive ttl falls back to the default.
func NewAccountDirectoryCache(ttl time.Duration) AccountDirectoryCache {
	if ttl <= 0 {
		ttl = defaultAccountDirectoryTTL
	}
	return &accountDirectoryCache{
		ids: NewTTLCache[string, accountdomain.IDSet](),
		ttl: ttl,
	}
}

func (c *accountDirectoryCache) GetIDs() (accountdomain.IDSet, bool) {
	return c.ids.Get(accountDirectoryKey)
}

func (c *accountDirectoryCache) SetIDs(ids accountdomain.IDSet) {
	if ids == nil {
		return
	}
	c.ids.Set(accountDirectoryKey, ids, c.ttl)
}

func (c *accountDirectoryCache) Invalidate() {
	c.ids.Delete(accountDirectoryKey)
}
