package catalog

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/tonimelisma/drivecast/internal/drive"
)

// Cache holds remote file metadata by id. It is advisory: a miss only costs a
// metadata round trip. Implementations must be safe for concurrent use.
type Cache interface {
	Get(id string) (drive.File, bool)
	Put(f drive.File)
	Purge()
}

// LRUCache is a size-bounded cache whose entries expire after a TTL.
type LRUCache struct {
	lru *expirable.LRU[string, drive.File]
}

// NewLRUCache returns a cache holding at most size entries for ttl each.
// A zero ttl would mean entries never expire; callers use NoopCache instead.
func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	return &LRUCache{lru: expirable.NewLRU[string, drive.File](size, nil, ttl)}
}

func (c *LRUCache) Get(id string) (drive.File, bool) {
	return c.lru.Get(id)
}

func (c *LRUCache) Put(f drive.File) {
	c.lru.Add(f.ID, f)
}

func (c *LRUCache) Purge() {
	c.lru.Purge()
}

// Len reports the number of live entries.
func (c *LRUCache) Len() int {
	return c.lru.Len()
}

// NoopCache never stores anything. Used when catalog.cache_ttl is 0.
type NoopCache struct{}

func (NoopCache) Get(string) (drive.File, bool) { return drive.File{}, false }
func (NoopCache) Put(drive.File)                {}
func (NoopCache) Purge()                        {}
