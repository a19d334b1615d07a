package subscription

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Cache holds short-lived lookups in front of the store: gateway customer ids,
// entitlement projections and trial-warning markers. Every entry is keyed by
// user and dropped by Invalidate after a transition commits.
type Cache struct {
	c *cache.Cache

	mu   sync.Mutex
	gens map[string]uint64 // entitlement invalidations per user
}

const (
	customerPrefix    = "customer:"
	entitlementPrefix = "entitlement:"
	warnedPrefix      = "warned:"
)

// NewCache creates a cache whose entries live for ttl.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{c: cache.New(ttl, 2*ttl), gens: make(map[string]uint64)}
}

func (c *Cache) CustomerRef(userID string) (string, bool) {
	v, ok := c.c.Get(customerPrefix + userID)
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (c *Cache) SetCustomerRef(userID, ref string) {
	c.c.Set(customerPrefix+userID, ref, cache.DefaultExpiration)
}

func (c *Cache) Entitlement(userID string) (Entitlement, bool) {
	v, ok := c.c.Get(entitlementPrefix + userID)
	if !ok {
		return Entitlement{}, false
	}
	return v.(Entitlement), true
}

// EntitlementGeneration returns a token that changes whenever the entitlement
// of userID is invalidated. Read it before loading the projection from the
// store and hand it to SetEntitlement.
func (c *Cache) EntitlementGeneration(userID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[userID]
}

// SetEntitlement caches e unless userID was invalidated after gen was read,
// in which case e may predate the commit and is dropped.
func (c *Cache) SetEntitlement(userID string, e Entitlement, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[userID] != gen {
		return false
	}
	c.c.Set(entitlementPrefix+userID, e, cache.DefaultExpiration)
	return true
}

// MarkWarned records a trial warning for sub until ttl passes. It returns false
// when a marker already exists.
func (c *Cache) MarkWarned(subID string, ttl time.Duration) bool {
	return c.c.Add(warnedPrefix+subID, struct{}{}, ttl) == nil
}

// Invalidate drops the cached entitlement of userID. Customer refs are stable
// and survive.
func (c *Cache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[userID]++
	c.c.Delete(entitlementPrefix + userID)
}
