// Package queue keeps the owner's live view of the order queue.
package queue

import (
	"sort"
	"sync"

	"github.com/solveprint/printshop/internal/entity"
	"github.com/solveprint/printshop/internal/lifecycle"
)

// Cache holds the owner queue keyed by order id. Updates replace entries
// instead of appending, so repeated or overlapping refreshes never duplicate
// an order.
type Cache struct {
	mu      sync.RWMutex
	orders  map[string]entity.Order
	version uint64
	loaded  bool
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{orders: make(map[string]entity.Order)}
}

// Replace swaps the whole snapshot.
func (c *Cache) Replace(orders []entity.Order) {
	next := make(map[string]entity.Order, len(orders))
	for _, o := range orders {
		if o.Status == lifecycle.StatusPendingPayment {
			continue
		}
		next[o.ID] = o
	}
	c.mu.Lock()
	c.orders = next
	c.version++
	c.loaded = true
	c.mu.Unlock()
}

// Upsert records a single order, dropping it when it left the owner queue.
func (c *Cache) Upsert(o entity.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if o.Status == lifecycle.StatusPendingPayment {
		delete(c.orders, o.ID)
	} else {
		c.orders[o.ID] = o
	}
	c.version++
}

// Remove drops an order.
func (c *Cache) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.orders[id]; ok {
		delete(c.orders, id)
		c.version++
	}
}

// Get returns the cached order.
func (c *Cache) Get(id string) (entity.Order, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.orders[id]
	return o, ok
}

// Snapshot returns the queue newest first.
func (c *Cache) Snapshot() []entity.Order {
	c.mu.RLock()
	out := make([]entity.Order, 0, len(c.orders))
	for _, o := range c.orders {
		out = append(out, o)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Counts tallies cached orders per status.
func (c *Cache) Counts() lifecycle.Counts {
	c.mu.RLock()
	defer c.mu.RUnlock()
	counts := make(lifecycle.Counts, len(lifecycle.OperationalStatuses()))
	for _, s := range lifecycle.OperationalStatuses() {
		counts[s] = 0
	}
	for _, o := range c.orders {
		counts[o.Status]++
	}
	return counts
}

// Len is the number of cached orders.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.orders)
}

// Loaded reports whether a full snapshot has been stored. Single-order
// updates alone do not make the cache complete.
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Version increments on every change.
func (c *Cache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}
