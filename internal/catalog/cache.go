package catalog

import (
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
)

// MatrixCache memoizes matrices per product identity. A product whose ID and UpdatedAt are unchanged
// reuses the previous matrix; any change rebuilds it.
type MatrixCache struct {
	mu    sync.Mutex
	cache *lru.Cache

	hits   int
	builds int
}

type matrixEntry struct {
	updatedAt time.Time
	matrix    *Matrix
}

// NewMatrixCache creates a cache holding at most maxEntries matrices (0 means unbounded).
func NewMatrixCache(maxEntries int) *MatrixCache {
	return &MatrixCache{cache: lru.New(maxEntries)}
}

// Get returns the matrix for p, building it when the product is new or has changed.
func (c *MatrixCache) Get(p *Product) *Matrix {
	if p == nil || p.ID == "" {
		return BuildMatrix(p)
	}
	var stamp time.Time
	if p.UpdatedAt != nil {
		stamp = *p.UpdatedAt
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.cache.Get(p.ID); ok {
		e := v.(matrixEntry)
		// Without a timestamp only the same snapshot can be reused.
		if e.updatedAt.Equal(stamp) && (!stamp.IsZero() || e.matrix.product == p) {
			c.hits++
			return e.matrix
		}
	}
	m := BuildMatrix(p)
	c.cache.Add(p.ID, matrixEntry{updatedAt: stamp, matrix: m})
	c.builds++
	return m
}

// Invalidate drops the cached matrix for a product.
func (c *MatrixCache) Invalidate(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Remove(productID)
}

// Stats returns cache hit and build counts.
func (c *MatrixCache) Stats() (hits, builds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.builds
}
