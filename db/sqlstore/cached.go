package sqlstore

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"storefront/internal/catalog"
	"storefront/internal/commerce"
	"storefront/pkg/errors"
)

// CachedSource serves product snapshots younger than TTL and refreshes older ones from Upstream.
// When Upstream fails for any reason other than the product being gone, a stale snapshot is
// served instead.
type CachedSource struct {
	Upstream commerce.ProductSource
	Store    *Store
	TTL      time.Duration
	Logger   zerolog.Logger

	now func() time.Time
}

// NewCachedSource wraps upstream with store.
func NewCachedSource(upstream commerce.ProductSource, store *Store, ttl time.Duration, logger zerolog.Logger) *CachedSource {
	return &CachedSource{Upstream: upstream, Store: store, TTL: ttl, Logger: logger, now: time.Now}
}

func (c *CachedSource) GetProduct(ctx context.Context, id, regionID string) (*catalog.Product, error) {
	snap, fetchedAt, err := c.Store.GetProduct(ctx, id, regionID)
	if err != nil && !errors.Is(err, errors.CodeProductNotFound) {
		c.Logger.Warn().Err(err).Str("product_id", id).Msg("snapshot lookup failed")
		snap = nil
	}
	now := c.now()
	if snap != nil && now.Sub(fetchedAt) < c.TTL {
		return snap, nil
	}

	p, err := c.Upstream.GetProduct(ctx, id, regionID)
	if err != nil {
		if snap != nil && !errors.Is(err, errors.CodeProductNotFound) {
			c.Logger.Warn().Err(err).Str("product_id", id).Time("fetched_at", fetchedAt).Msg("serving stale snapshot")
			return snap, nil
		}
		return nil, err
	}
	if err := catalog.Validate(p); err != nil {
		return nil, err
	}
	if err := c.Store.PutProduct(ctx, regionID, p, now); err != nil {
		c.Logger.Warn().Err(err).Str("product_id", id).Msg("snapshot write failed")
	}
	return p, nil
}
