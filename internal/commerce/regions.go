package commerce

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"golang.org/x/sync/singleflight"

	"storefront/internal/catalog"
	"storefront/pkg/errors"
)

// RegionDirectory resolves regions by ID or ISO country code. Lookups are cached with a TTL
// in a bounded LRU; a miss refreshes the whole region list from the backend, and concurrent misses
// share one refresh.
type RegionDirectory struct {
	lister RegionLister
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	cache   *lru.Cache
	refresh singleflight.Group
}

type cachedRegion struct {
	region    catalog.Region
	expiresAt time.Time
}

// NewRegionDirectory creates a directory over lister. maxEntries bounds the number of cached keys.
func NewRegionDirectory(lister RegionLister, ttl time.Duration, maxEntries int) *RegionDirectory {
	return &RegionDirectory{
		lister: lister,
		ttl:    ttl,
		now:    time.Now,
		cache:  lru.New(maxEntries),
	}
}

// ByID returns the region with the given ID.
func (d *RegionDirectory) ByID(ctx context.Context, id string) (catalog.Region, error) {
	return d.lookup(ctx, "id:"+id, id)
}

// ByCountry returns the region containing the ISO 3166-1 alpha-2 country code.
func (d *RegionDirectory) ByCountry(ctx context.Context, country string) (catalog.Region, error) {
	return d.lookup(ctx, "country:"+strings.ToLower(country), country)
}

func (d *RegionDirectory) lookup(ctx context.Context, key, ref string) (catalog.Region, error) {
	d.mu.Lock()
	stale, found := d.get(key)
	d.mu.Unlock()
	if found && d.now().Before(stale.expiresAt) {
		return stale.region, nil
	}

	v, err, _ := d.refresh.Do("regions", func() (any, error) {
		return d.lister.ListRegions(ctx)
	})
	if err != nil {
		// Serve an expired entry rather than fail the page.
		if found {
			return stale.region, nil
		}
		return catalog.Region{}, err
	}

	regions := v.([]catalog.Region)
	expires := d.now().Add(d.ttl)
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range regions {
		entry := cachedRegion{region: r, expiresAt: expires}
		d.cache.Add("id:"+r.ID, entry)
		for _, c := range r.Countries {
			d.cache.Add("country:"+strings.ToLower(c), entry)
		}
	}
	if e, ok := d.get(key); ok && !e.expiresAt.Before(expires) {
		return e.region, nil
	}
	d.cache.Remove(key)
	return catalog.Region{}, errors.NewRegionNotFoundError(ref)
}

func (d *RegionDirectory) get(key string) (cachedRegion, bool) {
	v, ok := d.cache.Get(key)
	if !ok {
		return cachedRegion{}, false
	}
	return v.(cachedRegion), true
}

// Purge drops all cached regions.
func (d *RegionDirectory) Purge() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache.Clear()
}
