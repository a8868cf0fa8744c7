package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/catalog"
	"storefront/pkg/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite", "file:"+filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, s.EnsureSchema(context.Background()), "schema creation is idempotent")
	return s
}

func mug(title string) *catalog.Product {
	return &catalog.Product{
		ID:       "prod_mug",
		Title:    title,
		Variants: []catalog.Variant{{ID: "var_mug", Prices: []catalog.Price{{CurrencyCode: "eur", Amount: 900}}}},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.UnixMilli(1_760_000_000_000)

	_, _, err := s.GetProduct(ctx, "prod_mug", "reg_eu")
	assert.True(t, errors.Is(err, errors.CodeProductNotFound))

	require.NoError(t, s.PutProduct(ctx, "reg_eu", mug("Mug"), at))
	require.NoError(t, s.PutProduct(ctx, "reg_eu", mug("Big Mug"), at.Add(time.Minute)))
	require.NoError(t, s.PutProduct(ctx, "reg_na", mug("US Mug"), at))

	p, fetched, err := s.GetProduct(ctx, "prod_mug", "reg_eu")
	require.NoError(t, err)
	assert.Equal(t, "Big Mug", p.Title)
	assert.Equal(t, int64(900), p.Variants[0].Prices[0].Amount)
	assert.True(t, at.Add(time.Minute).Equal(fetched))

	p, _, err = s.GetProduct(ctx, "prod_mug", "reg_na")
	require.NoError(t, err)
	assert.Equal(t, "US Mug", p.Title)

	assert.Error(t, s.PutProduct(ctx, "reg_eu", &catalog.Product{}, at))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "")
	assert.Error(t, err)
}

type fakeUpstream struct {
	product *catalog.Product
	err     error
	calls   int
}

func (f *fakeUpstream) GetProduct(context.Context, string, string) (*catalog.Product, error) {
	f.calls++
	return f.product, f.err
}

func TestCachedSource(t *testing.T) {
	s := openTestStore(t)
	up := &fakeUpstream{product: mug("Mug")}
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	c := NewCachedSource(up, s, time.Minute, zerolog.Nop())
	c.now = func() time.Time { return now }
	ctx := context.Background()

	p, err := c.GetProduct(ctx, "prod_mug", "reg_eu")
	require.NoError(t, err)
	assert.Equal(t, "Mug", p.Title)
	assert.Equal(t, 1, up.calls)

	// Fresh snapshot: upstream untouched.
	up.product = mug("Big Mug")
	p, err = c.GetProduct(ctx, "prod_mug", "reg_eu")
	require.NoError(t, err)
	assert.Equal(t, "Mug", p.Title)
	assert.Equal(t, 1, up.calls)

	// Expired: refreshed from upstream.
	now = now.Add(2 * time.Minute)
	p, err = c.GetProduct(ctx, "prod_mug", "reg_eu")
	require.NoError(t, err)
	assert.Equal(t, "Big Mug", p.Title)

	// Expired and upstream down: stale snapshot.
	now = now.Add(2 * time.Minute)
	up.err = errors.NewUpstreamError("prod_mug", assert.AnError)
	p, err = c.GetProduct(ctx, "prod_mug", "reg_eu")
	require.NoError(t, err)
	assert.Equal(t, "Big Mug", p.Title)

	// Upstream says the product is gone: no stale fallback.
	up.err = errors.NewProductNotFoundError("prod_mug")
	_, err = c.GetProduct(ctx, "prod_mug", "reg_eu")
	assert.True(t, errors.Is(err, errors.CodeProductNotFound))

	// No snapshot at all: the upstream error surfaces.
	up.err = errors.NewUpstreamError("prod_mug", assert.AnError)
	_, err = c.GetProduct(ctx, "prod_mug", "reg_na")
	assert.True(t, errors.Is(err, errors.CodeUpstreamFailed))
}

func TestCachedSourceRejectsInvalidUpstream(t *testing.T) {
	s := openTestStore(t)
	bad := mug("Mug")
	bad.Variants[0].Options = []catalog.VariantOption{{OptionID: "opt_ghost", Value: "x"}}
	c := NewCachedSource(&fakeUpstream{product: bad}, s, time.Minute, zerolog.Nop())

	_, err := c.GetProduct(context.Background(), "prod_mug", "reg_eu")
	assert.True(t, errors.Is(err, errors.CodeInvalidProduct))

	_, _, err = s.GetProduct(context.Background(), "prod_mug", "reg_eu")
	assert.True(t, errors.Is(err, errors.CodeProductNotFound), "invalid products are not stored")
}
