package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/catalog"
)

func amount(v int64) *int64 { return &v }

func TestGetVariantPricesSale(t *testing.T) {
	v := &catalog.Variant{
		ID: "var_1",
		Prices: []catalog.Price{
			{CurrencyCode: "usd", Amount: 500},
			{CurrencyCode: "cad", Amount: 600},
		},
		OriginalPrice:   amount(500),
		CalculatedPrice: amount(400),
	}

	got := GetVariantPrices(v, "usd")

	assert.Equal(t, int64(500), got.Original)
	require.NotNil(t, got.Calculated)
	assert.Equal(t, int64(400), *got.Calculated)
	assert.True(t, got.OnSale)
	assert.Equal(t, 20, got.PercentageOff)
	assert.Nil(t, got.SaleEndsAt)
	assert.Equal(t, int64(400), got.Effective())
}

func TestGetVariantPricesFallbacks(t *testing.T) {
	t.Run("no matching row and no original price", func(t *testing.T) {
		v := &catalog.Variant{ID: "var_1", Prices: []catalog.Price{{CurrencyCode: "eur", Amount: 900}}}
		got := GetVariantPrices(v, "usd")
		assert.Equal(t, int64(0), got.Original)
		assert.Nil(t, got.Calculated)
		assert.False(t, got.OnSale)
		assert.False(t, got.HasPriceRow)
	})

	t.Run("no matching row uses original price", func(t *testing.T) {
		v := &catalog.Variant{ID: "var_1", OriginalPrice: amount(1200)}
		got := GetVariantPrices(v, "usd")
		assert.Equal(t, int64(1200), got.Original)
	})

	t.Run("lowest matching row wins", func(t *testing.T) {
		v := &catalog.Variant{
			ID: "var_1",
			Prices: []catalog.Price{
				{ID: "p_region", CurrencyCode: "usd", Amount: 800},
				{ID: "p_list", CurrencyCode: "USD", Amount: 650},
				{ID: "p_eur", CurrencyCode: "eur", Amount: 100},
			},
			OriginalPrice: amount(9999),
		}
		got := GetVariantPrices(v, "usd")
		assert.Equal(t, int64(650), got.Original)
		assert.True(t, got.HasPriceRow)
	})

	t.Run("nil variant", func(t *testing.T) {
		got := GetVariantPrices(nil, "usd")
		assert.Equal(t, int64(0), got.Original)
		assert.Equal(t, "usd", got.CurrencyCode)
	})

	t.Run("calculated equal to original is not a sale", func(t *testing.T) {
		v := &catalog.Variant{Prices: []catalog.Price{{CurrencyCode: "usd", Amount: 500}}, CalculatedPrice: amount(500)}
		got := GetVariantPrices(v, "usd")
		assert.False(t, got.OnSale)
		assert.Equal(t, 0, got.PercentageOff)
	})
}

func TestGetVariantPricesSaleEnd(t *testing.T) {
	ends := time.Date(2026, 11, 30, 23, 59, 0, 0, time.UTC)
	v := &catalog.Variant{
		Prices: []catalog.Price{
			{CurrencyCode: "usd", Amount: 1000},
			{CurrencyCode: "usd", Amount: 750, PriceList: &catalog.PriceList{ID: "pl_bf", Type: "sale", EndsAt: &ends}},
		},
		CalculatedPrice: amount(750),
	}

	got := GetVariantPrices(v, "usd")

	assert.Equal(t, int64(750), got.Original)
	assert.False(t, got.OnSale)
	require.NotNil(t, got.PriceList)
	assert.Equal(t, "pl_bf", got.PriceList.ID)
	require.NotNil(t, got.SaleEndsAt)
	assert.True(t, ends.Equal(*got.SaleEndsAt))
}

func pricedVariant(id string, usd int64) catalog.Variant {
	return catalog.Variant{ID: id, Prices: []catalog.Price{{CurrencyCode: "usd", Amount: usd}}}
}

func ids(variants []catalog.Variant) []string {
	out := make([]string, len(variants))
	for i, v := range variants {
		out[i] = v.ID
	}
	return out
}

func TestSortVariantsByPrice(t *testing.T) {
	variants := []catalog.Variant{
		pricedVariant("a", 300),
		pricedVariant("b", 100),
		pricedVariant("c", 200),
	}

	sorted := SortVariantsByPrice(variants, "usd")

	assert.Equal(t, []string{"b", "c", "a"}, ids(sorted))
	assert.Equal(t, []string{"a", "b", "c"}, ids(variants), "input must not be reordered")

	r, ok := PriceRange(variants, "usd")
	require.True(t, ok)
	assert.Equal(t, int64(100), r.Min.Effective())
	assert.Equal(t, int64(300), r.Max.Effective())
	assert.False(t, r.IsSingle())
}

func TestSortVariantsByPriceStableAndCalculated(t *testing.T) {
	discounted := pricedVariant("d", 500)
	discounted.CalculatedPrice = amount(150)
	variants := []catalog.Variant{
		pricedVariant("x", 200),
		pricedVariant("y", 200),
		discounted,
		pricedVariant("z", 200),
	}

	assert.Equal(t, []string{"d", "x", "y", "z"}, ids(SortVariantsByPrice(variants, "usd")))
}

func TestPriceRangeEmpty(t *testing.T) {
	_, ok := PriceRange(nil, "usd")
	assert.False(t, ok)

	_, ok = CheapestPrice(&catalog.Product{ID: "p"}, "usd")
	assert.False(t, ok)

	_, ok = CheapestPrice(nil, "usd")
	assert.False(t, ok)
}

func TestResolveProduct(t *testing.T) {
	p := &catalog.Product{
		ID: "prod_1",
		Variants: []catalog.Variant{
			pricedVariant("a", 300),
			{ID: "unpriced"},
			pricedVariant("b", 100),
		},
	}

	res := ResolveProduct(p, "USD")

	require.Len(t, res.Variants, 3)
	assert.Equal(t, "usd", res.CurrencyCode)
	assert.Equal(t, "unpriced", res.Variants[0].VariantID)
	assert.Equal(t, "a", res.Range.Max.VariantID)
	assert.Equal(t, []string{"no usd price row for variant unpriced"}, res.Warnings)

	empty := ResolveProduct(nil, "usd")
	assert.Empty(t, empty.Variants)
	assert.Nil(t, empty.Range)
}

func TestPercentageDiff(t *testing.T) {
	assert.Equal(t, 20, PercentageDiff(500, 400))
	assert.Equal(t, 33, PercentageDiff(300, 200))
	assert.Equal(t, 67, PercentageDiff(300, 100))
	assert.Equal(t, 0, PercentageDiff(0, 0))
}
