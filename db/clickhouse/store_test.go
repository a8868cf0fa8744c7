package clickhouse

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/catalog"
)

func amount(v int64) *int64 { return &v }

func TestObservationsFor(t *testing.T) {
	at := time.Date(2026, 10, 17, 14, 0, 0, 0, time.FixedZone("CEST", 2*60*60))
	p := &catalog.Product{
		ID: "prod_tshirt",
		Variants: []catalog.Variant{
			{
				ID: "var_s",
				Prices: []catalog.Price{
					{CurrencyCode: "eur", Amount: 2000},
					{CurrencyCode: "usd", Amount: 2200},
				},
				CalculatedPrice: amount(1500),
			},
			{ID: "var_m", Prices: []catalog.Price{{CurrencyCode: "usd", Amount: 2200}}},
			{ID: "var_l", OriginalPrice: amount(2500)},
		},
	}

	obs := ObservationsFor(p, "reg_eu", "EUR", at)
	require.Len(t, obs, 2, "var_m has no eur price")

	s := obs[0]
	assert.Equal(t, "var_s", s.VariantID)
	assert.Equal(t, "eur", s.Currency)
	assert.Equal(t, int64(1500), s.Amount)
	assert.Equal(t, int64(2000), s.Original)
	assert.True(t, s.OnSale)
	assert.True(t, decimal.RequireFromString("15").Equal(s.Price))
	assert.Equal(t, time.UTC, s.ObservedAt.Location())
	assert.Len(t, s.Hash, 64)

	assert.Equal(t, "var_l", obs[1].VariantID)
	assert.Equal(t, int64(2500), obs[1].Amount)
	assert.False(t, obs[1].OnSale)

	assert.Nil(t, ObservationsFor(nil, "reg_eu", "eur", at))
}

func TestObservationHash(t *testing.T) {
	o := Observation{VariantID: "var_s", RegionID: "reg_eu", Currency: "eur", Amount: 1500, Original: 2000}
	same := o
	same.ObservedAt = time.Now()
	assert.Equal(t, observationHash(o), observationHash(same), "time is not part of the price point")

	changed := o
	changed.Amount = 1400
	assert.NotEqual(t, observationHash(o), observationHash(changed))
}

func TestOptionsFor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "secret"
	opts := optionsFor(cfg)
	assert.Equal(t, []string{"localhost:9000"}, opts.Addr)
	assert.Equal(t, "default", opts.Auth.Database)
	assert.Equal(t, "secret", opts.Auth.Password)
}
