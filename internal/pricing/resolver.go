// Package pricing resolves variant prices for a currency, detects active sales and orders variants
// for price range display. Every function is total: missing data degrades to zero values.
package pricing

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/catalog"
)

// VariantPrice is the resolved price breakdown of one variant in one currency.
type VariantPrice struct {
	VariantID    string `json:"variant_id"`
	CurrencyCode string `json:"currency_code"`

	Original   int64  `json:"original"`
	Calculated *int64 `json:"calculated,omitempty"`

	PriceList     *catalog.PriceList `json:"price_list,omitempty"`
	SaleEndsAt    *time.Time         `json:"sale_ends_at,omitempty"`
	OnSale        bool               `json:"on_sale"`
	PercentageOff int                `json:"percentage_off,omitempty"`

	// HasPriceRow is false when no price row matched the currency.
	HasPriceRow bool `json:"-"`
}

// Effective is the amount the shopper pays: the calculated price when present, else the original.
func (p VariantPrice) Effective() int64 {
	if p.Calculated != nil {
		return *p.Calculated
	}
	return p.Original
}

// GetVariantPrices picks the lowest price row in currencyCode as the base price. The original
// amount falls back to the variant's original_price when no row matches, then to zero. The
// calculated amount is passed through from the pricing backend untouched.
func GetVariantPrices(v *catalog.Variant, currencyCode string) VariantPrice {
	res := VariantPrice{CurrencyCode: strings.ToLower(currencyCode)}
	if v == nil {
		return res
	}
	res.VariantID = v.ID

	base, ok := lowestPrice(v.Prices, currencyCode)
	switch {
	case ok:
		res.Original = base.Amount
		res.HasPriceRow = true
		res.PriceList = base.PriceList
	case v.OriginalPrice != nil:
		res.Original = *v.OriginalPrice
	}

	if v.CalculatedPrice != nil {
		calculated := *v.CalculatedPrice
		res.Calculated = &calculated
	}
	res.OnSale = res.Calculated != nil && *res.Calculated < res.Original
	if res.OnSale {
		res.PercentageOff = PercentageDiff(res.Original, *res.Calculated)
	}
	if res.PriceList != nil && res.PriceList.EndsAt != nil {
		endsAt := *res.PriceList.EndsAt
		res.SaleEndsAt = &endsAt
	}
	return res
}

func lowestPrice(prices []catalog.Price, currencyCode string) (catalog.Price, bool) {
	matching := make([]catalog.Price, 0, len(prices))
	for _, p := range prices {
		if strings.EqualFold(p.CurrencyCode, currencyCode) {
			matching = append(matching, p)
		}
	}
	if len(matching) == 0 {
		return catalog.Price{}, false
	}
	sort.SliceStable(matching, func(i, j int) bool {
		return matching[i].Amount < matching[j].Amount
	})
	return matching[0], true
}

// PercentageDiff returns the discount of calculated against original as a rounded percentage.
func PercentageDiff(original, calculated int64) int {
	if original <= 0 {
		return 0
	}
	diff := decimal.NewFromInt(original - calculated)
	return int(diff.Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(original)).Round(0).IntPart())
}

// SortVariantsByPrice returns a new slice ordered by ascending effective price in currencyCode.
// Variants with equal prices keep their input order.
func SortVariantsByPrice(variants []catalog.Variant, currencyCode string) []catalog.Variant {
	type priced struct {
		v      catalog.Variant
		amount int64
	}
	rows := make([]priced, len(variants))
	for i := range variants {
		rows[i] = priced{v: variants[i], amount: GetVariantPrices(&variants[i], currencyCode).Effective()}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].amount < rows[j].amount
	})
	out := make([]catalog.Variant, len(rows))
	for i, r := range rows {
		out[i] = r.v
	}
	return out
}

// Range is the cheapest and most expensive variant price of a product.
type Range struct {
	Min VariantPrice `json:"min"`
	Max VariantPrice `json:"max"`
}

// IsSingle reports whether min and max are the same amount.
func (r Range) IsSingle() bool {
	return r.Min.Effective() == r.Max.Effective()
}

// PriceRange returns the first and last variant after sorting by price. ok is false without variants.
func PriceRange(variants []catalog.Variant, currencyCode string) (Range, bool) {
	if len(variants) == 0 {
		return Range{}, false
	}
	sorted := SortVariantsByPrice(variants, currencyCode)
	return Range{
		Min: GetVariantPrices(&sorted[0], currencyCode),
		Max: GetVariantPrices(&sorted[len(sorted)-1], currencyCode),
	}, true
}

// CheapestPrice is the lowest variant price of a product, used on listing cards.
func CheapestPrice(p *catalog.Product, currencyCode string) (VariantPrice, bool) {
	if p == nil {
		return VariantPrice{}, false
	}
	r, ok := PriceRange(p.Variants, currencyCode)
	if !ok {
		return VariantPrice{}, false
	}
	return r.Min, true
}

// ProductPrices holds every variant of a product resolved in one currency.
type ProductPrices struct {
	ProductID    string         `json:"product_id"`
	CurrencyCode string         `json:"currency_code"`
	Variants     []VariantPrice `json:"variants"`
	Range        *Range         `json:"range,omitempty"`
	Warnings     []string       `json:"warnings,omitempty"`
}

// ResolveProduct resolves all variants of p sorted by price. Variants without a price row in the
// currency are still listed and reported in Warnings.
func ResolveProduct(p *catalog.Product, currencyCode string) *ProductPrices {
	result := &ProductPrices{
		CurrencyCode: strings.ToLower(currencyCode),
		Variants:     []VariantPrice{},
		Warnings:     []string{},
	}
	if p == nil {
		return result
	}
	result.ProductID = p.ID

	for _, v := range SortVariantsByPrice(p.Variants, currencyCode) {
		price := GetVariantPrices(&v, currencyCode)
		if !price.HasPriceRow {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("no %s price row for variant %s", result.CurrencyCode, v.ID))
		}
		result.Variants = append(result.Variants, price)
	}
	if n := len(result.Variants); n > 0 {
		result.Range = &Range{Min: result.Variants[0], Max: result.Variants[n-1]}
	}
	return result
}
