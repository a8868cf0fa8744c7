// Package catalog holds the read-only product projections served by the commerce backend
// and the pure variant selection logic built on top of them.
package catalog

import "time"

// Product is a sellable item with configurable options and purchasable variants.
type Product struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Handle    string     `json:"handle"`
	Thumbnail string     `json:"thumbnail,omitempty"`
	Options   []Option   `json:"options"`
	Variants  []Variant  `json:"variants"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Option is a named selection axis, e.g. "Size".
type Option struct {
	ID     string        `json:"id"`
	Title  string        `json:"title"`
	Values []OptionValue `json:"values"`
}

// OptionValue is one allowed value of an option.
type OptionValue struct {
	ID       string `json:"id,omitempty"`
	Value    string `json:"value"`
	OptionID string `json:"option_id,omitempty"`
}

// VariantOption assigns a value to one option of the owning product.
type VariantOption struct {
	ID       string `json:"id,omitempty"`
	OptionID string `json:"option_id"`
	Value    string `json:"value"`
}

// Variant is one concrete purchasable configuration of a product.
type Variant struct {
	ID      string          `json:"id"`
	Title   string          `json:"title"`
	SKU     string          `json:"sku,omitempty"`
	Options []VariantOption `json:"options"`
	Prices  []Price         `json:"prices"`

	// Resolved by the pricing backend for the requested region.
	OriginalPrice   *int64 `json:"original_price,omitempty"`
	CalculatedPrice *int64 `json:"calculated_price,omitempty"`

	InventoryQuantity int  `json:"inventory_quantity"`
	ManageInventory   bool `json:"manage_inventory"`
	AllowBackorder    bool `json:"allow_backorder"`
}

// Price is an amount in minor units for one currency.
type Price struct {
	ID           string     `json:"id,omitempty"`
	CurrencyCode string     `json:"currency_code"`
	Amount       int64      `json:"amount"`
	RegionID     string     `json:"region_id,omitempty"`
	PriceList    *PriceList `json:"price_list,omitempty"`
}

// PriceList is a time-bounded or region-scoped override, used for sales.
type PriceList struct {
	ID     string     `json:"id"`
	Name   string     `json:"name,omitempty"`
	Type   string     `json:"type,omitempty"`
	EndsAt *time.Time `json:"ends_at,omitempty"`
}

// Region groups countries under one currency.
type Region struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	CurrencyCode string   `json:"currency_code"`
	Countries    []string `json:"countries"`
}

// Option returns the option with the given ID.
func (p *Product) Option(id string) (*Option, bool) {
	if p == nil {
		return nil, false
	}
	for i := range p.Options {
		if p.Options[i].ID == id {
			return &p.Options[i], true
		}
	}
	return nil, false
}

// OptionByTitle returns the first option whose title matches.
func (p *Product) OptionByTitle(title string) (*Option, bool) {
	if p == nil {
		return nil, false
	}
	for i := range p.Options {
		if p.Options[i].Title == title {
			return &p.Options[i], true
		}
	}
	return nil, false
}

// Variant returns the variant with the given ID.
func (p *Product) Variant(id string) (*Variant, bool) {
	if p == nil {
		return nil, false
	}
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// OptionValue returns the value this variant assigns to optionID.
func (v *Variant) OptionValue(optionID string) (string, bool) {
	if v == nil {
		return "", false
	}
	for _, o := range v.Options {
		if o.OptionID == optionID {
			return o.Value, true
		}
	}
	return "", false
}

// InStock reports whether the variant can be added to a cart.
func InStock(v *Variant) bool {
	if v == nil {
		return false
	}
	if !v.ManageInventory || v.AllowBackorder {
		return true
	}
	return v.InventoryQuantity > 0
}
