// Package checkout models the multi-step checkout flow as an explicit state struct and a pure
// transition function keyed by action type.
package checkout

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"storefront/internal/catalog"
	"storefront/internal/pricing"
	"storefront/pkg/errors"
)

// Step is the checkout stage the shopper is on.
type Step int

const (
	StepAddress Step = iota
	StepDelivery
	StepPayment
	StepReview
	StepComplete
)

func (s Step) String() string {
	switch s {
	case StepAddress:
		return "address"
	case StepDelivery:
		return "delivery"
	case StepPayment:
		return "payment"
	case StepReview:
		return "review"
	case StepComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// ParseStep is the inverse of Step.String.
func ParseStep(s string) (Step, bool) {
	for st := StepAddress; st <= StepComplete; st++ {
		if st.String() == s {
			return st, true
		}
	}
	return 0, false
}

// MarshalText encodes the step by name.
func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a step name.
func (s *Step) UnmarshalText(b []byte) error {
	st, ok := ParseStep(string(b))
	if !ok {
		return errors.NewInvalidTransitionError("unknown step %q", string(b))
	}
	*s = st
	return nil
}

// LineItem is a priced cart line.
type LineItem struct {
	VariantID         string `json:"variant_id"`
	Title             string `json:"title"`
	Quantity          int    `json:"quantity"`
	UnitPrice         int64  `json:"unit_price"`
	OriginalUnitPrice int64  `json:"original_unit_price"`
}

// Address is a shipping address.
type Address struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Address1    string `json:"address_1"`
	Address2    string `json:"address_2,omitempty"`
	City        string `json:"city"`
	PostalCode  string `json:"postal_code"`
	CountryCode string `json:"country_code"`
	Phone       string `json:"phone,omitempty"`
}

// ShippingOption is a delivery method offered for the cart's region.
type ShippingOption struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

// Cart holds the entities collected during checkout.
type Cart struct {
	ID                uuid.UUID       `json:"id"`
	RegionID          string          `json:"region_id"`
	CurrencyCode      string          `json:"currency_code"`
	Items             []LineItem      `json:"items"`
	Email             string          `json:"email,omitempty"`
	ShippingAddress   *Address        `json:"shipping_address,omitempty"`
	ShippingOption    *ShippingOption `json:"shipping_option,omitempty"`
	PaymentProviderID string          `json:"payment_provider_id,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
}

// State is the full checkout state. The zero value is a checkout that has not started.
type State struct {
	Step Step `json:"step"`
	Cart Cart `json:"cart"`
	// Reached is the furthest step visited; EditStep may jump back to any step up to it.
	Reached Step `json:"reached"`
}

// Started reports whether a Start action has been applied.
func (s State) Started() bool {
	return s.Cart.ID != uuid.Nil
}

// CartLine is a variant and quantity to price into a cart.
type CartLine struct {
	Variant  *catalog.Variant
	Quantity int
}

// NewCart prices lines in the region currency through the pricing resolver.
func NewCart(regionID, currencyCode string, lines []CartLine) Cart {
	cart := Cart{
		ID:           uuid.New(),
		RegionID:     regionID,
		CurrencyCode: strings.ToLower(currencyCode),
		Items:        make([]LineItem, 0, len(lines)),
	}
	for _, l := range lines {
		if l.Variant == nil {
			continue
		}
		price := pricing.GetVariantPrices(l.Variant, currencyCode)
		cart.Items = append(cart.Items, LineItem{
			VariantID:         l.Variant.ID,
			Title:             l.Variant.Title,
			Quantity:          l.Quantity,
			UnitPrice:         price.Effective(),
			OriginalUnitPrice: price.Original,
		})
	}
	return cart
}

// Reduce applies action to state. A rejected action returns the unchanged state and an
// INVALID_TRANSITION error.
func Reduce(state State, action Action) (State, error) {
	if action == nil {
		return state, errors.NewInvalidTransitionError("nil action")
	}
	if _, isStart := action.(Start); !isStart {
		if !state.Started() {
			return state, errors.NewInvalidTransitionError("checkout not started")
		}
		if state.Step == StepComplete {
			return state, errors.NewInvalidTransitionError("checkout already complete")
		}
	}

	next, err := action.apply(cloneState(state))
	if err != nil {
		return state, err
	}
	if next.Step > next.Reached {
		next.Reached = next.Step
	}
	return next, nil
}

func cloneState(s State) State {
	s.Cart.Items = append([]LineItem(nil), s.Cart.Items...)
	if s.Cart.ShippingAddress != nil {
		addr := *s.Cart.ShippingAddress
		s.Cart.ShippingAddress = &addr
	}
	if s.Cart.ShippingOption != nil {
		opt := *s.Cart.ShippingOption
		s.Cart.ShippingOption = &opt
	}
	return s
}

func requireStep(s State, want Step, action string) error {
	if s.Step != want {
		return errors.NewInvalidTransitionError("%s is not allowed at step %s", action, s.Step)
	}
	return nil
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// Totals is the cart summary in minor units.
type Totals struct {
	ItemCount int   `json:"item_count"`
	Subtotal  int64 `json:"subtotal"`
	Discount  int64 `json:"discount"`
	Shipping  int64 `json:"shipping"`
	Total     int64 `json:"total"`
}

// CartTotals sums line items and the selected shipping option.
func CartTotals(c Cart) Totals {
	var t Totals
	for _, item := range c.Items {
		qty := int64(item.Quantity)
		t.ItemCount += item.Quantity
		t.Subtotal += item.UnitPrice * qty
		if d := item.OriginalUnitPrice - item.UnitPrice; d > 0 {
			t.Discount += d * qty
		}
	}
	if c.ShippingOption != nil {
		t.Shipping = c.ShippingOption.Amount
	}
	t.Total = t.Subtotal + t.Shipping
	return t
}
