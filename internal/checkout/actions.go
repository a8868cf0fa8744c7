package checkout

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"storefront/pkg/errors"
)

// Action is one checkout event. The set of actions is closed: only the types in this file
// implement it.
type Action interface {
	Type() string
	apply(State) (State, error)
}

// Start begins checkout for a priced cart.
type Start struct {
	Cart Cart `json:"cart"`
}

// SubmitAddress records the contact email and shipping address.
type SubmitAddress struct {
	Email   string  `json:"email"`
	Address Address `json:"address"`
}

// SelectShipping picks the delivery method.
type SelectShipping struct {
	Option ShippingOption `json:"option"`
}

// SelectPayment records the payment provider chosen by the shopper.
type SelectPayment struct {
	ProviderID string `json:"provider_id"`
}

// EditStep returns to an earlier step that was already completed.
type EditStep struct {
	Step Step `json:"step"`
}

// PlaceOrder completes the checkout.
type PlaceOrder struct {
	At time.Time `json:"at"`
}

func (Start) Type() string          { return "start" }
func (SubmitAddress) Type() string  { return "submit_address" }
func (SelectShipping) Type() string { return "select_shipping" }
func (SelectPayment) Type() string  { return "select_payment" }
func (EditStep) Type() string       { return "edit_step" }
func (PlaceOrder) Type() string     { return "place_order" }

func (a Start) apply(s State) (State, error) {
	if s.Started() {
		return s, errors.NewInvalidTransitionError("checkout already started for cart %s", s.Cart.ID)
	}
	if a.Cart.ID == uuid.Nil {
		return s, errors.NewInvalidTransitionError("cart has no id")
	}
	if len(a.Cart.Items) == 0 {
		return s, errors.NewInvalidTransitionError("cart is empty")
	}
	for _, item := range a.Cart.Items {
		if item.Quantity <= 0 {
			return s, errors.NewInvalidTransitionError("line %s has quantity %d", item.VariantID, item.Quantity)
		}
	}
	return State{Step: StepAddress, Cart: a.Cart}, nil
}

func (a SubmitAddress) apply(s State) (State, error) {
	if err := requireStep(s, StepAddress, a.Type()); err != nil {
		return s, err
	}
	if !validEmail(a.Email) {
		return s, errors.NewInvalidTransitionError("invalid email %q", a.Email)
	}
	addr := a.Address
	addr.CountryCode = strings.ToLower(addr.CountryCode)
	var missing []string
	for field, value := range map[string]string{
		"first_name":   addr.FirstName,
		"last_name":    addr.LastName,
		"address_1":    addr.Address1,
		"city":         addr.City,
		"postal_code":  addr.PostalCode,
		"country_code": addr.CountryCode,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return s, errors.NewInvalidTransitionError("address is missing %s", strings.Join(missing, ", "))
	}

	// A new destination invalidates the delivery method chosen for the old one.
	if prev := s.Cart.ShippingAddress; prev != nil && prev.CountryCode != addr.CountryCode {
		s.Cart.ShippingOption = nil
		s.Reached = StepDelivery
	}
	s.Cart.Email = a.Email
	s.Cart.ShippingAddress = &addr
	s.Step = StepDelivery
	return s, nil
}

func (a SelectShipping) apply(s State) (State, error) {
	if err := requireStep(s, StepDelivery, a.Type()); err != nil {
		return s, err
	}
	if a.Option.ID == "" {
		return s, errors.NewInvalidTransitionError("shipping option id is empty")
	}
	if a.Option.Amount < 0 {
		return s, errors.NewInvalidTransitionError("shipping option %s has a negative amount", a.Option.ID)
	}
	opt := a.Option
	s.Cart.ShippingOption = &opt
	s.Step = StepPayment
	return s, nil
}

func (a SelectPayment) apply(s State) (State, error) {
	if err := requireStep(s, StepPayment, a.Type()); err != nil {
		return s, err
	}
	if a.ProviderID == "" {
		return s, errors.NewInvalidTransitionError("payment provider is empty")
	}
	s.Cart.PaymentProviderID = a.ProviderID
	s.Step = StepReview
	return s, nil
}

func (a EditStep) apply(s State) (State, error) {
	if a.Step >= StepComplete || a.Step > s.Reached {
		return s, errors.NewInvalidTransitionError("cannot edit step %s before reaching it", a.Step)
	}
	s.Step = a.Step
	return s, nil
}

func (a PlaceOrder) apply(s State) (State, error) {
	if err := requireStep(s, StepReview, a.Type()); err != nil {
		return s, err
	}
	c := s.Cart
	if c.ShippingAddress == nil || c.ShippingOption == nil || c.PaymentProviderID == "" {
		return s, errors.NewInvalidTransitionError("cart %s is incomplete", c.ID)
	}
	at := a.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	s.Cart.CompletedAt = &at
	s.Step = StepComplete
	return s, nil
}

// Envelope is the wire form of an action: {"type": "...", "payload": {...}}.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeAction decodes an action envelope.
func DecodeAction(data []byte) (Action, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode action envelope: %w", err)
	}

	var action Action
	var err error
	switch env.Type {
	case "start":
		var a Start
		err = unmarshalPayload(env.Payload, &a)
		action = a
	case "submit_address":
		var a SubmitAddress
		err = unmarshalPayload(env.Payload, &a)
		action = a
	case "select_shipping":
		var a SelectShipping
		err = unmarshalPayload(env.Payload, &a)
		action = a
	case "select_payment":
		var a SelectPayment
		err = unmarshalPayload(env.Payload, &a)
		action = a
	case "edit_step":
		var a EditStep
		err = unmarshalPayload(env.Payload, &a)
		action = a
	case "place_order":
		var a PlaceOrder
		err = unmarshalPayload(env.Payload, &a)
		action = a
	default:
		return nil, errors.NewInvalidTransitionError("unknown action type %q", env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return action, nil
}

func unmarshalPayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}
