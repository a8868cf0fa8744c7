package checkout

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/catalog"
	"storefront/pkg/errors"
)

func price(v int64) *int64 { return &v }

func testCart() Cart {
	shirt := &catalog.Variant{
		ID:              "var_s_red",
		Title:           "S / Red",
		Prices:          []catalog.Price{{CurrencyCode: "usd", Amount: 2500}},
		CalculatedPrice: price(2000),
	}
	mug := &catalog.Variant{
		ID:     "var_mug",
		Title:  "Mug",
		Prices: []catalog.Price{{CurrencyCode: "usd", Amount: 1200}},
	}
	return NewCart("reg_us", "USD", []CartLine{
		{Variant: shirt, Quantity: 2},
		{Variant: mug, Quantity: 1},
		{Variant: nil, Quantity: 4},
	})
}

func testAddress() SubmitAddress {
	return SubmitAddress{
		Email: "shopper@example.com",
		Address: Address{
			FirstName:   "Ada",
			LastName:    "Lovelace",
			Address1:    "1 Main St",
			City:        "Springfield",
			PostalCode:  "12345",
			CountryCode: "US",
		},
	}
}

func run(t *testing.T, actions ...Action) State {
	t.Helper()
	var st State
	for _, a := range actions {
		var err error
		st, err = Reduce(st, a)
		require.NoError(t, err, "action %s", a.Type())
	}
	return st
}

func TestNewCartPricesLines(t *testing.T) {
	cart := testCart()

	require.Len(t, cart.Items, 2)
	assert.NotEqual(t, uuid.Nil, cart.ID)
	assert.Equal(t, "usd", cart.CurrencyCode)
	assert.Equal(t, int64(2000), cart.Items[0].UnitPrice)
	assert.Equal(t, int64(2500), cart.Items[0].OriginalUnitPrice)

	totals := CartTotals(cart)
	assert.Equal(t, 3, totals.ItemCount)
	assert.Equal(t, int64(5200), totals.Subtotal)
	assert.Equal(t, int64(1000), totals.Discount)
	assert.Equal(t, int64(5200), totals.Total)
}

func TestHappyPath(t *testing.T) {
	placed := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	st := run(t,
		Start{Cart: testCart()},
		testAddress(),
		SelectShipping{Option: ShippingOption{ID: "so_standard", Name: "Standard", Amount: 800}},
		SelectPayment{ProviderID: "pp_manual"},
		PlaceOrder{At: placed},
	)

	assert.Equal(t, StepComplete, st.Step)
	require.NotNil(t, st.Cart.CompletedAt)
	assert.True(t, placed.Equal(*st.Cart.CompletedAt))
	assert.Equal(t, "us", st.Cart.ShippingAddress.CountryCode)
	assert.Equal(t, int64(6000), CartTotals(st.Cart).Total)

	_, err := Reduce(st, EditStep{Step: StepAddress})
	assert.True(t, errors.Is(err, errors.CodeInvalidTransition))
}

func TestRejectedActionLeavesStateUnchanged(t *testing.T) {
	st := run(t, Start{Cart: testCart()})

	tests := []struct {
		name   string
		action Action
	}{
		{"shipping before address", SelectShipping{Option: ShippingOption{ID: "so"}}},
		{"place order early", PlaceOrder{}},
		{"bad email", SubmitAddress{Email: "not-an-email", Address: testAddress().Address}},
		{"missing city", func() Action { a := testAddress(); a.Address.City = " "; return a }()},
		{"edit unreached step", EditStep{Step: StepReview}},
		{"start twice", Start{Cart: testCart()}},
		{"nil action", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := Reduce(st, tt.action)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.CodeInvalidTransition))
			assert.Equal(t, st, next)
		})
	}
}

func TestActionsBeforeStart(t *testing.T) {
	_, err := Reduce(State{}, testAddress())
	assert.True(t, errors.Is(err, errors.CodeInvalidTransition))

	_, err = Reduce(State{}, Start{Cart: Cart{ID: uuid.New()}})
	assert.Error(t, err, "empty cart")

	bad := testCart()
	bad.Items[0].Quantity = 0
	_, err = Reduce(State{}, Start{Cart: bad})
	assert.Error(t, err)
}

func TestEditStepAndCountryChange(t *testing.T) {
	st := run(t,
		Start{Cart: testCart()},
		testAddress(),
		SelectShipping{Option: ShippingOption{ID: "so_standard", Amount: 800}},
		SelectPayment{ProviderID: "pp_manual"},
	)
	require.Equal(t, StepReview, st.Step)

	// Same country: the shopper can jump straight back to review.
	back, err := Reduce(st, EditStep{Step: StepAddress})
	require.NoError(t, err)
	back, err = Reduce(back, testAddress())
	require.NoError(t, err)
	back, err = Reduce(back, EditStep{Step: StepReview})
	require.NoError(t, err)
	assert.NotNil(t, back.Cart.ShippingOption)

	// New country: delivery must be chosen again.
	moved := testAddress()
	moved.Address.CountryCode = "ca"
	st, err = Reduce(st, EditStep{Step: StepAddress})
	require.NoError(t, err)
	st, err = Reduce(st, moved)
	require.NoError(t, err)
	assert.Nil(t, st.Cart.ShippingOption)
	_, err = Reduce(st, EditStep{Step: StepReview})
	assert.Error(t, err)
}

func TestReduceDoesNotAliasInput(t *testing.T) {
	st := run(t, Start{Cart: testCart()}, testAddress())
	next, err := Reduce(st, EditStep{Step: StepAddress})
	require.NoError(t, err)

	next.Cart.ShippingAddress.City = "Shelbyville"
	next.Cart.Items[0].Quantity = 9
	assert.Equal(t, "Springfield", st.Cart.ShippingAddress.City)
	assert.Equal(t, 2, st.Cart.Items[0].Quantity)
}

func TestDecodeAction(t *testing.T) {
	a, err := DecodeAction([]byte(`{"type":"submit_address","payload":{"email":"a@b.co","address":{"city":"Oslo"}}}`))
	require.NoError(t, err)
	addr, ok := a.(SubmitAddress)
	require.True(t, ok)
	assert.Equal(t, "a@b.co", addr.Email)
	assert.Equal(t, "Oslo", addr.Address.City)

	a, err = DecodeAction([]byte(`{"type":"edit_step","payload":{"step":"delivery"}}`))
	require.NoError(t, err)
	assert.Equal(t, EditStep{Step: StepDelivery}, a)

	a, err = DecodeAction([]byte(`{"type":"place_order"}`))
	require.NoError(t, err)
	assert.Equal(t, "place_order", a.Type())

	_, err = DecodeAction([]byte(`{"type":"refund"}`))
	assert.True(t, errors.Is(err, errors.CodeInvalidTransition))

	_, err = DecodeAction([]byte(`{"type":"edit_step","payload":{"step":"shipping"}}`))
	assert.Error(t, err)

	_, err = DecodeAction([]byte(`not json`))
	assert.Error(t, err)
}

func TestSessions(t *testing.T) {
	s := NewSessions()
	cart := testCart()

	st, err := s.Start(cart)
	require.NoError(t, err)
	assert.Equal(t, StepAddress, st.Step)

	_, err = s.Start(cart)
	assert.Error(t, err)

	st, err = s.Apply(cart.ID, testAddress())
	require.NoError(t, err)
	assert.Equal(t, StepDelivery, st.Step)

	st, err = s.Apply(cart.ID, PlaceOrder{})
	assert.Error(t, err)
	assert.Equal(t, StepDelivery, st.Step)

	got, ok := s.Get(cart.ID)
	require.True(t, ok)
	assert.Equal(t, StepDelivery, got.Step)

	_, err = s.Apply(uuid.New(), PlaceOrder{})
	assert.Error(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestStepText(t *testing.T) {
	for st := StepAddress; st <= StepComplete; st++ {
		parsed, ok := ParseStep(st.String())
		require.True(t, ok)
		assert.Equal(t, st, parsed)
	}
	_, ok := ParseStep("shipping")
	assert.False(t, ok)
	assert.Equal(t, "unknown", Step(42).String())
}
