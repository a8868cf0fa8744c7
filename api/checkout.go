package api

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"storefront/internal/catalog"
	"storefront/internal/checkout"
	"storefront/pkg/errors"
)

const maxBodyBytes = 1 << 20

// StartCheckoutRequest lists the cart lines to price.
type StartCheckoutRequest struct {
	RegionID string `json:"region_id"`
	Items    []struct {
		ProductID string `json:"product_id"`
		VariantID string `json:"variant_id"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
}

// CheckoutResponse is the checkout state with computed totals.
type CheckoutResponse struct {
	checkout.State
	Totals checkout.Totals `json:"totals"`
}

func (s *Server) checkoutResponse(w http.ResponseWriter, status int, st checkout.State) {
	s.jsonResponse(w, status, CheckoutResponse{State: st, Totals: checkout.CartTotals(st.Cart)})
}

func (s *Server) handleStartCheckout(w http.ResponseWriter, r *http.Request) {
	var req StartCheckoutRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	if req.RegionID == "" {
		req.RegionID = s.config.DefaultRegion
	}
	if req.RegionID == "" || s.deps.Regions == nil {
		s.jsonError(w, http.StatusBadRequest, errors.CodeRegionNotFound, "region_id is required")
		return
	}
	if len(req.Items) == 0 {
		s.jsonError(w, http.StatusBadRequest, errors.CodeInvalidTransition, "cart is empty")
		return
	}

	region, err := s.deps.Regions.ByID(r.Context(), req.RegionID)
	if err != nil {
		s.storeError(w, r, err)
		return
	}

	// Fetch each distinct product once, a few at a time.
	var mu sync.Mutex
	products := make(map[string]*catalog.Product)
	g, gctx := errgroup.WithContext(r.Context())
	g.SetLimit(4)
	for _, item := range req.Items {
		id := item.ProductID
		mu.Lock()
		_, seen := products[id]
		products[id] = nil
		mu.Unlock()
		if seen {
			continue
		}
		g.Go(func() error {
			p, err := s.deps.Products.GetProduct(gctx, id, region.ID)
			if err != nil {
				return err
			}
			mu.Lock()
			products[id] = p
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.storeError(w, r, err)
		return
	}

	lines := make([]checkout.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		v, ok := products[item.ProductID].Variant(item.VariantID)
		if !ok {
			s.storeError(w, r, errors.NewInvalidSelectionError(item.ProductID, "unknown variant "+item.VariantID))
			return
		}
		if item.Quantity <= 0 {
			s.storeError(w, r, errors.NewInvalidTransitionError("line %s has quantity %d", item.VariantID, item.Quantity))
			return
		}
		if !catalog.InStock(v) {
			s.storeError(w, r, errors.NewInvalidSelectionError(item.ProductID, "variant "+item.VariantID+" is out of stock"))
			return
		}
		lines = append(lines, checkout.CartLine{Variant: v, Quantity: item.Quantity})
	}

	st, err := s.deps.Sessions.Start(checkout.NewCart(region.ID, region.CurrencyCode, lines))
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	s.logger.Info().Str("cart_id", st.Cart.ID.String()).Int("lines", len(lines)).Msg("checkout started")
	s.checkoutResponse(w, http.StatusCreated, st)
}

func (s *Server) cartID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "cartID"))
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "INVALID_REQUEST", "cart id must be a UUID")
		return uuid.Nil, false
	}
	if _, ok := s.deps.Sessions.Get(id); !ok {
		s.jsonError(w, http.StatusNotFound, "CART_NOT_FOUND", "no checkout for cart "+id.String())
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) handleGetCheckout(w http.ResponseWriter, r *http.Request) {
	id, ok := s.cartID(w, r)
	if !ok {
		return
	}
	st, _ := s.deps.Sessions.Get(id)
	s.checkoutResponse(w, http.StatusOK, st)
}

func (s *Server) handleCheckoutAction(w http.ResponseWriter, r *http.Request) {
	id, ok := s.cartID(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	action, err := checkout.DecodeAction(body)
	if err != nil {
		if errors.CodeOf(err) == "" {
			err = errors.NewInvalidTransitionError("%v", err)
		}
		s.storeErrorStatus(w, r, http.StatusBadRequest, err)
		return
	}

	st, err := s.deps.Sessions.Apply(id, action)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	s.logger.Info().Str("cart_id", id.String()).Str("action", action.Type()).Str("step", st.Step.String()).Msg("checkout action")
	s.checkoutResponse(w, http.StatusOK, st)
}
