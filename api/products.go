package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"storefront/db/clickhouse"
	"storefront/internal/catalog"
	"storefront/internal/pricing"
	"storefront/pkg/errors"
)


// =============================================================================
// LOADING
// =============================================================================

// loadProduct fetches the product and its region. With an explicit region ID both requests run
// concurrently; a country code must be resolved to a region first.
func (s *Server) loadProduct(ctx context.Context, productID string, q url.Values) (*catalog.Product, *catalog.Region, error) {
	regionID := q.Get("region_id")
	var region *catalog.Region

	if regionID == "" && q.Get("country_code") != "" && s.deps.Regions != nil {
		r, err := s.deps.Regions.ByCountry(ctx, q.Get("country_code"))
		if err != nil {
			return nil, nil, err
		}
		region = &r
		regionID = r.ID
	}
	if regionID == "" {
		regionID = s.config.DefaultRegion
	}

	var product *catalog.Product
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.deps.Products.GetProduct(gctx, productID, regionID)
		product = p
		return err
	})
	if region == nil && regionID != "" && s.deps.Regions != nil {
		g.Go(func() error {
			r, err := s.deps.Regions.ByID(gctx, regionID)
			if err != nil {
				return err
			}
			region = &r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return product, region, nil
}

// currencyFor picks the display currency: an explicit ?currency= wins over the region's.
func currencyFor(q url.Values, region *catalog.Region) string {
	if c := q.Get("currency"); c != "" {
		return strings.ToLower(c)
	}
	if region != nil {
		return strings.ToLower(region.CurrencyCode)
	}
	return ""
}

// selectionFrom reads option selections keyed by p's option IDs from the query string. Any other
// parameter (tracking tags, cache busters) is ignored.
func selectionFrom(q url.Values, p *catalog.Product) map[string]string {
	selected := make(map[string]string)
	for _, opt := range p.Options {
		if v := q.Get(opt.ID); v != "" {
			selected[opt.ID] = v
		}
	}
	return selected
}

// recordPrices stores observed prices. Failures are logged and never fail the request.
func (s *Server) recordPrices(ctx context.Context, p *catalog.Product, region *catalog.Region, currency string) {
	if s.deps.History == nil || currency == "" {
		return
	}
	regionID := ""
	if region != nil {
		regionID = region.ID
	}
	obs := clickhouse.ObservationsFor(p, regionID, currency, time.Now())
	if err := s.deps.History.RecordObservations(ctx, obs); err != nil {
		s.logger.Warn().Err(err).Str("product_id", p.ID).Msg("failed to record price observations")
	}
}

// =============================================================================
// PRODUCT ENDPOINT
// =============================================================================

// MatrixSummary describes how many option combinations a product has and how many resolve.
type MatrixSummary struct {
	Combinations int      `json:"combinations"`
	Resolvable   int      `json:"resolvable"`
	Keys         []string `json:"keys"`
}

// ProductResponse is the product page payload.
type ProductResponse struct {
	Product      *catalog.Product `json:"product"`
	ThumbnailURL string           `json:"thumbnail_url,omitempty"`
	Region       *catalog.Region  `json:"region,omitempty"`
	Matrix       MatrixSummary    `json:"matrix"`
	PriceMin     *Money           `json:"price_min,omitempty"`
	PriceMax     *Money           `json:"price_max,omitempty"`
	Cheapest     *Money           `json:"cheapest,omitempty"`
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, region, err := s.loadProduct(r.Context(), chi.URLParam(r, "productID"), q)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	currency := currencyFor(q, region)

	m := s.deps.Matrices.Get(p)
	resp := ProductResponse{
		Product: p,
		Region:  region,
		Matrix: MatrixSummary{
			Combinations: len(m.Combinations()),
			Resolvable:   m.Len(),
			Keys:         m.Keys(),
		},
	}
	if thumb, err := s.deps.Images.ThumbnailURL(p.Thumbnail); err != nil {
		s.logger.Warn().Err(err).Str("product_id", p.ID).Msg("thumbnail url")
	} else {
		resp.ThumbnailURL = thumb
	}
	if currency != "" {
		if rng, ok := pricing.PriceRange(p.Variants, currency); ok {
			lo, hi := money(rng.Min.Effective(), currency), money(rng.Max.Effective(), currency)
			resp.PriceMin, resp.PriceMax, resp.Cheapest = &lo, &hi, &lo
		}
		s.recordPrices(r.Context(), p, region, currency)
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// =============================================================================
// VARIANT SELECTION
// =============================================================================

// VariantResponse is the selected variant with its display prices.
type VariantResponse struct {
	Variant     *catalog.Variant     `json:"variant"`
	Selection   map[string]string    `json:"selection"`
	Prices      pricing.VariantPrice `json:"prices"`
	Price       Money                `json:"price"`
	Original    Money                `json:"original"`
	InStock     bool                 `json:"in_stock"`
	LowestPrior *Money               `json:"lowest_prior_price,omitempty"`
}

func (s *Server) handleVariant(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID := chi.URLParam(r, "productID")
	p, region, err := s.loadProduct(r.Context(), productID, q)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	currency := currencyFor(q, region)
	selected := selectionFrom(q, p)

	m := s.deps.Matrices.Get(p)
	ordered, complete := m.OrderedSelection(selected)
	if !complete {
		s.storeErrorStatus(w, r, http.StatusBadRequest,
			errors.NewInvalidSelectionError(productID, "a value must be selected for every option"))
		return
	}
	matched, ok := catalog.SelectVariant(m, ordered)
	if !ok {
		s.storeErrorStatus(w, r, http.StatusNotFound,
			errors.NewInvalidSelectionError(productID, "no variant matches the selected options"))
		return
	}
	// The cached matrix may come from another region's fetch; prices and stock must come from p.
	v, ok := p.Variant(matched.ID)
	if !ok {
		s.storeErrorStatus(w, r, http.StatusNotFound,
			errors.NewInvalidSelectionError(productID, "no variant matches the selected options"))
		return
	}

	vp := pricing.GetVariantPrices(v, currency)
	resp := VariantResponse{
		Variant:   v,
		Selection: selected,
		Prices:    vp,
		Price:     money(vp.Effective(), currency),
		Original:  money(vp.Original, currency),
		InStock:   catalog.InStock(v),
	}
	if vp.OnSale && s.deps.History != nil {
		since := time.Now().Add(-s.config.HistoryWindow)
		low, found, err := s.deps.History.LowestPrice(r.Context(), v.ID, currency, since)
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Str("variant_id", v.ID).Msg("lowest prior price lookup failed")
		case found:
			lowest := money(low, currency)
			resp.LowestPrior = &lowest
		}
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// OptionValuesResponse lists the values still available for one option.
type OptionValuesResponse struct {
	OptionID string                `json:"option_id"`
	Values   []catalog.OptionValue `json:"values"`
}

func (s *Server) handleOptionValues(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID := chi.URLParam(r, "productID")
	optionID := chi.URLParam(r, "optionID")
	p, _, err := s.loadProduct(r.Context(), productID, q)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	if _, ok := p.Option(optionID); !ok {
		s.storeErrorStatus(w, r, http.StatusNotFound,
			errors.NewInvalidSelectionError(productID, "unknown option "+optionID))
		return
	}
	s.jsonResponse(w, http.StatusOK, OptionValuesResponse{
		OptionID: optionID,
		Values:   catalog.FilteredOptionValues(p, selectionFrom(q, p), optionID),
	})
}

// =============================================================================
// PRICES
// =============================================================================

// PriceLine is one variant's resolved price with display strings.
type PriceLine struct {
	pricing.VariantPrice
	Price    Money `json:"price"`
	Original Money `json:"original_price"`
}

// PricesResponse lists a product's variants from cheapest to most expensive.
type PricesResponse struct {
	ProductID    string      `json:"product_id"`
	CurrencyCode string      `json:"currency_code"`
	Variants     []PriceLine `json:"variants"`
	Min          *Money      `json:"min,omitempty"`
	Max          *Money      `json:"max,omitempty"`
	SinglePrice  bool        `json:"single_price"`
	Warnings     []string    `json:"warnings"`
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, region, err := s.loadProduct(r.Context(), chi.URLParam(r, "productID"), q)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	currency := currencyFor(q, region)
	if currency == "" {
		s.jsonError(w, http.StatusBadRequest, errors.CodeRegionNotFound, "region_id, country_code or currency is required")
		return
	}

	resolved := pricing.ResolveProduct(p, currency)
	resp := PricesResponse{
		ProductID:    resolved.ProductID,
		CurrencyCode: resolved.CurrencyCode,
		Variants:     make([]PriceLine, 0, len(resolved.Variants)),
		Warnings:     resolved.Warnings,
	}
	for _, vp := range resolved.Variants {
		resp.Variants = append(resp.Variants, PriceLine{
			VariantPrice: vp,
			Price:        money(vp.Effective(), currency),
			Original:     money(vp.Original, currency),
		})
	}
	if resolved.Range != nil {
		lo, hi := money(resolved.Range.Min.Effective(), currency), money(resolved.Range.Max.Effective(), currency)
		resp.Min, resp.Max = &lo, &hi
		resp.SinglePrice = resolved.Range.IsSingle()
	}
	s.recordPrices(r.Context(), p, region, currency)
	s.jsonResponse(w, http.StatusOK, resp)
}
