// Package api provides the storefront's HTTP backend-for-frontend: product pages, variant
// selection, price display and the checkout flow.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"storefront/db/clickhouse"
	"storefront/internal/catalog"
	"storefront/internal/checkout"
	"storefront/internal/commerce"
	"storefront/internal/media"
)

// RegionResolver looks regions up by ID or country code.
type RegionResolver interface {
	ByID(ctx context.Context, id string) (catalog.Region, error)
	ByCountry(ctx context.Context, country string) (catalog.Region, error)
}

// PriceHistory records observed prices and answers lowest-price queries.
type PriceHistory interface {
	RecordObservations(ctx context.Context, obs []clickhouse.Observation) error
	LowestPrice(ctx context.Context, variantID, currency string, since time.Time) (int64, bool, error)
}

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the server is built from. Images, History and Pingers are optional.
type Deps struct {
	Products commerce.ProductSource
	Regions  RegionResolver
	Matrices *catalog.MatrixCache
	Sessions *checkout.Sessions
	Images   *media.Images
	History  PriceHistory
	Pingers  map[string]Pinger
	Logger   zerolog.Logger
}

// Server is the HTTP API server
type Server struct {
	httpServer *http.Server
	deps       Deps
	config     *Config
	logger     zerolog.Logger
}

// Config holds server configuration
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	DefaultRegion   string
	// HistoryWindow is how far back the lowest prior price is looked up for sale items.
	HistoryWindow time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Addr:            ":8080",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		RequestTimeout:  10 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		CORSOrigins:     []string{"*"},
		HistoryWindow:   30 * 24 * time.Hour,
	}
}

// NewServer creates a new API server
func NewServer(deps Deps, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if deps.Matrices == nil {
		deps.Matrices = catalog.NewMatrixCache(1024)
	}
	if deps.Sessions == nil {
		deps.Sessions = checkout.NewSessions()
	}
	return &Server{deps: deps, config: config, logger: deps.Logger}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)
	if s.config.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.RequestTimeout))
	}

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products/{productID}", func(r chi.Router) {
			r.Get("/", s.handleProduct)
			r.Get("/variant", s.handleVariant)
			r.Get("/options/{optionID}/values", s.handleOptionValues)
			r.Get("/prices", s.handlePrices)
		})
		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", s.handleStartCheckout)
			r.Get("/{cartID}", s.handleGetCheckout)
			r.Post("/{cartID}/actions", s.handleCheckoutAction)
		})
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Router(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()
	s.logger.Info().Str("addr", s.config.Addr).Msg("storefront API listening")

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		s.logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errChan
	}
}

// =============================================================================
// HEALTH ENDPOINTS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for name, p := range s.deps.Pingers {
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn().Err(err).Str("dependency", name).Msg("readiness check failed")
			s.jsonResponse(w, http.StatusServiceUnavailable, errorBody{Error: "NOT_READY", Message: name + " not ready"})
			return
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
