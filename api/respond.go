package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"storefront/internal/pricing"
	"storefront/pkg/errors"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Money is an amount in minor units with its display string.
type Money struct {
	Amount       int64  `json:"amount"`
	CurrencyCode string `json:"currency_code"`
	Formatted    string `json:"formatted"`
}

func money(amount int64, currency string) Money {
	return Money{Amount: amount, CurrencyCode: currency, Formatted: pricing.FormatAmount(amount, currency)}
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) jsonError(w http.ResponseWriter, status int, code, message string) {
	s.jsonResponse(w, status, errorBody{Error: code, Message: message})
}

// storeError writes err with the status its code maps to.
func (s *Server) storeError(w http.ResponseWriter, r *http.Request, err error) {
	s.storeErrorStatus(w, r, statusFor(err), err)
}

func (s *Server) storeErrorStatus(w http.ResponseWriter, r *http.Request, status int, err error) {
	code := errors.CodeOf(err)
	message := err.Error()
	var se *errors.StoreError
	if stderrors.As(err, &se) {
		message = se.Message
	}
	if code == "" {
		code = "INTERNAL"
		if status == http.StatusGatewayTimeout {
			code = "TIMEOUT"
		}
		message = http.StatusText(status)
	}
	if status >= 500 {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	s.jsonError(w, status, code, message)
}

func statusFor(err error) int {
	switch errors.CodeOf(err) {
	case errors.CodeProductNotFound, errors.CodeRegionNotFound:
		return http.StatusNotFound
	case errors.CodeInvalidSelection:
		return http.StatusBadRequest
	case errors.CodeInvalidTransition:
		return http.StatusConflict
	case errors.CodeInvalidProduct, errors.CodeUpstreamFailed:
		return http.StatusBadGateway
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
