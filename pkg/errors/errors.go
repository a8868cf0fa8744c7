// Package errors provides coded, severity-aware errors for the storefront boundary.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Severity indicates error impact level.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Error codes
const (
	CodeProductNotFound   = "PRODUCT_NOT_FOUND"
	CodeRegionNotFound    = "REGION_NOT_FOUND"
	CodeInvalidProduct    = "INVALID_PRODUCT"
	CodeInvalidSelection  = "INVALID_SELECTION"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeUpstreamFailed    = "UPSTREAM_FAILED"
)

// StoreError is a structured error carrying a stable code.
type StoreError struct {
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Severity   Severity `json:"severity"`
	ResourceID string   `json:"resource_id,omitempty"`
	Err        error    `json:"-"`
}

func (e *StoreError) Error() string {
	msg := e.Message
	if e.ResourceID != "" {
		msg = fmt.Sprintf("%s (resource: %s)", msg, e.ResourceID)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *StoreError) Unwrap() error { return e.Err }

// CodeOf returns the code of the first StoreError in err's chain, or "".
func CodeOf(err error) string {
	var se *StoreError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// NewProductNotFoundError creates an error for an unknown product.
func NewProductNotFoundError(productID string) *StoreError {
	return &StoreError{
		Code:       CodeProductNotFound,
		Message:    "product not found",
		Severity:   SeverityWarning,
		ResourceID: productID,
	}
}

// NewRegionNotFoundError creates an error for an unknown region or country.
func NewRegionNotFoundError(ref string) *StoreError {
	return &StoreError{
		Code:       CodeRegionNotFound,
		Message:    "region not found",
		Severity:   SeverityWarning,
		ResourceID: ref,
	}
}

// NewInvalidProductError creates an error for a product that fails boundary validation.
func NewInvalidProductError(productID, format string, args ...any) *StoreError {
	return &StoreError{
		Code:       CodeInvalidProduct,
		Message:    fmt.Sprintf(format, args...),
		Severity:   SeverityError,
		ResourceID: productID,
	}
}

// NewInvalidSelectionError creates an error for an option selection that resolves to no variant.
func NewInvalidSelectionError(productID, message string) *StoreError {
	return &StoreError{
		Code:       CodeInvalidSelection,
		Message:    message,
		Severity:   SeverityInfo,
		ResourceID: productID,
	}
}

// NewInvalidTransitionError creates an error for a rejected checkout action.
func NewInvalidTransitionError(format string, args ...any) *StoreError {
	return &StoreError{
		Code:     CodeInvalidTransition,
		Message:  fmt.Sprintf(format, args...),
		Severity: SeverityWarning,
	}
}

// NewUpstreamError wraps a failure talking to the commerce backend.
func NewUpstreamError(resource string, err error) *StoreError {
	return &StoreError{
		Code:       CodeUpstreamFailed,
		Message:    "commerce backend request failed",
		Severity:   SeverityError,
		ResourceID: resource,
		Err:        err,
	}
}
