package model

import (
	"errors"
	"fmt"
	"strconv"
)

// Sentinel errors for the cart error taxonomy.
// Use errors.Is() to check against these.
var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not found")
	ErrUnreachable    = errors.New("backend unreachable")
	ErrEmptyCart      = errors.New("cart is empty")
	ErrConflict       = errors.New("conflict")
	ErrInvalidRequest = errors.New("invalid request")
)

// APIError represents a structured error for API responses.
// Implements error interface and supports unwrapping.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"` // HTTP status, not serialized
	Err        error  `json:"-"` // Wrapped error, not serialized
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a 404 error for missing resources.
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: 404,
		Err:        ErrNotFound,
	}
}

// NewValidationError creates a 400 error for invalid input.
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:       "VALIDATION_ERROR",
		Message:    fmt.Sprintf("invalid %s: %s", field, reason),
		StatusCode: 400,
		Err:        ErrInvalidRequest,
	}
}

// NewUnauthorizedError creates a 401 error for auth failures.
// Any gateway call failing this way invalidates the session.
func NewUnauthorizedError(reason string) *APIError {
	return &APIError{
		Code:       "UNAUTHORIZED",
		Message:    reason,
		StatusCode: 401,
		Err:        ErrUnauthorized,
	}
}

// NewUnreachableError creates a 502 error for transport failures and 5xx
// responses from the backend.
func NewUnreachableError(service string, err error) *APIError {
	return &APIError{
		Code:       "UNREACHABLE",
		Message:    fmt.Sprintf("%s is unreachable", service),
		StatusCode: 502,
		Err:        fmt.Errorf("%w: %v", ErrUnreachable, err),
	}
}

// NewEmptyCartError creates a 422 error for checkout of a cart with no lines.
func NewEmptyCartError() *APIError {
	return &APIError{
		Code:       "EMPTY_CART",
		Message:    "cart has no items",
		StatusCode: 422,
		Err:        ErrEmptyCart,
	}
}

// NewConflictError creates a 409 error for backend-reported state mismatches,
// e.g. an item that is no longer available.
func NewConflictError(reason string) *APIError {
	return &APIError{
		Code:       "CONFLICT",
		Message:    reason,
		StatusCode: 409,
		Err:        ErrConflict,
	}
}

// NewInternalError creates a 500 error for unexpected failures.
func NewInternalError(err error) *APIError {
	return &APIError{
		Code:       "INTERNAL_ERROR",
		Message:    "an internal error occurred",
		StatusCode: 500,
		Err:        err,
	}
}

// OpError attaches the failing cart operation and item to an error so callers
// can render a message. The kind stays reachable through errors.Is/As.
type OpError struct {
	Op     string
	ItemID uint
	Err    error
}

func (e *OpError) Error() string {
	if e.ItemID != 0 {
		return e.Op + " item " + strconv.FormatUint(uint64(e.ItemID), 10) + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Kind returns the taxonomy sentinel that err wraps, or nil for unclassified errors.
func Kind(err error) error {
	for _, kind := range []error{ErrUnauthorized, ErrNotFound, ErrUnreachable, ErrEmptyCart, ErrConflict, ErrInvalidRequest} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
