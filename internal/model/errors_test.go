package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			name: "without wrapped error",
			err: &APIError{
				Code:    "TEST_ERROR",
				Message: "something went wrong",
			},
			want: "TEST_ERROR: something went wrong",
		},
		{
			name: "with wrapped error",
			err: &APIError{
				Code:    "TEST_ERROR",
				Message: "something went wrong",
				Err:     errors.New("underlying cause"),
			},
			want: "TEST_ERROR: something went wrong (underlying cause)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := &APIError{
		Code:    "TEST",
		Message: "test",
		Err:     underlying,
	}

	unwrapped := err.Unwrap()
	if unwrapped != underlying {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, underlying)
	}

	// Test nil case
	errNoWrap := &APIError{Code: "TEST", Message: "test"}
	if errNoWrap.Unwrap() != nil {
		t.Error("Unwrap() should return nil when no wrapped error")
	}
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("cart")

	if err.Code != "NOT_FOUND" {
		t.Errorf("Code = %q, want %q", err.Code, "NOT_FOUND")
	}
	if err.Message != "cart not found" {
		t.Errorf("Message = %q, want %q", err.Message, "cart not found")
	}
	if err.StatusCode != 404 {
		t.Errorf("StatusCode = %d, want %d", err.StatusCode, 404)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("error should wrap ErrNotFound sentinel")
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("email", "must be valid email address")

	if err.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q, want %q", err.Code, "VALIDATION_ERROR")
	}
	if err.Message != "invalid email: must be valid email address" {
		t.Errorf("Message = %q, want %q", err.Message, "invalid email: must be valid email address")
	}
	if err.StatusCode != 400 {
		t.Errorf("StatusCode = %d, want %d", err.StatusCode, 400)
	}
	if !errors.Is(err, ErrInvalidRequest) {
		t.Error("error should wrap ErrInvalidRequest sentinel")
	}
}

func TestNewUnauthorizedError(t *testing.T) {
	err := NewUnauthorizedError("session expired")

	if err.Code != "UNAUTHORIZED" {
		t.Errorf("Code = %q, want %q", err.Code, "UNAUTHORIZED")
	}
	if err.Message != "session expired" {
		t.Errorf("Message = %q, want %q", err.Message, "session expired")
	}
	if err.StatusCode != 401 {
		t.Errorf("StatusCode = %d, want %d", err.StatusCode, 401)
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Error("error should wrap ErrUnauthorized sentinel")
	}
}

func TestNewUnreachableError(t *testing.T) {
	underlying := errors.New("connection refused")
	err := NewUnreachableError("backend", underlying)

	if err.Code != "UNREACHABLE" {
		t.Errorf("Code = %q, want %q", err.Code, "UNREACHABLE")
	}
	if err.Message != "backend is unreachable" {
		t.Errorf("Message = %q, want %q", err.Message, "backend is unreachable")
	}
	if err.StatusCode != 502 {
		t.Errorf("StatusCode = %d, want %d", err.StatusCode, 502)
	}
	if !errors.Is(err, ErrUnreachable) {
		t.Error("error should wrap ErrUnreachable sentinel")
	}
	// Verify the underlying error text is preserved in the chain
	if err.Err == nil {
		t.Error("wrapped error should not be nil")
	}
}

func TestNewEmptyCartError(t *testing.T) {
	err := NewEmptyCartError()

	if err.Code != "EMPTY_CART" {
		t.Errorf("Code = %q, want %q", err.Code, "EMPTY_CART")
	}
	if err.StatusCode != 422 {
		t.Errorf("StatusCode = %d, want %d", err.StatusCode, 422)
	}
	if !errors.Is(err, ErrEmptyCart) {
		t.Error("error should wrap ErrEmptyCart sentinel")
	}
}

func TestNewConflictError(t *testing.T) {
	err := NewConflictError("Item not available")

	if err.Code != "CONFLICT" {
		t.Errorf("Code = %q, want %q", err.Code, "CONFLICT")
	}
	if err.Message != "Item not available" {
		t.Errorf("Message = %q, want %q", err.Message, "Item not available")
	}
	if err.StatusCode != 409 {
		t.Errorf("StatusCode = %d, want %d", err.StatusCode, 409)
	}
	if !errors.Is(err, ErrConflict) {
		t.Error("error should wrap ErrConflict sentinel")
	}
}

func TestNewInternalError(t *testing.T) {
	underlying := errors.New("null pointer dereference")
	err := NewInternalError(underlying)

	if err.Code != "INTERNAL_ERROR" {
		t.Errorf("Code = %q, want %q", err.Code, "INTERNAL_ERROR")
	}
	if err.Message != "an internal error occurred" {
		t.Errorf("Message = %q, want %q", err.Message, "an internal error occurred")
	}
	if err.StatusCode != 500 {
		t.Errorf("StatusCode = %d, want %d", err.StatusCode, 500)
	}
	if err.Err != underlying {
		t.Error("wrapped error should be preserved")
	}
}

// TestErrorsIs verifies that errors.Is() works correctly with all sentinel errors.
// This is critical for handler code that uses errors.Is() to determine response codes.
func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		sentinel error
	}{
		{"NotFound", NewNotFoundError("x"), ErrNotFound},
		{"Validation", NewValidationError("x", "y"), ErrInvalidRequest},
		{"Unauthorized", NewUnauthorizedError("x"), ErrUnauthorized},
		{"Unreachable", NewUnreachableError("x", nil), ErrUnreachable},
		{"EmptyCart", NewEmptyCartError(), ErrEmptyCart},
		{"Conflict", NewConflictError("x"), ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%T, %v) = false, want true", tt.err, tt.sentinel)
			}
		})
	}
}

// TestAPIErrorImplementsError verifies the error interface is properly implemented.
func TestAPIErrorImplementsError(t *testing.T) {
	var err error = &APIError{Code: "TEST", Message: "test"}
	_ = err.Error() // Should compile and not panic

	// Verify it works with fmt.Errorf wrapping
	wrapped := fmt.Errorf("outer: %w", err)
	var apiErr *APIError
	if !errors.As(wrapped, &apiErr) {
		t.Error("errors.As should find *APIError in wrapped error")
	}
}

func TestOpError(t *testing.T) {
	err := &OpError{Op: "add_to_cart", ItemID: 42, Err: NewConflictError("Item not available")}

	want := "add_to_cart item 42: CONFLICT: Item not available (conflict)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrConflict) {
		t.Error("OpError should unwrap to the kind sentinel")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 409 {
		t.Error("errors.As should reach the wrapped *APIError")
	}

	noItem := &OpError{Op: "checkout", Err: NewEmptyCartError()}
	if noItem.Error() != "checkout: EMPTY_CART: cart has no items (cart is empty)" {
		t.Errorf("Error() = %q", noItem.Error())
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unreachable", NewUnreachableError("backend", errors.New("timeout")), ErrUnreachable},
		{"wrapped not found", fmt.Errorf("outer: %w", NewNotFoundError("cart")), ErrNotFound},
		{"op error", &OpError{Op: "checkout", Err: NewEmptyCartError()}, ErrEmptyCart},
		{"unclassified", errors.New("boom"), nil},
		{"nil", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.want {
				t.Errorf("Kind() = %v, want %v", got, tt.want)
			}
		})
	}
}
