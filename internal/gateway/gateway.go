// Package gateway defines the contract for the remote cart backend.
// The backend is the sole source of truth for carts and orders; gateway
// implementations never touch local state.
package gateway

import (
	"context"

	"cartsync/internal/model"
)

// Gateway abstracts the backend's authenticated cart, item and order endpoints
// for a single session. Each method is one network call.
//
// Errors are *model.APIError values wrapping the model sentinels:
// ErrUnauthorized when the session is invalid, ErrUnreachable on transport
// failure, plus the per-method kinds documented below.
type Gateway interface {
	// FetchCart returns the current cart.
	// Fails with ErrNotFound when the user has no cart yet; callers treat that
	// as an empty cart.
	FetchCart(ctx context.Context) (*model.Cart, error)

	// AddItem adds one unit of itemID. Repeated calls increment the quantity
	// of the existing line and never create a second line.
	// Fails with ErrNotFound for unknown items and ErrConflict when the item
	// is not available.
	AddItem(ctx context.Context, itemID uint) (*model.CartLine, error)

	// RemoveItem removes the entire line for itemID.
	// Fails with ErrNotFound when no such line exists.
	RemoveItem(ctx context.Context, itemID uint) error

	// Checkout turns the current cart into an order.
	// Fails with ErrEmptyCart when the backend reports nothing to order.
	Checkout(ctx context.Context) (*model.Order, error)

	// ListOrders returns past orders. Callers must not assume any ordering.
	ListOrders(ctx context.Context) ([]model.Order, error)

	// ListItems returns the catalog.
	ListItems(ctx context.Context) ([]model.Item, error)
}

// Credentials is the signup/login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Authenticator covers the backend's public account endpoints.
// Token handling is a pass-through: the returned token is opaque.
type Authenticator interface {
	Signup(ctx context.Context, creds Credentials) error
	Login(ctx context.Context, creds Credentials) (string, error)

	// ForToken returns a Gateway that authenticates with token.
	ForToken(token string) Gateway
}
