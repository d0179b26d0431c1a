package gateway

import (
	"context"

	"cartsync/internal/model"
)

// Mock implements Gateway for testing.
// Each method can be configured via function fields.
type Mock struct {
	FetchCartFunc  func(ctx context.Context) (*model.Cart, error)
	AddItemFunc    func(ctx context.Context, itemID uint) (*model.CartLine, error)
	RemoveItemFunc func(ctx context.Context, itemID uint) error
	CheckoutFunc   func(ctx context.Context) (*model.Order, error)
	ListOrdersFunc func(ctx context.Context) ([]model.Order, error)
	ListItemsFunc  func(ctx context.Context) ([]model.Item, error)
}

// FetchCart calls the configured FetchCartFunc or reports that no cart exists.
func (m *Mock) FetchCart(ctx context.Context) (*model.Cart, error) {
	if m.FetchCartFunc != nil {
		return m.FetchCartFunc(ctx)
	}
	return nil, model.NewNotFoundError("cart")
}

// AddItem calls the configured AddItemFunc or returns an error.
func (m *Mock) AddItem(ctx context.Context, itemID uint) (*model.CartLine, error) {
	if m.AddItemFunc != nil {
		return m.AddItemFunc(ctx, itemID)
	}
	return nil, model.NewNotFoundError("item")
}

// RemoveItem calls the configured RemoveItemFunc or returns an error.
func (m *Mock) RemoveItem(ctx context.Context, itemID uint) error {
	if m.RemoveItemFunc != nil {
		return m.RemoveItemFunc(ctx, itemID)
	}
	return model.NewNotFoundError("cart item")
}

// Checkout calls the configured CheckoutFunc or returns an error.
func (m *Mock) Checkout(ctx context.Context) (*model.Order, error) {
	if m.CheckoutFunc != nil {
		return m.CheckoutFunc(ctx)
	}
	return nil, model.NewEmptyCartError()
}

// ListOrders calls the configured ListOrdersFunc or returns no orders.
func (m *Mock) ListOrders(ctx context.Context) ([]model.Order, error) {
	if m.ListOrdersFunc != nil {
		return m.ListOrdersFunc(ctx)
	}
	return []model.Order{}, nil
}

// ListItems calls the configured ListItemsFunc or returns an empty catalog.
func (m *Mock) ListItems(ctx context.Context) ([]model.Item, error) {
	if m.ListItemsFunc != nil {
		return m.ListItemsFunc(ctx)
	}
	return []model.Item{}, nil
}

// Verify Mock implements Gateway interface at compile time.
var _ Gateway = (*Mock)(nil)
