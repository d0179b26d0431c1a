// Package mirror holds the session-scoped local copy of the cart.
//
// The mirror is never authoritative. It stores the last cart the engine wrote,
// the set of item ids with a removal in flight, and a version stamp that every
// mutation advances. Readers that want to write back a fetched cart without
// holding the engine's mutation lock use CompareAndWrite with the version they
// observed before fetching.
package mirror

import (
	"context"
	"slices"

	"cartsync/internal/model"
)

// Snapshot is one consistent read of the mirror.
type Snapshot struct {
	// Cart is nil when no cart has been written, or after Clear.
	Cart *model.Cart
	// Pending lists item ids with a removal in flight, ascending.
	Pending []uint
	// Version advances on every mutation.
	Version uint64
}

// Present reports whether a cart is stored.
func (s Snapshot) Present() bool {
	return s.Cart != nil
}

// IsPending reports whether a removal of itemID is in flight.
func (s Snapshot) IsPending(itemID uint) bool {
	return slices.Contains(s.Pending, itemID)
}

// Effective returns the cart with pending removals masked out.
// An absent cart yields an empty one.
func (s Snapshot) Effective() *model.Cart {
	if s.Cart == nil {
		return model.NewCart()
	}
	return s.Cart.Without(s.Pending...)
}

// Mirror is the local cart store for one session. Implementations must make
// each method atomic with respect to Read.
type Mirror interface {
	Read(ctx context.Context) (Snapshot, error)

	// Write replaces the stored cart. A nil cart restores the absent state.
	Write(ctx context.Context, cart *model.Cart) error

	// CompareAndWrite writes cart only if the version is still version.
	// Reports whether the write happened.
	CompareAndWrite(ctx context.Context, version uint64, cart *model.Cart) (bool, error)

	MarkPendingRemoval(ctx context.Context, itemID uint) error
	ClearPendingRemoval(ctx context.Context, itemID uint) error

	// Clear wipes the cart and pending set. The version keeps advancing.
	Clear(ctx context.Context) error

	// Purge drops everything stored for the session, version included.
	Purge(ctx context.Context) error
}

// Factory returns the mirror scoped to sessionID.
type Factory func(sessionID string) Mirror
