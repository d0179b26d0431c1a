// Package model defines the cart, catalog and order types shared by the
// gateway, the mirror and the reconciliation engine.
package model

import (
	"slices"
	"time"
)

// ItemStatus is the catalog availability of an item.
type ItemStatus string

const (
	ItemAvailable   ItemStatus = "available"
	ItemUnavailable ItemStatus = "unavailable"
)

// Item is an immutable catalog entry owned by the backend.
// Price is not part of the record; see Price.
type Item struct {
	ID        uint       `json:"id"`
	Name      string     `json:"name"`
	Status    ItemStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// Available reports whether the backend accepts the item into a cart.
func (i Item) Available() bool {
	return i.Status == ItemAvailable
}

// CartLine is one row of a cart. CartItemID is empty for optimistic lines
// that the backend has not confirmed yet.
type CartLine struct {
	CartItemID string    `json:"cart_item_id,omitempty"`
	CartID     uint      `json:"cart_id,omitempty"`
	ItemID     uint      `json:"item_id"`
	Quantity   int       `json:"quantity"`
	CreatedAt  time.Time `json:"created_at"`

	// Item is the catalog snapshot for this line, used for pricing and display.
	Item *Item `json:"item,omitempty"`
}

// Confirmed reports whether the backend has persisted this line.
func (l CartLine) Confirmed() bool {
	return l.CartItemID != ""
}

// Cart holds at most one line per item id, in insertion order.
type Cart struct {
	ID    uint       `json:"id,omitempty"`
	Lines []CartLine `json:"lines"`
}

// NewCart returns an empty cart with a non-nil line slice.
func NewCart() *Cart {
	return &Cart{Lines: []CartLine{}}
}

// Clone returns a deep copy, including each line's item snapshot.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := &Cart{ID: c.ID, Lines: make([]CartLine, len(c.Lines))}
	for i, line := range c.Lines {
		out.Lines[i] = line
		if line.Item != nil {
			item := *line.Item
			out.Lines[i].Item = &item
		}
	}
	return out
}

// IsEmpty reports whether the cart is nil or has no lines.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Lines) == 0
}

// Line returns the index of the line for itemID, or -1.
func (c *Cart) Line(itemID uint) int {
	if c == nil {
		return -1
	}
	return slices.IndexFunc(c.Lines, func(l CartLine) bool { return l.ItemID == itemID })
}

// Without returns a copy of the cart with the lines for the given item ids removed.
func (c *Cart) Without(itemIDs ...uint) *Cart {
	out := c.Clone()
	if out == nil || len(itemIDs) == 0 {
		return out
	}
	out.Lines = slices.DeleteFunc(out.Lines, func(l CartLine) bool {
		return slices.Contains(itemIDs, l.ItemID)
	})
	return out
}

// Equal compares carts by id and line contents, ignoring item snapshots.
func (c *Cart) Equal(other *Cart) bool {
	if c.IsEmpty() && other.IsEmpty() {
		return c.id() == other.id()
	}
	if c == nil || other == nil || c.ID != other.ID || len(c.Lines) != len(other.Lines) {
		return false
	}
	for i := range c.Lines {
		a, b := c.Lines[i], other.Lines[i]
		if a.CartItemID != b.CartItemID || a.ItemID != b.ItemID || a.Quantity != b.Quantity {
			return false
		}
	}
	return true
}

func (c *Cart) id() uint {
	if c == nil {
		return 0
	}
	return c.ID
}

// Order is created by checkout and never mutated afterwards.
// Lines is a snapshot of the cart at creation time.
type Order struct {
	ID        uint       `json:"id"`
	UserID    uint       `json:"user_id,omitempty"`
	CartID    uint       `json:"cart_id"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	Lines     []CartLine `json:"lines"`
}

// Source tells callers where a cart view came from.
type Source string

const (
	// SourceRemote means the view reflects a successful backend fetch.
	SourceRemote Source = "remote"
	// SourceCache means the backend was unreachable and the view is the
	// mirror's last-known state, possibly stale.
	SourceCache Source = "cache"
)

// CartView is the result of viewing the cart.
type CartView struct {
	Cart   *Cart  `json:"cart"`
	Source Source `json:"source"`
	Total  int64  `json:"total"`
}

// Stale reports whether the view was served from the mirror.
func (v *CartView) Stale() bool {
	return v.Source == SourceCache
}
