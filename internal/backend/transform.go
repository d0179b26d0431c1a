package backend

import (
	"strconv"
	"time"

	"cartsync/internal/model"
)

// orderStatusCreated is reported for orders when the backend sends no status.
const orderStatusCreated = "created"

// itemToModel converts a wire catalog entry. Unknown statuses are kept as-is.
func itemToModel(w wireItem) model.Item {
	return model.Item{
		ID:        w.ID,
		Name:      w.Name,
		Status:    model.ItemStatus(w.Status),
		CreatedAt: w.CreatedAt,
	}
}

// cartItemID derives the line identifier. Prefer the backend's own id;
// otherwise use the composite key "cart_id:item_id".
func cartItemID(cartID, itemID, id uint) string {
	if id != 0 {
		return strconv.FormatUint(uint64(id), 10)
	}
	return strconv.FormatUint(uint64(cartID), 10) + ":" + strconv.FormatUint(uint64(itemID), 10)
}

// cartToModel converts GET /carts into a Cart.
// Rows for the same item are merged so the one-line-per-item invariant holds
// even if the backend misbehaves.
func cartToModel(w *wireCart) *model.Cart {
	cart := &model.Cart{ID: w.ID, Lines: make([]model.CartLine, 0, len(w.CartItems))}
	for _, ci := range w.CartItems {
		if i := cart.Line(ci.ItemID); i >= 0 {
			cart.Lines[i].Quantity += ci.Quantity
			continue
		}
		cartID := ci.CartID
		if cartID == 0 {
			cartID = w.ID
		}
		line := model.CartLine{
			CartItemID: cartItemID(cartID, ci.ItemID, ci.ID),
			CartID:     cartID,
			ItemID:     ci.ItemID,
			Quantity:   max(ci.Quantity, 1),
			CreatedAt:  ci.CreatedAt,
		}
		if ci.Item != nil {
			item := itemToModel(*ci.Item)
			line.Item = &item
			if line.CreatedAt.IsZero() {
				line.CreatedAt = ci.Item.CreatedAt
			}
		}
		cart.Lines = append(cart.Lines, line)
	}
	return cart
}

// addItemToLine converts POST /carts into the authoritative line.
// A 201 without quantity means a new line of one.
func addItemToLine(w *wireAddItemResponse, requested uint, now time.Time) *model.CartLine {
	itemID := w.ItemID
	if itemID == 0 {
		itemID = requested
	}
	qty := w.Quantity
	if w.NewQuantity > 0 {
		qty = w.NewQuantity
	}
	if qty < 1 {
		qty = 1
	}
	line := &model.CartLine{
		CartID:    w.CartID,
		ItemID:    itemID,
		Quantity:  qty,
		CreatedAt: now,
	}
	// The serverless quantity update carries no ids; the engine keeps the
	// id it already holds for the line.
	if w.CartID != 0 || w.CartItemID != 0 {
		line.CartItemID = cartItemID(w.CartID, itemID, w.CartItemID)
	}
	return line
}

// orderToModel converts an element of GET /orders, including the line
// snapshot from the ordered cart when the backend preloads it.
func orderToModel(w wireOrder) model.Order {
	status := w.Status
	if status == "" {
		status = orderStatusCreated
	}
	order := model.Order{
		ID:        w.ID,
		UserID:    w.UserID,
		CartID:    w.CartID,
		Status:    status,
		CreatedAt: w.CreatedAt,
		Lines:     []model.CartLine{},
	}
	if w.Cart != nil {
		order.Lines = cartToModel(w.Cart).Lines
	}
	return order
}
