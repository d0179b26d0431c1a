// Package backend implements the remote cart gateway over the shopping-cart
// REST API. All backend-specific wire types, transforms, and HTTP client
// logic live here.
package backend

import "time"

// === Backend API Response Types ===

// wireItem is a catalog entry as returned by GET /items and embedded in carts.
type wireItem struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// wireCart is the body of GET /carts.
// The backend preloads cart_items with their item.
type wireCart struct {
	ID        uint           `json:"id"`
	UserID    uint           `json:"user_id"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	CartItems []wireCartItem `json:"cart_items"`
}

// wireCartItem is a row of the cart_items join table.
// The persistent backend keys rows by (cart_id, item_id) and sends no id;
// the serverless variant sends one.
type wireCartItem struct {
	ID        uint      `json:"id,omitempty"`
	CartID    uint      `json:"cart_id"`
	ItemID    uint      `json:"item_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	Item      *wireItem `json:"item,omitempty"`
}

// wireAddItemRequest is the body of POST /carts.
type wireAddItemRequest struct {
	ItemID uint `json:"item_id"`
}

// wireAddItemResponse is the body of POST /carts.
// 201 for a new line, 200 with the incremented quantity for an existing one.
type wireAddItemResponse struct {
	Message     string `json:"message"`
	CartID      uint   `json:"cart_id"`
	CartItemID  uint   `json:"cart_item_id,omitempty"`
	ItemID      uint   `json:"item_id"`
	Quantity    int    `json:"quantity,omitempty"`
	NewQuantity int    `json:"new_quantity,omitempty"`
}

// wireCreateOrderResponse is the body of POST /orders.
type wireCreateOrderResponse struct {
	Message string `json:"message"`
	OrderID uint   `json:"order_id"`
	CartID  uint   `json:"cart_id"`
}

// wireOrder is an element of GET /orders.
type wireOrder struct {
	ID        uint      `json:"id"`
	CartID    uint      `json:"cart_id"`
	UserID    uint      `json:"user_id"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Cart      *wireCart `json:"cart,omitempty"`
}

// wireLoginResponse is the body of POST /users/login.
type wireLoginResponse struct {
	Token   string `json:"token"`
	UserID  uint   `json:"user_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// wireErrorResponse is the error envelope for every non-2xx response.
type wireErrorResponse struct {
	Error string `json:"error"`
}
