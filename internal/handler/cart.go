package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"cartsync/internal/model"
	"cartsync/internal/negotiation"
)

// addItemRequest is the body of POST /cart/items.
type addItemRequest struct {
	ItemID uint `json:"item_id"`
}

// handleListItems returns the catalog with demo prices.
// GET /items
func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items, err := s.Engine.Catalog(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toItems(items))
}

// handleViewCart refreshes the cart from the backend. When the backend is
// unreachable the mirror's last-known cart is served and Cache-Status says so.
// GET /cart
func (h *Handler) handleViewCart(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := s.Engine.ViewCart(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	cs := negotiation.CacheStatus{Stored: true}
	if view.Stale() {
		cs = negotiation.CacheStatus{Hit: true, Detail: "backend unreachable"}
		h.logger.WarnContext(r.Context(), "serving cached cart",
			slog.String("username", s.Username),
		)
	}
	h.setCacheStatus(w, cs)
	h.writeJSON(w, http.StatusOK, toCart(view))
}

// handlePeekCart returns the optimistic mirror view without calling the backend.
// GET /cart/optimistic
func (h *Handler) handlePeekCart(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := s.Engine.Peek(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.setCacheStatus(w, negotiation.CacheStatus{Hit: true, Detail: "optimistic"})
	h.writeJSON(w, http.StatusOK, toCart(view))
}

// handleAddToCart adds one unit of an item.
// POST /cart/items
func (h *Handler) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.ItemID == 0 {
		h.writeError(w, r, model.NewValidationError("item_id", "item ID required"))
		return
	}

	h.logger.InfoContext(r.Context(), "adding to cart",
		slog.String("username", s.Username),
		slog.Uint64("item_id", uint64(req.ItemID)),
	)

	view, err := s.Engine.AddToCart(r.Context(), req.ItemID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toCart(view))
}

// handleRemoveFromCart removes an item's whole line.
// DELETE /cart/items/{item_id}
func (h *Handler) handleRemoveFromCart(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	itemID, err := parseItemID(r.PathValue("item_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "removing from cart",
		slog.String("username", s.Username),
		slog.Uint64("item_id", uint64(itemID)),
	)

	view, err := s.Engine.RemoveFromCart(r.Context(), itemID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toCart(view))
}

// handleCheckout turns the cart into an order.
// POST /checkout
func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := s.Engine.Checkout(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "order created",
		slog.String("username", s.Username),
		slog.Uint64("order_id", uint64(order.ID)),
	)
	h.writeJSON(w, http.StatusCreated, toOrder(order))
}

// handleListOrders returns order history, newest first.
// GET /orders
func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	orders, err := s.Engine.ListOrders(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrders(orders))
}

func (h *Handler) setCacheStatus(w http.ResponseWriter, cs negotiation.CacheStatus) {
	v, err := negotiation.FormatCacheStatus(cs)
	if err != nil {
		h.logger.Error("cannot encode Cache-Status", slog.String("error", err.Error()))
		return
	}
	w.Header().Set(negotiation.CacheStatusHeader, v)
}

func parseItemID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil || id == 0 {
		return 0, model.NewValidationError("item_id", "must be a positive integer")
	}
	return uint(id), nil
}
