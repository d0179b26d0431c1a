package handler

import (
	"time"

	"cartsync/internal/model"
)

// Response bodies shared by the REST and MCP surfaces.
// Prices are whole rupees from the demo price table.

type itemResponse struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	Price        int64  `json:"price"`
	PriceDisplay string `json:"price_display"`
}

type itemsResponse struct {
	Items []itemResponse `json:"items"`
}

type lineResponse struct {
	CartItemID string    `json:"cart_item_id,omitempty"`
	ItemID     uint      `json:"item_id"`
	Name       string    `json:"name,omitempty"`
	Quantity   int       `json:"quantity"`
	UnitPrice  int64     `json:"unit_price"`
	LinePrice  int64     `json:"line_price"`
	Confirmed  bool      `json:"confirmed"`
	CreatedAt  time.Time `json:"created_at,omitzero"`
}

type cartResponse struct {
	CartID       uint           `json:"cart_id,omitempty"`
	Lines        []lineResponse `json:"lines"`
	Total        int64          `json:"total"`
	TotalDisplay string         `json:"total_display"`
	Source       model.Source   `json:"source"`
}

type orderResponse struct {
	ID           uint           `json:"id"`
	CartID       uint           `json:"cart_id"`
	Status       string         `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	Lines        []lineResponse `json:"lines"`
	Total        int64          `json:"total"`
	TotalDisplay string         `json:"total_display"`
}

type ordersResponse struct {
	Orders []orderResponse `json:"orders"`
}

type sessionResponse struct {
	SessionID string    `json:"session_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

func toItems(items []model.Item) itemsResponse {
	out := itemsResponse{Items: make([]itemResponse, len(items))}
	for i, item := range items {
		price := model.Price(item.Name)
		out.Items[i] = itemResponse{
			ID:           item.ID,
			Name:         item.Name,
			Status:       string(item.Status),
			Price:        price,
			PriceDisplay: model.FormatINR(price),
		}
	}
	return out
}

func toLines(lines []model.CartLine) []lineResponse {
	out := make([]lineResponse, len(lines))
	for i, line := range lines {
		lr := lineResponse{
			CartItemID: line.CartItemID,
			ItemID:     line.ItemID,
			Quantity:   line.Quantity,
			LinePrice:  model.LinePrice(line),
			Confirmed:  line.Confirmed(),
			CreatedAt:  line.CreatedAt,
		}
		if line.Item != nil {
			lr.Name = line.Item.Name
			lr.UnitPrice = model.Price(line.Item.Name)
		} else {
			lr.UnitPrice = model.FallbackPrice
		}
		out[i] = lr
	}
	return out
}

func toCart(view *model.CartView) *cartResponse {
	resp := &cartResponse{
		Lines:        []lineResponse{},
		Total:        view.Total,
		TotalDisplay: model.FormatINR(view.Total),
		Source:       view.Source,
	}
	if view.Cart != nil {
		resp.CartID = view.Cart.ID
		resp.Lines = toLines(view.Cart.Lines)
	}
	return resp
}

func toOrder(o *model.Order) *orderResponse {
	total := model.OrderTotal(o)
	return &orderResponse{
		ID:           o.ID,
		CartID:       o.CartID,
		Status:       o.Status,
		CreatedAt:    o.CreatedAt,
		Lines:        toLines(o.Lines),
		Total:        total,
		TotalDisplay: model.FormatINR(total),
	}
}

func toOrders(orders []model.Order) ordersResponse {
	out := ordersResponse{Orders: make([]orderResponse, len(orders))}
	for i := range orders {
		out.Orders[i] = *toOrder(&orders[i])
	}
	return out
}
