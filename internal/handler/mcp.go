// MCP transport handler for cartsync using the official MCP Go SDK.
// Exposes the cart operations of a logged-in session as MCP tools.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"cartsync/internal/model"
	"cartsync/internal/session"
)

// === MCP Tool Input Types ===
// Every tool acts on behalf of a session created over REST (POST /sessions).

// SessionInput is the input schema for tools that take no other argument.
type SessionInput struct {
	SessionID string `json:"session_id" jsonschema:"session id returned by POST /sessions"`
}

// ItemInput is the input schema for add_to_cart and remove_from_cart.
type ItemInput struct {
	SessionID string `json:"session_id" jsonschema:"session id returned by POST /sessions"`
	ItemID    uint   `json:"item_id" jsonschema:"catalog item id"`
}

// NewMCPServer creates an MCP server with cart tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	version := "dev"
	if h.negotiator != nil {
		version = h.negotiator.ServerVersion()
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "cartsync",
			Version: version,
		},
		&mcp.ServerOptions{
			Instructions: "cartsync - shopping cart for a logged-in session. " +
				"Browse items, add or remove them, view the cart, check out and list orders.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_items",
		Description: "List catalog items with their demo prices in rupees.",
	}, h.mcpListItems)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "view_cart",
		Description: "Get the cart from the backend. source=cache means the backend was unreachable and the cart may be stale.",
	}, h.mcpViewCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_to_cart",
		Description: "Add one unit of an item to the cart.",
	}, h.mcpAddToCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "remove_from_cart",
		Description: "Remove an item's line from the cart. Removing an item that is not in the cart succeeds.",
	}, h.mcpRemoveFromCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "checkout",
		Description: "Place an order for everything in the cart. Fails with EMPTY_CART when the cart has no items.",
	}, h.mcpCheckout)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_orders",
		Description: "List past orders, newest first.",
	}, h.mcpListOrders)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpListItems(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SessionInput,
) (*mcp.CallToolResult, itemsResponse, error) {
	s, err := h.mcpSession(input.SessionID)
	if err != nil {
		return nil, itemsResponse{}, err
	}

	items, err := s.Engine.Catalog(ctx)
	if err != nil {
		return nil, itemsResponse{}, h.mcpError(ctx, err)
	}
	return nil, toItems(items), nil
}

func (h *Handler) mcpViewCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SessionInput,
) (*mcp.CallToolResult, *cartResponse, error) {
	s, err := h.mcpSession(input.SessionID)
	if err != nil {
		return nil, nil, err
	}

	view, err := s.Engine.ViewCart(ctx)
	if err != nil {
		return nil, nil, h.mcpError(ctx, err)
	}
	return nil, toCart(view), nil
}

func (h *Handler) mcpAddToCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ItemInput,
) (*mcp.CallToolResult, *cartResponse, error) {
	s, err := h.mcpSession(input.SessionID)
	if err != nil {
		return nil, nil, err
	}
	if input.ItemID == 0 {
		return nil, nil, fmt.Errorf("item_id is required")
	}

	view, err := s.Engine.AddToCart(ctx, input.ItemID)
	if err != nil {
		return nil, nil, h.mcpError(ctx, err)
	}
	return nil, toCart(view), nil
}

func (h *Handler) mcpRemoveFromCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ItemInput,
) (*mcp.CallToolResult, *cartResponse, error) {
	s, err := h.mcpSession(input.SessionID)
	if err != nil {
		return nil, nil, err
	}
	if input.ItemID == 0 {
		return nil, nil, fmt.Errorf("item_id is required")
	}

	view, err := s.Engine.RemoveFromCart(ctx, input.ItemID)
	if err != nil {
		return nil, nil, h.mcpError(ctx, err)
	}
	return nil, toCart(view), nil
}

func (h *Handler) mcpCheckout(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SessionInput,
) (*mcp.CallToolResult, *orderResponse, error) {
	s, err := h.mcpSession(input.SessionID)
	if err != nil {
		return nil, nil, err
	}

	order, err := s.Engine.Checkout(ctx)
	if err != nil {
		return nil, nil, h.mcpError(ctx, err)
	}
	return nil, toOrder(order), nil
}

func (h *Handler) mcpListOrders(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SessionInput,
) (*mcp.CallToolResult, ordersResponse, error) {
	s, err := h.mcpSession(input.SessionID)
	if err != nil {
		return nil, ordersResponse{}, err
	}

	orders, err := s.Engine.ListOrders(ctx)
	if err != nil {
		return nil, ordersResponse{}, h.mcpError(ctx, err)
	}
	return nil, toOrders(orders), nil
}

// mcpSession resolves the session named in the tool input.
func (h *Handler) mcpSession(id string) (*session.Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	s, err := h.sessions.Get(id)
	if err != nil {
		return nil, fmt.Errorf("UNAUTHORIZED: no active session")
	}
	return s, nil
}

// mcpError converts engine errors to MCP-friendly errors.
func (h *Handler) mcpError(ctx context.Context, err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.ErrorContext(ctx, "mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
