package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// jsonrpcRequest is a JSON-RPC 2.0 request structure for testing.
type jsonrpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// jsonrpcResponse is a JSON-RPC 2.0 response structure for testing.
type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// toolCallParams represents the params for tools/call method.
type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// callToolResult is the expected result structure from a tool call.
type callToolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"content"`
	StructuredContent json.RawMessage `json:"structuredContent,omitempty"`
	IsError           bool            `json:"isError,omitempty"`
}

func TestMCPServerCreation(t *testing.T) {
	h, _, _ := testHandler(t)

	if server := h.NewMCPServer(); server == nil {
		t.Fatal("NewMCPServer returned nil")
	}
	if handler := h.NewMCPHandler(); handler == nil {
		t.Fatal("NewMCPHandler returned nil")
	}
}

func TestMCPInitialize(t *testing.T) {
	_, mux, _ := testHandler(t)

	// initMCPSession fails the test on a non-200 reply.
	initMCPSession(t, mux)
}

func TestMCPToolsList(t *testing.T) {
	_, mux, _ := testHandler(t)
	mcpSession := initMCPSession(t, mux)

	resp := mcpCall(t, mux, mcpSession, jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      2,
		Method:  "tools/list",
	})

	var toolsResult struct {
		Tools []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &toolsResult); err != nil {
		t.Fatalf("Failed to parse tools result: %v", err)
	}

	expectedTools := map[string]bool{
		"list_items":       false,
		"view_cart":        false,
		"add_to_cart":      false,
		"remove_from_cart": false,
		"checkout":         false,
		"list_orders":      false,
	}
	for _, tool := range toolsResult.Tools {
		if _, ok := expectedTools[tool.Name]; ok {
			expectedTools[tool.Name] = true
		}
	}
	for name, found := range expectedTools {
		if !found {
			t.Errorf("Expected tool %q not found in tools list", name)
		}
	}
}

func TestMCPCartTools(t *testing.T) {
	_, mux, _ := testHandler(t)
	cartSession := login(t, mux)
	mcpSession := initMCPSession(t, mux)

	// add_to_cart
	result := callTool(t, mux, mcpSession, "add_to_cart", map[string]any{
		"session_id": cartSession,
		"item_id":    1,
	})
	if result.IsError {
		t.Fatalf("add_to_cart returned error: %+v", result.Content)
	}
	var cart cartResponse
	decodeToolOutput(t, result, &cart)
	if len(cart.Lines) != 1 || cart.Lines[0].ItemID != 1 {
		t.Errorf("cart = %+v, want one line for item 1", cart.Lines)
	}

	// view_cart sees the same line through the REST session.
	result = callTool(t, mux, mcpSession, "view_cart", map[string]any{"session_id": cartSession})
	if result.IsError {
		t.Fatalf("view_cart returned error: %+v", result.Content)
	}
	decodeToolOutput(t, result, &cart)
	if cart.Total != 1999 {
		t.Errorf("Total = %d, want 1999", cart.Total)
	}

	// checkout
	result = callTool(t, mux, mcpSession, "checkout", map[string]any{"session_id": cartSession})
	if result.IsError {
		t.Fatalf("checkout returned error: %+v", result.Content)
	}
	var order orderResponse
	decodeToolOutput(t, result, &order)
	if order.ID == 0 || len(order.Lines) != 1 {
		t.Errorf("order = %+v, want one-line order", order)
	}

	// checkout again: empty cart
	result = callTool(t, mux, mcpSession, "checkout", map[string]any{"session_id": cartSession})
	if !result.IsError {
		t.Error("Expected EMPTY_CART error")
	}
	if len(result.Content) > 0 && !strings.Contains(result.Content[0].Text, "EMPTY_CART") {
		t.Errorf("error text = %q, want EMPTY_CART", result.Content[0].Text)
	}

	// list_orders
	result = callTool(t, mux, mcpSession, "list_orders", map[string]any{"session_id": cartSession})
	var orders ordersResponse
	decodeToolOutput(t, result, &orders)
	if len(orders.Orders) != 1 {
		t.Errorf("Orders = %d, want 1", len(orders.Orders))
	}
}

func TestMCPUnknownSession(t *testing.T) {
	_, mux, _ := testHandler(t)
	mcpSession := initMCPSession(t, mux)

	result := callTool(t, mux, mcpSession, "list_items", map[string]any{"session_id": "nope"})

	if !result.IsError {
		t.Error("Expected error for unknown session")
	}
	if len(result.Content) > 0 && !strings.Contains(result.Content[0].Text, "UNAUTHORIZED") {
		t.Errorf("error text = %q, want UNAUTHORIZED", result.Content[0].Text)
	}
}

func TestMCPRemoveMissingItemID(t *testing.T) {
	_, mux, _ := testHandler(t)
	cartSession := login(t, mux)
	mcpSession := initMCPSession(t, mux)

	result := callTool(t, mux, mcpSession, "remove_from_cart", map[string]any{
		"session_id": cartSession,
		"item_id":    0,
	})

	if !result.IsError {
		t.Error("Expected error for item_id 0")
	}
}

// callTool invokes an MCP tool and returns its result.
func callTool(t *testing.T, mux *http.ServeMux, mcpSession, name string, args map[string]any) callToolResult {
	t.Helper()
	raw, _ := json.Marshal(args)
	resp := mcpCall(t, mux, mcpSession, jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      2,
		Method:  "tools/call",
		Params:  toolCallParams{Name: name, Arguments: raw},
	})

	var result callToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("Failed to parse result: %v\nResult: %s", err, resp.Result)
	}
	return result
}

// decodeToolOutput reads the tool's structured output, falling back to text content.
func decodeToolOutput(t *testing.T, result callToolResult, v any) {
	t.Helper()
	data := []byte(result.StructuredContent)
	if len(data) == 0 && len(result.Content) > 0 {
		data = []byte(result.Content[0].Text)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("Failed to parse tool output: %v\nData: %s", err, data)
	}
}

func mcpCall(t *testing.T, mux *http.ServeMux, mcpSession string, req jsonrpcRequest) jsonrpcResponse {
	t.Helper()
	body, _ := json.Marshal(req)
	httpReq := httptest.NewRequest("POST", "/mcp", bytes.NewReader(body))
	setMCPHeaders(httpReq, mcpSession)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, httpReq)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d\nBody: %s", w.Code, http.StatusOK, w.Body.String())
	}

	jsonData, err := parseSSEResponse(w.Body.String())
	if err != nil {
		t.Fatalf("Failed to parse SSE response: %v", err)
	}

	var resp jsonrpcResponse
	if err := json.Unmarshal(jsonData, &resp); err != nil {
		t.Fatalf("Failed to decode response: %v\nBody: %s", err, jsonData)
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected JSON-RPC error: %+v", resp.Error)
	}
	return resp
}

// setMCPHeaders sets the required headers for MCP Streamable HTTP requests.
func setMCPHeaders(req *http.Request, sessionID string) {
	req.Header.Set("Content-Type", "application/json")
	// MCP Streamable HTTP requires Accept header with both json and event-stream
	req.Header.Set("Accept", "application/json, text/event-stream")
	if sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}
}

// parseSSEResponse extracts JSON data from SSE formatted response.
// SSE format: "event: message\ndata: {json}\n\n"
func parseSSEResponse(body string) ([]byte, error) {
	lines := strings.Split(body, "\n")
	for _, line := range lines {
		if strings.HasPrefix(line, "data: ") {
			return []byte(strings.TrimPrefix(line, "data: ")), nil
		}
	}
	// If no SSE format found, assume plain JSON
	return []byte(body), nil
}

// initMCPSession initializes an MCP session and returns the session ID.
func initMCPSession(t *testing.T, mux *http.ServeMux) string {
	t.Helper()

	initReq := jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "initialize",
		Params: map[string]interface{}{
			"protocolVersion": "2025-06-18",
			"clientInfo":      map[string]string{"name": "test", "version": "1.0"},
			"capabilities":    map[string]interface{}{},
		},
	}

	body, _ := json.Marshal(initReq)
	httpReq := httptest.NewRequest("POST", "/mcp", bytes.NewReader(body))
	setMCPHeaders(httpReq, "")
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, httpReq)

	if w.Code != http.StatusOK {
		t.Fatalf("Failed to initialize MCP session: %s", w.Body.String())
	}

	return w.Header().Get("Mcp-Session-Id")
}
