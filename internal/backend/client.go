package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cartsync/internal/gateway"
	"cartsync/internal/model"
	"cartsync/internal/transport"
)

// serviceName labels backend failures in error messages.
const serviceName = "cart backend"

const userAgent = "cartsync/1.0"

// Config holds backend client configuration.
type Config struct {
	BaseURL   string
	Transport transport.Kind
	Timeout   time.Duration
}

// Client talks to the shopping-cart REST API. It implements
// gateway.Authenticator; ForToken binds it to one user's bearer token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	now        func() time.Time
}

// New creates a backend client with the given configuration.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport.New(cfg.Transport, timeout),
		},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		now:     time.Now,
	}, nil
}

// Signup registers a new user.
func (c *Client) Signup(ctx context.Context, creds gateway.Credentials) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/users", creds, "")
	if err != nil {
		return err
	}
	return c.do(req, "user", nil)
}

// Login exchanges credentials for an opaque bearer token.
func (c *Client) Login(ctx context.Context, creds gateway.Credentials) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/users/login", creds, "")
	if err != nil {
		return "", err
	}
	var resp wireLoginResponse
	if err := c.do(req, "user", &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", model.NewUnreachableError(serviceName, fmt.Errorf("login response carried no token"))
	}
	return resp.Token, nil
}

// ForToken returns a Gateway that authenticates every call with token.
func (c *Client) ForToken(token string) gateway.Gateway {
	return &session{client: c, token: token}
}

// newRequest builds a JSON request against the backend.
func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}, token string) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do executes the request and decodes the response.
// resource names the entity a 404 refers to.
func (c *Client) do(req *http.Request, resource string, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NewUnreachableError(serviceName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.NewUnreachableError(serviceName, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode >= 400 {
		return parseError(resp.StatusCode, body, resource)
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return model.NewUnreachableError(serviceName, fmt.Errorf("parsing response: %w", err))
		}
	}
	return nil
}

// parseError converts backend error responses to model.APIError.
func parseError(statusCode int, body []byte, resource string) error {
	var beErr wireErrorResponse
	json.Unmarshal(body, &beErr) // Best effort parse
	msg := beErr.Error
	lower := strings.ToLower(msg)

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		if msg == "" {
			msg = "backend rejected the token"
		}
		return model.NewUnauthorizedError(msg)
	case statusCode == http.StatusNotFound:
		return model.NewNotFoundError(resource)
	case statusCode == http.StatusConflict:
		return model.NewConflictError(msg)
	case statusCode == http.StatusBadRequest:
		switch {
		case strings.Contains(lower, "cart is empty"):
			return model.NewEmptyCartError()
		case strings.Contains(lower, "not available"), strings.Contains(lower, "already exists"):
			return model.NewConflictError(msg)
		}
		if msg == "" {
			msg = "invalid request"
		}
		return model.NewValidationError("request", msg)
	default:
		return model.NewUnreachableError(serviceName,
			fmt.Errorf("status %d: %s", statusCode, msg))
	}
}

// session is the per-token gateway.
type session struct {
	client *Client
	token  string
}

func (s *session) FetchCart(ctx context.Context) (*model.Cart, error) {
	req, err := s.client.newRequest(ctx, http.MethodGet, "/carts", nil, s.token)
	if err != nil {
		return nil, err
	}
	var resp wireCart
	if err := s.client.do(req, "cart", &resp); err != nil {
		return nil, err
	}
	return cartToModel(&resp), nil
}

func (s *session) AddItem(ctx context.Context, itemID uint) (*model.CartLine, error) {
	req, err := s.client.newRequest(ctx, http.MethodPost, "/carts", wireAddItemRequest{ItemID: itemID}, s.token)
	if err != nil {
		return nil, err
	}
	var resp wireAddItemResponse
	if err := s.client.do(req, "item", &resp); err != nil {
		return nil, err
	}
	return addItemToLine(&resp, itemID, s.client.now()), nil
}

func (s *session) RemoveItem(ctx context.Context, itemID uint) error {
	path := "/carts/" + strconv.FormatUint(uint64(itemID), 10)
	req, err := s.client.newRequest(ctx, http.MethodDelete, path, nil, s.token)
	if err != nil {
		return err
	}
	return s.client.do(req, "cart item", nil)
}

// Checkout converts the active cart into an order. The backend answers 404
// when the user has no active cart, which is reported as an empty cart.
func (s *session) Checkout(ctx context.Context) (*model.Order, error) {
	req, err := s.client.newRequest(ctx, http.MethodPost, "/orders", nil, s.token)
	if err != nil {
		return nil, err
	}
	var resp wireCreateOrderResponse
	if err := s.client.do(req, "cart", &resp); err != nil {
		if model.Kind(err) == model.ErrNotFound {
			return nil, model.NewEmptyCartError()
		}
		return nil, err
	}
	return &model.Order{
		ID:        resp.OrderID,
		CartID:    resp.CartID,
		Status:    orderStatusCreated,
		CreatedAt: s.client.now(),
		Lines:     []model.CartLine{},
	}, nil
}

func (s *session) ListOrders(ctx context.Context) ([]model.Order, error) {
	req, err := s.client.newRequest(ctx, http.MethodGet, "/orders", nil, s.token)
	if err != nil {
		return nil, err
	}
	var resp []wireOrder
	if err := s.client.do(req, "orders", &resp); err != nil {
		return nil, err
	}
	orders := make([]model.Order, 0, len(resp))
	for _, o := range resp {
		orders = append(orders, orderToModel(o))
	}
	return orders, nil
}

func (s *session) ListItems(ctx context.Context) ([]model.Item, error) {
	req, err := s.client.newRequest(ctx, http.MethodGet, "/items", nil, s.token)
	if err != nil {
		return nil, err
	}
	var resp []wireItem
	if err := s.client.do(req, "items", &resp); err != nil {
		return nil, err
	}
	items := make([]model.Item, 0, len(resp))
	for _, w := range resp {
		items = append(items, itemToModel(w))
	}
	return items, nil
}

// Verify interfaces at compile time.
var (
	_ gateway.Authenticator = (*Client)(nil)
	_ gateway.Gateway       = (*session)(nil)
)
