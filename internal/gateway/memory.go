package gateway

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"cartsync/internal/model"
)

// Operation names passed to MemoryBackend.FailFunc.
const (
	OpFetchCart  = "fetch_cart"
	OpAddItem    = "add_item"
	OpRemoveItem = "remove_item"
	OpCheckout   = "checkout"
	OpListOrders = "list_orders"
	OpListItems  = "list_items"
)

// MemoryBackend is an in-process stand-in for the REST backend with the same
// cart semantics: one active cart per user, one line per item, checkout
// consumes the cart. Used by tests and offline demos.
type MemoryBackend struct {
	// FailFunc, when set, runs before every gateway operation. A non-nil
	// error is returned to the caller and the operation has no effect.
	FailFunc func(op string, itemID uint) error

	mu       sync.Mutex
	now      func() time.Time
	items    []model.Item
	users    map[string]*memoryUser
	tokens   map[string]*memoryUser
	nextCart uint
	orders   []model.Order
}

type memoryUser struct {
	id       uint
	password string
	cart     *model.Cart
}

// NewMemoryBackend creates a backend serving the given catalog.
func NewMemoryBackend(items []model.Item) *MemoryBackend {
	return &MemoryBackend{
		now:    time.Now,
		items:  slices.Clone(items),
		users:  make(map[string]*memoryUser),
		tokens: make(map[string]*memoryUser),
	}
}

// Signup registers a user.
func (b *MemoryBackend) Signup(ctx context.Context, creds Credentials) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if creds.Username == "" || creds.Password == "" {
		return model.NewValidationError("credentials", "username and password are required")
	}
	if _, exists := b.users[creds.Username]; exists {
		return model.NewConflictError("username already exists")
	}
	b.users[creds.Username] = &memoryUser{id: uint(len(b.users) + 1), password: creds.Password}
	return nil
}

// Login returns a fresh opaque token for the user.
func (b *MemoryBackend) Login(ctx context.Context, creds Credentials) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	u, ok := b.users[creds.Username]
	if !ok || u.password != creds.Password {
		return "", model.NewUnauthorizedError("invalid credentials")
	}
	token := uuid.NewString()
	b.tokens[token] = u
	return token, nil
}

// Revoke invalidates a token; later calls with it fail with ErrUnauthorized.
func (b *MemoryBackend) Revoke(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tokens, token)
}

// ForToken returns a Gateway bound to token.
func (b *MemoryBackend) ForToken(token string) Gateway {
	return &memoryGateway{backend: b, token: token}
}

// Cart returns a copy of the user's active cart as the backend sees it.
func (b *MemoryBackend) Cart(token string) *model.Cart {
	b.mu.Lock()
	defer b.mu.Unlock()
	if u, ok := b.tokens[token]; ok {
		return u.cart.Clone()
	}
	return nil
}

type memoryGateway struct {
	backend *MemoryBackend
	token   string
}

// begin locks the backend and resolves the session user.
// Callers must unlock b.mu when err is nil.
func (g *memoryGateway) begin(op string, itemID uint) (*memoryUser, error) {
	b := g.backend
	if b.FailFunc != nil {
		if err := b.FailFunc(op, itemID); err != nil {
			return nil, err
		}
	}
	b.mu.Lock()
	u, ok := b.tokens[g.token]
	if !ok {
		b.mu.Unlock()
		return nil, model.NewUnauthorizedError("invalid or expired token")
	}
	return u, nil
}

func (g *memoryGateway) FetchCart(ctx context.Context) (*model.Cart, error) {
	u, err := g.begin(OpFetchCart, 0)
	if err != nil {
		return nil, err
	}
	defer g.backend.mu.Unlock()

	if u.cart == nil {
		return nil, model.NewNotFoundError("cart")
	}
	return u.cart.Clone(), nil
}

func (g *memoryGateway) AddItem(ctx context.Context, itemID uint) (*model.CartLine, error) {
	u, err := g.begin(OpAddItem, itemID)
	if err != nil {
		return nil, err
	}
	b := g.backend
	defer b.mu.Unlock()

	idx := slices.IndexFunc(b.items, func(i model.Item) bool { return i.ID == itemID })
	if idx < 0 {
		return nil, model.NewNotFoundError("item")
	}
	item := b.items[idx]
	if !item.Available() {
		return nil, model.NewConflictError("Item not available")
	}

	if u.cart == nil {
		b.nextCart++
		u.cart = &model.Cart{ID: b.nextCart, Lines: []model.CartLine{}}
	}
	if i := u.cart.Line(itemID); i >= 0 {
		u.cart.Lines[i].Quantity++
		line := u.cart.Lines[i]
		return &line, nil
	}

	line := model.CartLine{
		CartItemID: fmt.Sprintf("%d:%d", u.cart.ID, itemID),
		CartID:     u.cart.ID,
		ItemID:     itemID,
		Quantity:   1,
		CreatedAt:  b.now(),
		Item:       &item,
	}
	u.cart.Lines = append(u.cart.Lines, line)
	return &line, nil
}

func (g *memoryGateway) RemoveItem(ctx context.Context, itemID uint) error {
	u, err := g.begin(OpRemoveItem, itemID)
	if err != nil {
		return err
	}
	defer g.backend.mu.Unlock()

	if u.cart == nil {
		return model.NewNotFoundError("cart")
	}
	i := u.cart.Line(itemID)
	if i < 0 {
		return model.NewNotFoundError("cart item")
	}
	u.cart.Lines = slices.Delete(u.cart.Lines, i, i+1)
	return nil
}

func (g *memoryGateway) Checkout(ctx context.Context) (*model.Order, error) {
	u, err := g.begin(OpCheckout, 0)
	if err != nil {
		return nil, err
	}
	b := g.backend
	defer b.mu.Unlock()

	if u.cart.IsEmpty() {
		return nil, model.NewEmptyCartError()
	}
	order := model.Order{
		ID:        uint(len(b.orders) + 1),
		UserID:    u.id,
		CartID:    u.cart.ID,
		Status:    "created",
		CreatedAt: b.now(),
		Lines:     u.cart.Clone().Lines,
	}
	b.orders = append(b.orders, order)
	u.cart = nil

	out := order
	out.Lines = (&model.Cart{Lines: order.Lines}).Clone().Lines
	return &out, nil
}

func (g *memoryGateway) ListOrders(ctx context.Context) ([]model.Order, error) {
	u, err := g.begin(OpListOrders, 0)
	if err != nil {
		return nil, err
	}
	defer g.backend.mu.Unlock()

	orders := []model.Order{}
	for _, o := range g.backend.orders {
		if o.UserID == u.id {
			o.Lines = (&model.Cart{Lines: o.Lines}).Clone().Lines
			orders = append(orders, o)
		}
	}
	return orders, nil
}

func (g *memoryGateway) ListItems(ctx context.Context) ([]model.Item, error) {
	b := g.backend
	if b.FailFunc != nil {
		if err := b.FailFunc(OpListItems, 0); err != nil {
			return nil, err
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.items), nil
}

var _ Authenticator = (*MemoryBackend)(nil)
