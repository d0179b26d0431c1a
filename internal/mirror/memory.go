package mirror

import (
	"context"
	"slices"
	"sync"

	"cartsync/internal/model"
)

// Memory is an in-process Mirror. State is lost on restart, so it is meant
// for development and tests.
type Memory struct {
	mu      sync.Mutex
	cart    *model.Cart
	pending map[uint]struct{}
	version uint64
}

// NewMemory creates an empty in-process mirror.
func NewMemory() *Memory {
	return &Memory{pending: make(map[uint]struct{})}
}

// MemoryFactory returns a Factory handing each session its own Memory.
func MemoryFactory() Factory {
	return func(string) Mirror { return NewMemory() }
}

func (m *Memory) Read(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending := make([]uint, 0, len(m.pending))
	for id := range m.pending {
		pending = append(pending, id)
	}
	slices.Sort(pending)
	return Snapshot{Cart: m.cart.Clone(), Pending: pending, Version: m.version}, nil
}

func (m *Memory) Write(ctx context.Context, cart *model.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cart = cart.Clone()
	m.version++
	return nil
}

func (m *Memory) CompareAndWrite(ctx context.Context, version uint64, cart *model.Cart) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.version != version {
		return false, nil
	}
	m.cart = cart.Clone()
	m.version++
	return true, nil
}

func (m *Memory) MarkPendingRemoval(ctx context.Context, itemID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending[itemID] = struct{}{}
	m.version++
	return nil
}

func (m *Memory) ClearPendingRemoval(ctx context.Context, itemID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.pending, itemID)
	m.version++
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cart = nil
	clear(m.pending)
	m.version++
	return nil
}

func (m *Memory) Purge(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cart = nil
	clear(m.pending)
	m.version = 0
	return nil
}

var _ Mirror = (*Memory)(nil)
