package mirror

import (
	"context"
	"errors"
	"sync"

	"cartsync/internal/model"
)

// ErrClosed is returned by writes to a Guarded mirror after Close.
var ErrClosed = errors.New("mirror closed")

// Guarded fences a session's mirror at teardown. Close purges the underlying
// store once writes already in progress have finished, and every later write
// fails with ErrClosed, so a backend call that completes after logout cannot
// recreate the session's data.
type Guarded struct {
	m Mirror

	mu     sync.RWMutex
	closed bool
}

var _ Mirror = (*Guarded)(nil)

// Guard wraps m.
func Guard(m Mirror) *Guarded {
	return &Guarded{m: m}
}

// Read passes through; a closed mirror has been purged and reads as absent.
func (g *Guarded) Read(ctx context.Context) (Snapshot, error) {
	return g.m.Read(ctx)
}

func (g *Guarded) Write(ctx context.Context, cart *model.Cart) error {
	return g.do(func() error { return g.m.Write(ctx, cart) })
}

func (g *Guarded) CompareAndWrite(ctx context.Context, version uint64, cart *model.Cart) (bool, error) {
	var written bool
	err := g.do(func() (err error) {
		written, err = g.m.CompareAndWrite(ctx, version, cart)
		return err
	})
	return written, err
}

func (g *Guarded) MarkPendingRemoval(ctx context.Context, itemID uint) error {
	return g.do(func() error { return g.m.MarkPendingRemoval(ctx, itemID) })
}

func (g *Guarded) ClearPendingRemoval(ctx context.Context, itemID uint) error {
	return g.do(func() error { return g.m.ClearPendingRemoval(ctx, itemID) })
}

func (g *Guarded) Clear(ctx context.Context) error {
	return g.do(func() error { return g.m.Clear(ctx) })
}

func (g *Guarded) Purge(ctx context.Context) error {
	return g.do(func() error { return g.m.Purge(ctx) })
}

// Close fences off further writes and purges the underlying mirror.
// Calling Close again is a no-op.
func (g *Guarded) Close(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true
	return g.m.Purge(ctx)
}

func (g *Guarded) do(fn func() error) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.closed {
		return ErrClosed
	}
	return fn()
}
