package session

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cartsync/internal/gateway"
	"cartsync/internal/mirror"
	"cartsync/internal/model"
)

var catalog = []model.Item{
	{ID: 1, Name: "Mouse", Status: model.ItemAvailable},
	{ID: 2, Name: "Keyboard", Status: model.ItemAvailable},
}

var (
	alice = gateway.Credentials{Username: "alice", Password: "a-pass"}
	bob   = gateway.Credentials{Username: "bob", Password: "b-pass"}
)

func setup(t *testing.T) (*Manager, *gateway.MemoryBackend, *miniredis.Miniredis) {
	t.Helper()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	backend := gateway.NewMemoryBackend(catalog)
	require.NoError(t, backend.Signup(ctx, alice))
	require.NoError(t, backend.Signup(ctx, bob))

	m := NewManager(backend, mirror.RedisFactory(client, "test", time.Hour),
		WithLogger(slog.New(slog.DiscardHandler)))
	return m, backend, mr
}

func TestLogin_CreatesSession(t *testing.T) {
	m, _, _ := setup(t)

	s, err := m.Login(context.Background(), alice, "")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "alice", s.Username)
	require.NotNil(t, s.Engine)

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)
}

func TestLogin_BadCredentials(t *testing.T) {
	m, _, _ := setup(t)

	_, err := m.Login(context.Background(), gateway.Credentials{Username: "alice", Password: "wrong"}, "")
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = m.Login(context.Background(), gateway.Credentials{Username: "alice"}, "")
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
	assert.Zero(t, m.Len())
}

func TestLogin_EachLoginIsolated(t *testing.T) {
	m, _, _ := setup(t)
	ctx := context.Background()

	first, err := m.Login(ctx, alice, "")
	require.NoError(t, err)
	second, err := m.Login(ctx, alice, "")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, m.Len())
}

func TestGet_Unknown(t *testing.T) {
	m, _, _ := setup(t)

	_, err := m.Get("nope")
	assert.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestLogout_PurgesMirror(t *testing.T) {
	m, _, mr := setup(t)
	ctx := context.Background()

	s, err := m.Login(ctx, alice, "")
	require.NoError(t, err)
	_, err = s.Engine.AddToCart(ctx, 1)
	require.NoError(t, err)
	require.True(t, mr.Exists("test:"+s.ID+":cart"))

	require.NoError(t, m.Logout(ctx, s.ID))

	assert.False(t, mr.Exists("test:"+s.ID+":cart"), "logout must wipe the mirror before returning")
	assert.False(t, mr.Exists("test:"+s.ID+":version"))
	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	assert.ErrorIs(t, m.Logout(ctx, s.ID), model.ErrUnauthorized, "second logout has no session")
}

func TestLogout_InFlightAddCannotRecreateMirror(t *testing.T) {
	m, backend, mr := setup(t)
	ctx := context.Background()

	s, err := m.Login(ctx, alice, "")
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	backend.FailFunc = func(op string, _ uint) error {
		if op == gateway.OpAddItem {
			close(entered)
			<-release
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Engine.AddToCart(ctx, 1)
	}()

	<-entered
	require.True(t, mr.Exists("test:"+s.ID+":cart"), "optimistic line is written before the backend call")

	require.NoError(t, m.Logout(ctx, s.ID))
	assert.Empty(t, mr.Keys())

	close(release)
	<-done
	assert.Empty(t, mr.Keys(), "a late confirm must not recreate the ended session's mirror")
}

func TestLogout_LaterViewCannotRecreateMirror(t *testing.T) {
	m, _, mr := setup(t)
	ctx := context.Background()

	s, err := m.Login(ctx, alice, "")
	require.NoError(t, err)
	require.NoError(t, m.Logout(ctx, s.ID))

	// The purged mirror reads as version 0, the same as a fresh one.
	_, err = s.Engine.ViewCart(ctx)
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	_, err = s.Engine.AddToCart(ctx, 1)
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	assert.Empty(t, mr.Keys())
}

func TestSessionIsolation(t *testing.T) {
	m, _, _ := setup(t)
	ctx := context.Background()

	a, err := m.Login(ctx, alice, "")
	require.NoError(t, err)
	_, err = a.Engine.AddToCart(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, m.Logout(ctx, a.ID))

	b, err := m.Login(ctx, bob, "")
	require.NoError(t, err)

	peek, err := b.Engine.Peek(ctx)
	require.NoError(t, err)
	assert.True(t, peek.Cart.IsEmpty(), "optimistic view must not show the previous session's lines")

	view, err := b.Engine.ViewCart(ctx)
	require.NoError(t, err)
	assert.True(t, view.Cart.IsEmpty(), "bob must never see alice's cart")
}

func TestSessionIsolation_UnreachableFallback(t *testing.T) {
	m, backend, _ := setup(t)
	ctx := context.Background()

	a, err := m.Login(ctx, alice, "")
	require.NoError(t, err)
	_, err = a.Engine.AddToCart(ctx, 2)
	require.NoError(t, err)

	b, err := m.Login(ctx, bob, a.ID)
	require.NoError(t, err)
	_, err = m.Get(a.ID)
	assert.ErrorIs(t, err, model.ErrUnauthorized, "login tears down the previous session")

	backend.FailFunc = func(string, uint) error {
		return model.NewUnreachableError("cart backend", context.DeadlineExceeded)
	}
	view, err := b.Engine.ViewCart(ctx)
	require.NoError(t, err)
	assert.True(t, view.Stale())
	assert.True(t, view.Cart.IsEmpty(), "cache fallback must not leak the previous session")
}

func TestUnauthorizedTearsDownSession(t *testing.T) {
	m, backend, mr := setup(t)
	ctx := context.Background()

	s, err := m.Login(ctx, alice, "")
	require.NoError(t, err)
	_, err = s.Engine.AddToCart(ctx, 1)
	require.NoError(t, err)

	// Expire every token the backend has issued.
	backend.FailFunc = func(string, uint) error {
		return model.NewUnauthorizedError("token expired")
	}
	_, err = s.Engine.ViewCart(ctx)
	require.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	assert.False(t, mr.Exists("test:"+s.ID+":cart"), "teardown is synchronous")
}

func TestClose(t *testing.T) {
	m, _, _ := setup(t)
	ctx := context.Background()

	for _, creds := range []gateway.Credentials{alice, bob} {
		_, err := m.Login(ctx, creds, "")
		require.NoError(t, err)
	}
	require.Equal(t, 2, m.Len())

	m.Close(ctx)
	assert.Zero(t, m.Len())
}

func TestSignup(t *testing.T) {
	m, _, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, m.Signup(ctx, gateway.Credentials{Username: "carol", Password: "c"}))
	assert.ErrorIs(t, m.Signup(ctx, alice), model.ErrConflict)
	assert.ErrorIs(t, m.Signup(ctx, gateway.Credentials{}), model.ErrInvalidRequest)
}
