// Package session owns the lifetime of authenticated sessions.
//
// A session binds a backend token to its own mirror and reconciliation
// engine. Sessions are keyed by a random id handed to the client, so mirror
// state is never shared between two logins, even of the same user. Teardown
// purges the mirror synchronously before returning, and engine calls that
// finish afterwards cannot write to it again.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"cartsync/internal/gateway"
	"cartsync/internal/mirror"
	"cartsync/internal/model"
	"cartsync/internal/reconcile"
)

// Session is one authenticated login.
type Session struct {
	ID        string
	Username  string
	CreatedAt time.Time
	Engine    *reconcile.Engine

	mirror *mirror.Guarded
}

// Manager creates, looks up and tears down sessions.
type Manager struct {
	auth       gateway.Authenticator
	mirrors    mirror.Factory
	logger     *slog.Logger
	engineOpts []reconcile.Option
	now        func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger. Engines inherit it.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithEngineOptions passes extra options to every engine the manager creates.
func WithEngineOptions(opts ...reconcile.Option) Option {
	return func(m *Manager) { m.engineOpts = append(m.engineOpts, opts...) }
}

// NewManager creates a session manager.
func NewManager(auth gateway.Authenticator, mirrors mirror.Factory, opts ...Option) *Manager {
	m := &Manager{
		auth:     auth,
		mirrors:  mirrors,
		logger:   slog.Default(),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Signup registers a user with the backend.
func (m *Manager) Signup(ctx context.Context, creds gateway.Credentials) error {
	if creds.Username == "" || creds.Password == "" {
		return model.NewValidationError("credentials", "username and password are required")
	}
	return m.auth.Signup(ctx, creds)
}

// Login authenticates with the backend and starts a new session.
// If previousID names a live session it is torn down first.
func (m *Manager) Login(ctx context.Context, creds gateway.Credentials, previousID string) (*Session, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, model.NewValidationError("credentials", "username and password are required")
	}
	if previousID != "" {
		if err := m.Logout(ctx, previousID); err != nil && model.Kind(err) != model.ErrUnauthorized {
			return nil, err
		}
	}

	token, err := m.auth.Login(ctx, creds)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	s := &Session{
		ID:        id,
		Username:  creds.Username,
		CreatedAt: m.now(),
		mirror:    mirror.Guard(m.mirrors(id)),
	}
	opts := append([]reconcile.Option{
		reconcile.WithLogger(m.logger.With(slog.String("session", shortID(id)))),
		reconcile.WithUnauthorizedHook(func(ctx context.Context) {
			if existed, _ := m.teardown(ctx, id); existed {
				m.logger.WarnContext(ctx, "backend rejected session, tore it down",
					slog.String("session", shortID(id)),
				)
			}
		}),
	}, m.engineOpts...)
	s.Engine = reconcile.New(m.auth.ForToken(token), s.mirror, opts...)

	// A fresh id never has mirror data, but a reused Redis prefix might.
	if err := s.mirror.Purge(ctx); err != nil {
		return nil, model.NewInternalError(err)
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "session started",
		slog.String("session", shortID(id)),
		slog.String("username", creds.Username),
	)
	return s, nil
}

// Get returns the live session for id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, model.NewUnauthorizedError("no active session")
	}
	return s, nil
}

// Logout ends the session and wipes its mirror before returning.
func (m *Manager) Logout(ctx context.Context, id string) error {
	existed, err := m.teardown(ctx, id)
	if !existed {
		return model.NewUnauthorizedError("no active session")
	}
	if err != nil {
		return model.NewInternalError(err)
	}
	m.logger.InfoContext(ctx, "session ended", slog.String("session", shortID(id)))
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close tears down every live session.
func (m *Manager) Close(ctx context.Context) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		_, _ = m.teardown(ctx, id)
	}
}

// teardown removes the session and closes its mirror, which purges it and
// rejects writes from engine calls still in flight. Reports whether the
// session existed.
func (m *Manager) teardown(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return false, nil
	}
	if err := s.mirror.Close(context.WithoutCancel(ctx)); err != nil {
		m.logger.ErrorContext(ctx, "purging session mirror failed",
			slog.String("session", shortID(id)),
			slog.String("error", err.Error()),
		)
		return true, err
	}
	return true, nil
}

// shortID keeps session ids out of logs in full.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
