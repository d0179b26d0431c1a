package reconcile

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cartsync/internal/gateway"
	"cartsync/internal/mirror"
	"cartsync/internal/model"
)

// Operation names carried by model.OpError and span names.
const (
	OpAddToCart      = "add_to_cart"
	OpRemoveFromCart = "remove_from_cart"
	OpViewCart       = "view_cart"
	OpCheckout       = "checkout"
	OpListOrders     = "list_orders"
	OpListItems      = "list_items"
	OpPeek           = "peek_cart"
)

const tracerName = "cartsync/reconcile"

// Engine coordinates one session's mirror with its gateway.
//
// Add, remove and checkout hold a per-engine mutation lock for the whole
// optimistic write, backend call and confirmation, so a late response can
// never overwrite a newer optimistic state. ViewCart runs without the lock
// and writes back with Mirror.CompareAndWrite against the version it saw
// before fetching.
//
// Every call detaches from the caller's cancellation: once a backend call is
// issued it runs to completion and the mirror is confirmed or rolled back.
type Engine struct {
	gw     gateway.Gateway
	mirror mirror.Mirror
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time

	onUnauthorized func(ctx context.Context)

	mu sync.Mutex

	catalogMu sync.Mutex
	catalog   []model.Item
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithTracer sets the tracer used for operation spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) { e.tracer = tracer }
}

// WithUnauthorizedHook registers fn to run synchronously whenever the backend
// rejects the session. It runs after the mirror has been rolled back.
func WithUnauthorizedHook(fn func(ctx context.Context)) Option {
	return func(e *Engine) { e.onUnauthorized = fn }
}

// New creates an engine over gw and m.
func New(gw gateway.Gateway, m mirror.Mirror, opts ...Option) *Engine {
	e := &Engine{
		gw:     gw,
		mirror: m,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddToCart adds one unit of itemID.
//
// The mirror shows the new quantity before the backend answers. On success
// the optimistic line is replaced by the backend's line; on failure the
// mirror is restored to exactly what it held before the call.
func (e *Engine) AddToCart(ctx context.Context, itemID uint) (view *model.CartView, err error) {
	ctx, span := e.start(ctx, OpAddToCart, itemID)
	defer func() { endSpan(span, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	prev, err := e.mirror.Read(ctx)
	if err != nil {
		return nil, e.fail(ctx, OpAddToCart, itemID, mirrorError(err))
	}

	next := prev.Cart.Clone()
	if next == nil {
		next = model.NewCart()
	}
	idx := next.Line(itemID)
	if idx >= 0 {
		next.Lines[idx].Quantity++
	} else {
		next.Lines = append(next.Lines, model.CartLine{
			ItemID:    itemID,
			Quantity:  1,
			CreatedAt: e.now(),
			Item:      e.cachedItem(itemID),
		})
		idx = len(next.Lines) - 1
	}
	if err := e.mirror.Write(ctx, next); err != nil {
		return nil, e.fail(ctx, OpAddToCart, itemID, mirrorError(err))
	}

	line, err := e.gw.AddItem(ctx, itemID)
	if err != nil {
		if werr := e.mirror.Write(ctx, prev.Cart); werr != nil {
			e.logger.ErrorContext(ctx, "rollback failed",
				slog.String("op", OpAddToCart),
				slog.Uint64("item_id", uint64(itemID)),
				slog.String("error", werr.Error()),
			)
		}
		return nil, e.fail(ctx, OpAddToCart, itemID, err)
	}

	optimistic := next.Lines[idx]
	confirmed := *line
	if confirmed.CartItemID == "" {
		confirmed.CartItemID = optimistic.CartItemID
	}
	if confirmed.Item == nil {
		confirmed.Item = optimistic.Item
	}
	if confirmed.Item == nil {
		confirmed.Item = e.lookupItem(ctx, itemID)
	}
	if confirmed.CreatedAt.IsZero() {
		confirmed.CreatedAt = optimistic.CreatedAt
	}
	next.Lines[idx] = confirmed
	if confirmed.CartID != 0 {
		next.ID = confirmed.CartID
	}
	if err := e.mirror.Write(ctx, next); err != nil {
		// The backend accepted the add; the next view resyncs.
		e.logger.WarnContext(ctx, "confirm write failed",
			slog.String("op", OpAddToCart),
			slog.String("error", err.Error()),
		)
	}

	e.logger.DebugContext(ctx, "item added",
		slog.Uint64("item_id", uint64(itemID)),
		slog.Int("quantity", confirmed.Quantity),
		slog.String("cart_item_id", confirmed.CartItemID),
	)
	return newView(next, model.SourceRemote), nil
}

// RemoveFromCart removes the whole line for itemID.
//
// The line disappears from the mirror immediately and is masked as a pending
// removal until the backend answers. A backend NotFound counts as success.
// Any other failure resyncs the mirror from the backend instead of restoring
// the removed line.
func (e *Engine) RemoveFromCart(ctx context.Context, itemID uint) (view *model.CartView, err error) {
	ctx, span := e.start(ctx, OpRemoveFromCart, itemID)
	defer func() { endSpan(span, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	prev, err := e.mirror.Read(ctx)
	if err != nil {
		return nil, e.fail(ctx, OpRemoveFromCart, itemID, mirrorError(err))
	}
	if err := e.mirror.MarkPendingRemoval(ctx, itemID); err != nil {
		return nil, e.fail(ctx, OpRemoveFromCart, itemID, mirrorError(err))
	}
	optimistic := prev.Cart.Without(itemID)
	if err := e.mirror.Write(ctx, optimistic); err != nil {
		e.clearPending(ctx, itemID)
		return nil, e.fail(ctx, OpRemoveFromCart, itemID, mirrorError(err))
	}

	rerr := e.gw.RemoveItem(ctx, itemID)
	e.clearPending(ctx, itemID)

	switch model.Kind(rerr) {
	case nil, model.ErrNotFound:
		return newView(optimistic, model.SourceRemote), nil
	case model.ErrUnauthorized:
		return nil, e.fail(ctx, OpRemoveFromCart, itemID, rerr)
	}

	remote, ferr := e.fetch(ctx)
	if ferr == nil {
		if err := e.mirror.Write(ctx, remote); err != nil {
			e.logger.ErrorContext(ctx, "resync write failed", slog.String("error", err.Error()))
		}
		return nil, e.fail(ctx, OpRemoveFromCart, itemID, rerr)
	}

	// Neither the removal nor the resync reached the backend; the pre-removal
	// snapshot is the last state it confirmed.
	if err := e.mirror.Write(ctx, prev.Cart); err != nil {
		e.logger.ErrorContext(ctx, "restore failed", slog.String("error", err.Error()))
	}
	if model.Kind(ferr) == model.ErrUnauthorized {
		return nil, e.fail(ctx, OpRemoveFromCart, itemID, ferr)
	}
	return nil, e.fail(ctx, OpRemoveFromCart, itemID, rerr)
}

// ViewCart fetches the cart from the backend and stores it in the mirror.
// When the backend is unreachable the mirror's last-known cart (or an empty
// one) is returned with Source set to model.SourceCache.
func (e *Engine) ViewCart(ctx context.Context) (view *model.CartView, err error) {
	ctx, span := e.start(ctx, OpViewCart, 0)
	defer func() { endSpan(span, err) }()

	before, err := e.mirror.Read(ctx)
	if err != nil {
		return nil, e.fail(ctx, OpViewCart, 0, mirrorError(err))
	}

	remote, err := e.fetch(ctx)
	if err != nil {
		if model.Kind(err) == model.ErrUnreachable {
			e.logger.WarnContext(ctx, "backend unreachable, serving cached cart",
				slog.String("error", err.Error()),
			)
			span.SetAttributes(attribute.String("cart.source", string(model.SourceCache)))
			return e.cachedView(ctx, before), nil
		}
		return nil, e.fail(ctx, OpViewCart, 0, err)
	}

	after, err := e.mirror.Read(ctx)
	if err != nil {
		return nil, e.fail(ctx, OpViewCart, 0, mirrorError(err))
	}
	masked := remote.Without(slices.Concat(before.Pending, after.Pending)...)

	if before.Present() {
		if diff := DiffCarts(before.Effective(), masked); !diff.IsEmpty() {
			e.logger.DebugContext(ctx, "mirror diverged from backend",
				slog.Int("missing", len(diff.Missing)),
				slog.Int("phantom", len(diff.Phantom)),
				slog.Int("quantity", len(diff.Quantity)),
			)
		}
	}

	written, err := e.mirror.CompareAndWrite(ctx, before.Version, masked)
	if err != nil {
		return nil, e.fail(ctx, OpViewCart, 0, mirrorError(err))
	}
	if !written {
		e.logger.DebugContext(ctx, "mirror changed during fetch, keeping newer state")
	}
	span.SetAttributes(attribute.String("cart.source", string(model.SourceRemote)))
	return newView(masked, model.SourceRemote), nil
}

// Checkout turns the cart into an order.
// An empty effective cart fails with model.ErrEmptyCart without calling the
// backend. On success the mirror is cleared; on failure it is left untouched.
func (e *Engine) Checkout(ctx context.Context) (order *model.Order, err error) {
	ctx, span := e.start(ctx, OpCheckout, 0)
	defer func() { endSpan(span, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.mirror.Read(ctx)
	if err != nil {
		return nil, e.fail(ctx, OpCheckout, 0, mirrorError(err))
	}

	effective := snap.Effective()
	if !snap.Present() {
		remote, err := e.fetch(ctx)
		if err != nil {
			return nil, e.fail(ctx, OpCheckout, 0, err)
		}
		if err := e.mirror.Write(ctx, remote); err != nil {
			return nil, e.fail(ctx, OpCheckout, 0, mirrorError(err))
		}
		effective = remote
	}
	if effective.IsEmpty() {
		return nil, &model.OpError{Op: OpCheckout, Err: model.NewEmptyCartError()}
	}

	order, err = e.gw.Checkout(ctx)
	if err != nil {
		return nil, e.fail(ctx, OpCheckout, 0, err)
	}

	if err := e.mirror.Clear(ctx); err != nil {
		e.logger.ErrorContext(ctx, "clearing mirror after checkout failed",
			slog.String("error", err.Error()),
		)
	}
	if len(order.Lines) == 0 {
		order.Lines = effective.Clone().Lines
	}

	e.logger.InfoContext(ctx, "checkout complete",
		slog.Uint64("order_id", uint64(order.ID)),
		slog.Int("lines", len(order.Lines)),
		slog.Int64("total", model.OrderTotal(order)),
	)
	return order, nil
}

// Peek returns the mirror's current cart without contacting the backend,
// including optimistic lines and with pending removals masked.
func (e *Engine) Peek(ctx context.Context) (*model.CartView, error) {
	snap, err := e.mirror.Read(ctx)
	if err != nil {
		return nil, &model.OpError{Op: OpPeek, Err: mirrorError(err)}
	}
	return newView(snap.Effective(), model.SourceCache), nil
}

// ListOrders returns past orders, most recent first.
// Orders created at the same instant are ordered by descending id.
func (e *Engine) ListOrders(ctx context.Context) (orders []model.Order, err error) {
	ctx, span := e.start(ctx, OpListOrders, 0)
	defer func() { endSpan(span, err) }()

	orders, err = e.gw.ListOrders(ctx)
	if err != nil {
		return nil, e.fail(ctx, OpListOrders, 0, err)
	}
	slices.SortStableFunc(orders, func(a, b model.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return orders, nil
}

// Catalog returns the item catalog. A successful result is memoized for the
// lifetime of the engine.
func (e *Engine) Catalog(ctx context.Context) (items []model.Item, err error) {
	ctx, span := e.start(ctx, OpListItems, 0)
	defer func() { endSpan(span, err) }()

	items, err = e.loadCatalog(ctx)
	if err != nil {
		return nil, e.fail(ctx, OpListItems, 0, err)
	}
	return items, nil
}

// loadCatalog returns the memoized catalog, fetching it on first use.
// catalogMu is never held across the backend call.
func (e *Engine) loadCatalog(ctx context.Context) ([]model.Item, error) {
	e.catalogMu.Lock()
	cached := e.catalog
	e.catalogMu.Unlock()
	if cached != nil {
		return slices.Clone(cached), nil
	}

	items, err := e.gw.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	e.catalogMu.Lock()
	e.catalog = slices.Clone(items)
	e.catalogMu.Unlock()
	return items, nil
}

// cachedItem finds itemID in the memoized catalog without contacting the
// backend. Returns nil if the catalog has not been loaded yet.
func (e *Engine) cachedItem(itemID uint) *model.Item {
	e.catalogMu.Lock()
	defer e.catalogMu.Unlock()
	for _, item := range e.catalog {
		if item.ID == itemID {
			return &item
		}
	}
	return nil
}

// lookupItem finds the catalog snapshot for a confirmed line, loading the
// catalog if needed. Pricing falls back to the default price when the
// catalog is unavailable.
func (e *Engine) lookupItem(ctx context.Context, itemID uint) *model.Item {
	items, err := e.loadCatalog(ctx)
	if err != nil {
		e.logger.DebugContext(ctx, "catalog unavailable for optimistic line",
			slog.Uint64("item_id", uint64(itemID)),
			slog.String("error", err.Error()),
		)
		return nil
	}
	for _, item := range items {
		if item.ID == itemID {
			return &item
		}
	}
	return nil
}

// fetch reads the backend cart, mapping NotFound to an empty cart.
func (e *Engine) fetch(ctx context.Context) (*model.Cart, error) {
	cart, err := e.gw.FetchCart(ctx)
	if err != nil {
		if model.Kind(err) == model.ErrNotFound {
			return model.NewCart(), nil
		}
		return nil, err
	}
	if cart.Lines == nil {
		cart.Lines = []model.CartLine{}
	}
	return cart, nil
}

// cachedView serves the freshest mirror state, falling back to the snapshot
// taken before the fetch.
func (e *Engine) cachedView(ctx context.Context, before mirror.Snapshot) *model.CartView {
	snap, err := e.mirror.Read(ctx)
	if err != nil {
		snap = before
	}
	return newView(snap.Effective(), model.SourceCache)
}

func (e *Engine) clearPending(ctx context.Context, itemID uint) {
	if err := e.mirror.ClearPendingRemoval(ctx, itemID); err != nil {
		e.logger.ErrorContext(ctx, "clearing pending removal failed",
			slog.Uint64("item_id", uint64(itemID)),
			slog.String("error", err.Error()),
		)
	}
}

// mirrorError maps a mirror failure to the error returned to callers. A
// closed mirror means the session was torn down underneath the call.
func mirrorError(err error) error {
	if errors.Is(err, mirror.ErrClosed) {
		return model.NewUnauthorizedError("session ended")
	}
	return model.NewInternalError(err)
}

// fail wraps err with the operation and runs the unauthorized hook when the
// backend rejected the session.
func (e *Engine) fail(ctx context.Context, op string, itemID uint, err error) error {
	if errors.Is(err, model.ErrUnauthorized) && e.onUnauthorized != nil {
		e.onUnauthorized(ctx)
	}
	e.logger.DebugContext(ctx, "cart operation failed",
		slog.String("op", op),
		slog.Uint64("item_id", uint64(itemID)),
		slog.String("error", err.Error()),
	)
	return &model.OpError{Op: op, ItemID: itemID, Err: err}
}

func (e *Engine) start(ctx context.Context, op string, itemID uint) (context.Context, trace.Span) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := e.tracer.Start(ctx, "cart."+op)
	if itemID != 0 {
		span.SetAttributes(attribute.Int64("cart.item_id", int64(itemID)))
	}
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func newView(cart *model.Cart, source model.Source) *model.CartView {
	if cart == nil {
		cart = model.NewCart()
	}
	return &model.CartView{Cart: cart, Source: source, Total: model.CartTotal(cart)}
}
