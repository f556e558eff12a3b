// Package basket holds the client-side basket core: the cart sync engine
// that mirrors a remote cart session, the origin guard that keeps one
// business's items per basket, and the delivery mode controller.
package basket

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"storefront/internal/model"
	"storefront/internal/session"
	"storefront/internal/storeapi"
)

// Engine owns the single authoritative in-memory Cart and serializes all
// mutating operations against the remote cart session.
//
// Two rules keep local state honest:
//
//  1. Mutation responses are success/failure only. After any attempted
//     mutation the cart is refreshed via GET /cart, so the snapshot
//     always reflects server-computed totals, never a local guess.
//  2. Exactly one mutation may be in flight. A mutation arriving while
//     one is running is dropped, returning the last-known snapshot and
//     ErrSyncBusy. The server cart session is single-threaded per token;
//     concurrent writes risk lost updates and token thrashing.
type Engine struct {
	tokens *session.TokenStore
	logger *slog.Logger

	// flight is the single-in-flight mutation guard. TryLock, never Lock:
	// concurrent mutations are rejected, not queued.
	flight sync.Mutex

	mu       sync.RWMutex
	client   *storeapi.Client
	snapshot *model.Cart
}

// NewEngine creates an engine with an empty snapshot and no bound
// business. Bind must be called before the first remote operation.
func NewEngine(tokens *session.TokenStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		tokens:   tokens,
		logger:   logger,
		snapshot: &model.Cart{},
	}
}

// Bind points the engine at a business's Store API endpoint. Called when
// the basket origin is established or switched; the cart session only
// ever spans one business.
func (e *Engine) Bind(client *storeapi.Client) {
	e.mu.Lock()
	e.client = client
	e.mu.Unlock()
}

// Snapshot returns the last-known Cart. Never nil; an engine that has
// not synced yet reports an empty cart.
func (e *Engine) Snapshot() *model.Cart {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot
}

// FetchCart fetches the server cart and replaces the local snapshot.
// Used for initial load and post-mutation resynchronization. Reads are
// not subject to the mutation guard.
func (e *Engine) FetchCart(ctx context.Context) (*model.Cart, error) {
	client, err := e.boundClient()
	if err != nil {
		return e.Snapshot(), err
	}
	return e.refresh(ctx, client)
}

// SetItemQuantity reconciles one product's quantity against the server:
// an add if the product has no line item, an update if it has one and
// quantity is positive, a remove otherwise. Any non-error response is
// followed by a full re-fetch.
func (e *Engine) SetItemQuantity(ctx context.Context, productID, quantity int) (*model.Cart, error) {
	if !e.flight.TryLock() {
		return e.Snapshot(), model.ErrSyncBusy
	}
	defer e.flight.Unlock()

	client, err := e.boundClient()
	if err != nil {
		return e.Snapshot(), err
	}

	item, exists := e.Snapshot().FindItem(productID)
	token := e.tokens.Peek()

	var newToken model.CartToken
	switch {
	case !exists && quantity <= 0:
		// Nothing to do; no line item and nothing to add.
		return e.Snapshot(), nil
	case !exists:
		newToken, err = client.AddItem(ctx, token, productID, quantity)
	case quantity > 0:
		newToken, err = client.UpdateItem(ctx, token, item.Key, quantity)
	default:
		newToken, err = client.RemoveItem(ctx, token, item.Key)
	}
	if err != nil {
		return e.Snapshot(), fmt.Errorf("syncing item %d: %w", productID, err)
	}

	e.adoptToken(newToken)
	return e.refresh(ctx, client)
}

// Clear issues a bulk delete of every cart item and returns the
// resulting empty cart. The persisted session token is deleted; the next
// mutation starts a fresh server session.
func (e *Engine) Clear(ctx context.Context) (*model.Cart, error) {
	if !e.flight.TryLock() {
		return e.Snapshot(), model.ErrSyncBusy
	}
	defer e.flight.Unlock()

	client, err := e.boundClient()
	if err != nil {
		return e.Snapshot(), err
	}
	if err := e.clearLocked(ctx, client); err != nil {
		return e.Snapshot(), err
	}
	return e.Snapshot(), nil
}

// clearLocked empties the remote cart and local state. Caller must hold
// the flight guard.
func (e *Engine) clearLocked(ctx context.Context, client *storeapi.Client) error {
	if _, err := client.ClearItems(ctx, e.tokens.Peek()); err != nil {
		return fmt.Errorf("clearing cart: %w", err)
	}
	if err := e.tokens.Save(""); err != nil {
		e.logger.Warn("dropping cart token after clear failed", slog.String("error", err.Error()))
	}

	if ctx.Err() != nil {
		return nil
	}
	e.mu.Lock()
	e.snapshot = &model.Cart{}
	e.mu.Unlock()
	return nil
}

// BatchAdd clears the cart, then adds every given line item in a single
// batched request, then re-fetches. Used for reorder flows: N items cost
// one clear plus one batch round-trip, not N sequential adds.
//
// If any sub-request in the batch reports a failure status the whole
// operation fails and the engine force-resynchronizes from the server so
// local state never reflects a partially-applied guess.
func (e *Engine) BatchAdd(ctx context.Context, items []model.LineItem) (*model.Cart, error) {
	if len(items) == 0 {
		return e.Snapshot(), model.NewValidationError("items", "at least one item required")
	}

	if !e.flight.TryLock() {
		return e.Snapshot(), model.ErrSyncBusy
	}
	defer e.flight.Unlock()

	client, err := e.boundClient()
	if err != nil {
		return e.Snapshot(), err
	}

	if err := e.clearLocked(ctx, client); err != nil {
		e.forceResync(ctx, client)
		return e.Snapshot(), err
	}

	b := storeapi.NewBatch()
	for _, it := range items {
		b.AddItem(it.ProductID, it.Quantity)
	}

	resp, newToken, err := client.Batch(ctx, e.tokens.Peek(), b.Build())
	if err != nil {
		// The batch may have partially applied server-side; resync so the
		// snapshot matches whatever the server kept.
		e.forceResync(ctx, client)
		return e.Snapshot(), fmt.Errorf("batch add: %w", err)
	}

	e.adoptToken(newToken)

	if failed, ok := resp.FirstFailure(); ok {
		e.forceResync(ctx, client)
		return e.Snapshot(), fmt.Errorf("batch add: %w", failed.Err())
	}

	return e.refresh(ctx, client)
}

// SelectShippingRate selects a fulfillment option server-side and
// re-fetches the cart. A mutation like any other: guarded and followed
// by the canonical read.
func (e *Engine) SelectShippingRate(ctx context.Context, packageID int, rateID string) (*model.Cart, error) {
	if !e.flight.TryLock() {
		return e.Snapshot(), model.ErrSyncBusy
	}
	defer e.flight.Unlock()

	client, err := e.boundClient()
	if err != nil {
		return e.Snapshot(), err
	}

	newToken, err := client.SelectShippingRate(ctx, e.tokens.Peek(), packageID, rateID)
	if err != nil {
		return e.Snapshot(), fmt.Errorf("selecting shipping rate: %w", err)
	}

	e.adoptToken(newToken)
	return e.refresh(ctx, client)
}

// ForgetSession drops the persisted token and local snapshot without a
// remote call. Used after checkout completion, when the server has
// already invalidated the session.
func (e *Engine) ForgetSession() error {
	e.mu.Lock()
	e.snapshot = &model.Cart{}
	e.mu.Unlock()
	return e.tokens.Save("")
}

// refresh performs the canonical read: GET /cart, replace the snapshot
// wholesale, persist any rotated token. If the caller's context was
// cancelled by the time the response arrived, the result is discarded
// without touching shared state.
func (e *Engine) refresh(ctx context.Context, client *storeapi.Client) (*model.Cart, error) {
	wire, newToken, err := client.GetCart(ctx, e.tokens.Peek())
	if err != nil {
		return e.Snapshot(), fmt.Errorf("fetching cart: %w", err)
	}

	e.adoptToken(newToken)

	if ctx.Err() != nil {
		return e.Snapshot(), nil
	}

	cart := storeapi.ToCart(wire)
	e.mu.Lock()
	e.snapshot = cart
	e.mu.Unlock()
	return cart, nil
}

// forceResync restores server-consistent local state after a failed
// clear or batch. Best effort: a resync failure is logged, not
// returned, since the original error is the one the caller needs.
func (e *Engine) forceResync(ctx context.Context, client *storeapi.Client) {
	if _, err := e.refresh(ctx, client); err != nil {
		e.logger.Warn("post-failure resync failed", slog.String("error", err.Error()))
	}
}

// adoptToken persists a rotated session token from a response header.
func (e *Engine) adoptToken(newToken model.CartToken) {
	if newToken == "" || newToken == e.tokens.Peek() {
		return
	}
	if err := e.tokens.Save(newToken); err != nil {
		e.logger.Warn("persisting rotated cart token failed", slog.String("error", err.Error()))
	}
}

func (e *Engine) boundClient() (*storeapi.Client, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.client == nil {
		return nil, model.NewValidationError("basket", "no business bound to basket")
	}
	return e.client, nil
}
