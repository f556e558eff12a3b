// Package storefront coordinates the ordering flow: directory and menu
// browsing, guard-mediated basket mutations, fulfillment mode, address
// book, checkout, and order history. It is the single entry point the
// CLI and the agent gateway talk to.
package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"storefront/internal/basket"
	"storefront/internal/catalog"
	"storefront/internal/localstore"
	"storefront/internal/model"
	"storefront/internal/session"
)

// Service is the storefront coordinator. All basket access goes through
// it so the origin guard sees every add and the engine snapshot, the
// persisted token, and the recorded origin never drift apart.
type Service struct {
	logger   *slog.Logger
	catalog  *catalog.Service
	kv       localstore.KV
	tokens   *session.TokenStore
	engine   *basket.Engine
	guard    *basket.OriginGuard
	delivery *basket.DeliveryController

	mu      sync.Mutex
	pending *basket.PendingAdd
}

// New wires a coordinator over the given directory and local state
// store.
func New(cat *catalog.Service, kv localstore.KV, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	tokens := session.NewTokenStore(kv)
	engine := basket.NewEngine(tokens, logger)
	return &Service{
		logger:   logger,
		catalog:  cat,
		kv:       kv,
		tokens:   tokens,
		engine:   engine,
		guard:    basket.NewOriginGuard(kv),
		delivery: basket.NewDeliveryController(engine, logger),
	}
}

// pendingConflictKey is the persisted-state key for a blocked add
// awaiting resolution. Durable so a process that exits after reporting
// the conflict can still resolve it on its next invocation.
const pendingConflictKey = "pending_conflict"

// Restore loads persisted state: the cart session token, the basket
// origin, and any blocked add awaiting resolution. If an origin exists
// the engine is rebound to its business so the restored token is
// replayed against the right endpoint.
func (s *Service) Restore(ctx context.Context) error {
	if _, err := s.tokens.Load(); err != nil {
		return err
	}
	if err := s.guard.Load(); err != nil {
		return err
	}
	if err := s.loadPending(); err != nil {
		return err
	}

	origin := s.guard.Origin()
	if origin == "" {
		return nil
	}

	client, err := s.catalog.ClientFor(origin)
	if err != nil {
		// A business removed from the directory strands its basket; start
		// over rather than fail every later call.
		s.logger.Warn("dropping basket for unknown origin business",
			slog.String("business_id", origin),
			slog.String("error", err.Error()),
		)
		s.engine.ForgetSession()
		return s.guard.Reset()
	}
	s.engine.Bind(client)

	if _, err := s.engine.FetchCart(ctx); err != nil {
		s.logger.Warn("restoring basket failed", slog.String("error", err.Error()))
	}
	return nil
}

// Businesses lists the directory.
func (s *Service) Businesses() []model.Business {
	return s.catalog.Businesses()
}

// BusinessByID looks up one directory entry.
func (s *Service) BusinessByID(id string) (model.Business, error) {
	return s.catalog.Business(id)
}

// Menu fetches one business's menu.
func (s *Service) Menu(ctx context.Context, businessID string) ([]model.MenuItem, error) {
	return s.catalog.Menu(ctx, businessID)
}

// Basket returns the last-known basket snapshot without a network call.
func (s *Service) Basket() *model.Cart {
	return s.engine.Snapshot()
}

// BasketBusinessID returns the basket's origin business, or "" when the
// basket is empty.
func (s *Service) BasketBusinessID() string {
	return s.guard.Origin()
}

// RefreshBasket re-fetches the basket from the server.
func (s *Service) RefreshBasket(ctx context.Context) (*model.Cart, error) {
	if s.guard.Origin() == "" {
		return s.engine.Snapshot(), nil
	}
	return s.engine.FetchCart(ctx)
}

// AddItem adds quantity of a product from the given business to the
// basket. If the basket already holds another business's items the add
// is blocked: the conflict is recorded as pending and an error wrapping
// ErrOriginConflict is returned for the caller to surface. The blocked
// add is replayed or discarded by ResolveConflict.
func (s *Service) AddItem(ctx context.Context, businessID string, productID, quantity int) (*model.Cart, error) {
	if quantity <= 0 {
		return s.engine.Snapshot(), model.NewValidationError("quantity", "must be positive")
	}

	conflict, err := s.guard.BeforeAdd(businessID, s.engine.Snapshot().IsEmpty())
	if err != nil {
		return s.engine.Snapshot(), err
	}
	if conflict != nil {
		pending := &basket.PendingAdd{BusinessID: businessID, ProductID: productID, Quantity: quantity}
		s.mu.Lock()
		s.pending = pending
		s.mu.Unlock()
		s.persistPending(pending)
		return s.engine.Snapshot(), &model.APIError{
			Code:    "ORIGIN_CONFLICT",
			Message: fmt.Sprintf("basket holds items from %q; resolve before ordering from %q", conflict.ExistingBusinessID, conflict.TargetBusinessID),
			Err:     model.ErrOriginConflict,
		}
	}

	if err := s.bindOrigin(businessID); err != nil {
		return s.engine.Snapshot(), err
	}
	return s.setQuantityRelative(ctx, productID, quantity)
}

// ResolveConflict applies the user's decision for the pending blocked
// add. Returns the resulting basket.
func (s *Service) ResolveConflict(ctx context.Context, decision basket.Resolution) (*model.Cart, error) {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if pending == nil {
		return s.engine.Snapshot(), model.NewValidationError("conflict", "no pending conflict to resolve")
	}
	s.dropPending()

	ops := basket.ConflictOps{
		Clear: func(ctx context.Context) error {
			_, err := s.engine.Clear(ctx)
			return err
		},
		Add: func(ctx context.Context, p basket.PendingAdd) error {
			if err := s.bindOrigin(p.BusinessID); err != nil {
				return err
			}
			_, err := s.engine.SetItemQuantity(ctx, p.ProductID, p.Quantity)
			return err
		},
	}

	if err := s.guard.ResolveConflict(ctx, decision, *pending, ops); err != nil {
		return s.engine.Snapshot(), err
	}
	return s.engine.Snapshot(), nil
}

// PendingConflict reports whether an add is blocked awaiting resolution.
func (s *Service) PendingConflict() (basket.PendingAdd, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return basket.PendingAdd{}, false
	}
	return *s.pending, true
}

// SetQuantity sets a basket line to an absolute quantity. Zero removes
// the line. Only products already gated by AddItem can be touched, so no
// origin check is needed here.
func (s *Service) SetQuantity(ctx context.Context, productID, quantity int) (*model.Cart, error) {
	if quantity < 0 {
		return s.engine.Snapshot(), model.NewValidationError("quantity", "must not be negative")
	}

	cart, err := s.engine.SetItemQuantity(ctx, productID, quantity)
	if err != nil {
		return cart, err
	}
	return cart, s.resetOriginIfEmpty(cart)
}

// RemoveItem removes a product's line from the basket.
func (s *Service) RemoveItem(ctx context.Context, productID int) (*model.Cart, error) {
	return s.SetQuantity(ctx, productID, 0)
}

// ClearBasket empties the basket and drops the origin.
func (s *Service) ClearBasket(ctx context.Context) (*model.Cart, error) {
	cart, err := s.engine.Clear(ctx)
	if err != nil {
		return cart, err
	}
	return cart, s.guard.Reset()
}

// DeliveryMode returns the current fulfillment mode.
func (s *Service) DeliveryMode() model.DeliveryMode {
	return s.delivery.Mode()
}

// SetDeliveryMode switches between delivery and collection.
func (s *Service) SetDeliveryMode(ctx context.Context, mode model.DeliveryMode) (*model.Cart, error) {
	return s.delivery.SetMode(ctx, mode)
}

// setQuantityRelative adds delta to the product's current quantity, the
// increment behavior add-to-basket buttons expect.
func (s *Service) setQuantityRelative(ctx context.Context, productID, delta int) (*model.Cart, error) {
	current := 0
	if item, ok := s.engine.Snapshot().FindItem(productID); ok {
		current = item.Quantity
	}
	return s.engine.SetItemQuantity(ctx, productID, current+delta)
}

// bindOrigin points the engine at the origin business's endpoint.
func (s *Service) bindOrigin(businessID string) error {
	client, err := s.catalog.ClientFor(businessID)
	if err != nil {
		return err
	}
	s.engine.Bind(client)
	return nil
}

// resetOriginIfEmpty drops the origin once the basket has no items, so
// the next add from any business proceeds without a conflict.
func (s *Service) resetOriginIfEmpty(cart *model.Cart) error {
	if !cart.IsEmpty() {
		return nil
	}
	return s.guard.Reset()
}

// persistPending saves the blocked add alongside the origin. Best
// effort: the in-memory copy still serves the current process.
func (s *Service) persistPending(p *basket.PendingAdd) {
	data, err := json.Marshal(p)
	if err == nil {
		err = s.kv.Put(pendingConflictKey, data)
	}
	if err != nil {
		s.logger.Warn("persisting pending conflict failed", slog.String("error", err.Error()))
	}
}

func (s *Service) loadPending() error {
	data, ok, err := s.kv.Get(pendingConflictKey)
	if err != nil {
		return fmt.Errorf("loading pending conflict: %w", err)
	}
	if !ok {
		return nil
	}

	var p basket.PendingAdd
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parsing pending conflict: %w", err)
	}
	s.mu.Lock()
	s.pending = &p
	s.mu.Unlock()
	return nil
}

func (s *Service) dropPending() {
	if err := s.kv.Delete(pendingConflictKey); err != nil {
		s.logger.Warn("dropping pending conflict failed", slog.String("error", err.Error()))
	}
}
