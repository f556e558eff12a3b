package basket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"storefront/internal/localstore"
	"storefront/internal/model"
)

// originKey is the persisted-state key for the basket's origin business.
const originKey = "basket_origin"

// Resolution is the user's answer to a cross-business conflict.
type Resolution string

const (
	// ResolutionClearAndAdd empties the basket and adds the pending item
	// under the new business.
	ResolutionClearAndAdd Resolution = "clear_and_add"
	// ResolutionKeepExisting keeps the basket as-is and discards the
	// pending add.
	ResolutionKeepExisting Resolution = "keep_existing"
)

// PendingAdd is the add that triggered a conflict, held so it can be
// replayed if the user chooses to switch businesses. Persisted by the
// coordinator so a short-lived process can report the conflict in one
// invocation and resolve it in the next.
type PendingAdd struct {
	BusinessID string `json:"business_id"`
	ProductID  int    `json:"product_id"`
	Quantity   int    `json:"quantity"`
}

// Conflict describes a blocked cross-business add.
type Conflict struct {
	ExistingBusinessID string
	TargetBusinessID   string
}

// ConflictOps are the basket actions the guard invokes when resolving a
// conflict with ResolutionClearAndAdd. Supplied by the coordinator,
// which owns client rebinding.
type ConflictOps struct {
	// Clear empties the current basket.
	Clear func(ctx context.Context) error
	// Add performs the pending add against its business.
	Add func(ctx context.Context, pending PendingAdd) error
}

// OriginGuard enforces the one-business-per-basket rule. A non-empty
// basket has exactly one origin business; adds targeting a different
// business are blocked until the user resolves the conflict.
//
// The origin is persisted alongside the cart token so a restarted app
// still knows which business its restored basket belongs to.
type OriginGuard struct {
	kv localstore.KV

	mu     sync.Mutex
	origin string // empty means no origin (empty basket)
}

// NewOriginGuard creates a guard with no origin. Call Load to restore a
// persisted origin before first use.
func NewOriginGuard(kv localstore.KV) *OriginGuard {
	return &OriginGuard{kv: kv}
}

// Load restores the persisted origin, if any.
func (g *OriginGuard) Load() error {
	data, ok, err := g.kv.Get(originKey)
	if err != nil {
		return fmt.Errorf("loading basket origin: %w", err)
	}
	if !ok {
		return nil
	}

	var origin string
	if err := json.Unmarshal(data, &origin); err != nil {
		return fmt.Errorf("parsing basket origin: %w", err)
	}

	g.mu.Lock()
	g.origin = origin
	g.mu.Unlock()
	return nil
}

// Origin returns the basket's origin business ID, or "" if the basket
// has no origin.
func (g *OriginGuard) Origin() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.origin
}

// BeforeAdd gates an add targeting businessID. If the basket is empty
// the target becomes the origin and the add proceeds. If the target
// matches the current origin the add proceeds. Otherwise the add is
// blocked and the returned Conflict describes both businesses.
//
// cartEmpty is the caller's view of the basket; an empty basket has no
// origin claim even if a stale origin is still recorded.
func (g *OriginGuard) BeforeAdd(businessID string, cartEmpty bool) (*Conflict, error) {
	if businessID == "" {
		return nil, model.NewValidationError("business_id", "business id is required")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if cartEmpty || g.origin == "" || g.origin == businessID {
		if g.origin != businessID {
			if err := g.setOriginLocked(businessID); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	return &Conflict{
		ExistingBusinessID: g.origin,
		TargetBusinessID:   businessID,
	}, nil
}

// ResolveConflict applies the user's decision for a blocked add.
// ResolutionKeepExisting discards the pending add and leaves the basket
// untouched. ResolutionClearAndAdd clears the basket, moves the origin
// to the pending add's business, and replays the add; a failed replay
// leaves an empty basket with the new origin, matching what the user
// asked for minus the item.
func (g *OriginGuard) ResolveConflict(ctx context.Context, decision Resolution, pending PendingAdd, ops ConflictOps) error {
	switch decision {
	case ResolutionKeepExisting:
		return nil
	case ResolutionClearAndAdd:
	default:
		return model.NewValidationError("decision", fmt.Sprintf("unknown conflict resolution %q", decision))
	}

	if err := ops.Clear(ctx); err != nil {
		return fmt.Errorf("clearing basket for business switch: %w", err)
	}

	g.mu.Lock()
	err := g.setOriginLocked(pending.BusinessID)
	g.mu.Unlock()
	if err != nil {
		return err
	}

	if err := ops.Add(ctx, pending); err != nil {
		return fmt.Errorf("adding item after business switch: %w", err)
	}
	return nil
}

// Reset drops the origin. Called when the basket empties.
func (g *OriginGuard) Reset() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.origin = ""
	if err := g.kv.Delete(originKey); err != nil {
		return fmt.Errorf("deleting basket origin: %w", err)
	}
	return nil
}

// setOriginLocked records and persists a new origin. Caller holds g.mu.
func (g *OriginGuard) setOriginLocked(businessID string) error {
	data, err := json.Marshal(businessID)
	if err != nil {
		return fmt.Errorf("encoding basket origin: %w", err)
	}
	if err := g.kv.Put(originKey, data); err != nil {
		return fmt.Errorf("saving basket origin: %w", err)
	}
	g.origin = businessID
	return nil
}
