package basket

import (
	"context"
	"log/slog"
	"sync"

	"storefront/internal/model"
)

// DeliveryController manages the delivery-vs-collection choice. The mode
// flag is local and optimistic: it flips immediately so the UI follows
// the user's intent, then the matching shipping rate is selected
// server-side. A failed selection is logged and surfaced but the flag is
// not rolled back; the next successful cart sync reconciles any
// disagreement in the totals.
type DeliveryController struct {
	engine *Engine
	logger *slog.Logger

	mu   sync.RWMutex
	mode model.DeliveryMode
}

// NewDeliveryController creates a controller defaulting to delivery.
func NewDeliveryController(engine *Engine, logger *slog.Logger) *DeliveryController {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeliveryController{
		engine: engine,
		logger: logger,
		mode:   model.ModeDelivery,
	}
}

// Mode returns the current fulfillment mode.
func (d *DeliveryController) Mode() model.DeliveryMode {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mode
}

// SetMode switches the fulfillment mode and selects the matching
// shipping rate on the server. Collection maps to the local_pickup
// method; delivery to any other. If the cart offers no rate for the mode
// (typically an empty cart, which has no shipping packages yet), only
// the local flag changes; the rate is selected when items arrive and
// SetMode is called again, or at checkout.
func (d *DeliveryController) SetMode(ctx context.Context, mode model.DeliveryMode) (*model.Cart, error) {
	if !mode.Valid() {
		return d.engine.Snapshot(), model.NewValidationError("mode", "unknown fulfillment mode")
	}

	d.mu.Lock()
	d.mode = mode
	d.mu.Unlock()

	cart := d.engine.Snapshot()
	rate, packageID, ok := cart.RateForMode(mode)
	if !ok {
		return cart, nil
	}
	if rate.Selected {
		return cart, nil
	}

	cart, err := d.engine.SelectShippingRate(ctx, packageID, rate.RateID)
	if err != nil {
		d.logger.Warn("selecting fulfillment rate failed",
			slog.String("mode", string(mode)),
			slog.String("rate_id", rate.RateID),
			slog.String("error", err.Error()),
		)
		return cart, err
	}
	return cart, nil
}

// Reapply re-selects the rate for the current mode against the latest
// cart. Called after the basket transitions from empty to non-empty,
// when shipping packages first appear.
func (d *DeliveryController) Reapply(ctx context.Context) (*model.Cart, error) {
	return d.SetMode(ctx, d.Mode())
}
