package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"storefront/internal/model"
	"storefront/internal/storeapi"
)

// orderHistoryKey is the persisted-state key for local order history.
const orderHistoryKey = "order_history"

// defaultPaymentMethod is used when the caller names none. Pay-on-arrival
// is the baseline every food-ordering backend enables.
const defaultPaymentMethod = "cod"

// CheckoutInput carries the details needed to place the order.
type CheckoutInput struct {
	// AddressLabel names a saved address used for billing, and for
	// shipping in delivery mode.
	AddressLabel string
	// CustomerNote is passed through to the business (e.g. "no onions").
	CustomerNote string
	// PaymentMethod overrides the default pay-on-arrival method.
	PaymentMethod string
}

// Checkout submits the basket as an order. On success the cart session
// is finished: the server invalidates the token, so the local token,
// snapshot, and origin are all dropped, and the order is appended to
// local history for reordering.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (*model.Order, error) {
	cart := s.engine.Snapshot()
	if cart.IsEmpty() {
		return nil, model.NewValidationError("basket", "basket is empty")
	}

	origin := s.guard.Origin()
	if origin == "" {
		return nil, model.NewValidationError("basket", "basket has no origin business")
	}
	business, err := s.catalog.Business(origin)
	if err != nil {
		return nil, err
	}
	client, err := s.catalog.ClientFor(origin)
	if err != nil {
		return nil, err
	}

	addr, err := s.Address(in.AddressLabel)
	if err != nil {
		return nil, err
	}

	mode := s.delivery.Mode()
	method := in.PaymentMethod
	if method == "" {
		method = defaultPaymentMethod
	}

	wireAddr := storeapi.ToAddress(&addr)
	req := &storeapi.CheckoutRequest{
		BillingAddress: wireAddr,
		CustomerNote:   in.CustomerNote,
		PaymentMethod:  method,
	}
	if mode == model.ModeDelivery {
		req.ShippingAddress = wireAddr
	}

	resp, err := client.Checkout(ctx, s.tokens.Peek(), req)
	if err != nil {
		return nil, fmt.Errorf("placing order with %q: %w", origin, err)
	}

	currency := resp.Totals.CurrencyCode
	if currency == "" {
		currency = business.Currency
	}
	order := model.Order{
		OrderID:    resp.OrderID,
		OrderKey:   resp.OrderKey,
		BusinessID: origin,
		Mode:       mode,
		Total:      model.ParseMinorUnits(resp.Totals.TotalPrice),
		Currency:   currency,
		Items:      cart.Items,
		PlacedAt:   time.Now(),
	}

	if err := s.appendOrder(order); err != nil {
		s.logger.Warn("recording order history failed",
			slog.Int("order_id", order.OrderID),
			slog.String("error", err.Error()),
		)
	}

	// The server closed the cart session at checkout; mirror that locally.
	if err := s.engine.ForgetSession(); err != nil {
		s.logger.Warn("dropping cart session failed", slog.String("error", err.Error()))
	}
	if err := s.guard.Reset(); err != nil {
		s.logger.Warn("resetting basket origin failed", slog.String("error", err.Error()))
	}

	s.logger.Info("order placed",
		slog.Int("order_id", order.OrderID),
		slog.String("business_id", origin),
		slog.String("mode", string(mode)),
		slog.Int64("total", order.Total),
	)
	return &order, nil
}

// Orders lists past orders, newest first.
func (s *Service) Orders() ([]model.Order, error) {
	orders, err := s.readOrders()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(orders)-1; i < j; i, j = i+1, j-1 {
		orders[i], orders[j] = orders[j], orders[i]
	}
	return orders, nil
}

// Reorder replays a past order into a fresh basket: the current basket
// is replaced wholesale with the order's items in a single batched
// round-trip. Reorder is an explicit replace, so it does not raise an
// origin conflict even when the current basket came from elsewhere.
func (s *Service) Reorder(ctx context.Context, orderID int) (*model.Cart, error) {
	orders, err := s.readOrders()
	if err != nil {
		return s.engine.Snapshot(), err
	}

	var order *model.Order
	for i := range orders {
		if orders[i].OrderID == orderID {
			order = &orders[i]
			break
		}
	}
	if order == nil {
		return s.engine.Snapshot(), model.NewNotFoundError(fmt.Sprintf("order %d", orderID))
	}

	if err := s.bindOrigin(order.BusinessID); err != nil {
		return s.engine.Snapshot(), err
	}

	cart, err := s.engine.BatchAdd(ctx, order.Items)
	if err != nil {
		// The clear may have landed before the batch failed, so the
		// resynced cart can already hold the order's items. Re-derive the
		// origin from it so a non-empty basket never carries the old one.
		if rerr := s.claimOrigin(cart, order.BusinessID); rerr != nil {
			s.logger.Warn("reconciling origin after failed reorder",
				slog.String("business_id", order.BusinessID),
				slog.String("error", rerr.Error()),
			)
		}
		return cart, err
	}

	return cart, s.claimOrigin(cart, order.BusinessID)
}

// claimOrigin re-records the basket origin after a wholesale replace: a
// non-empty cart belongs to businessID, an empty one to nobody.
func (s *Service) claimOrigin(cart *model.Cart, businessID string) error {
	if err := s.guard.Reset(); err != nil {
		return err
	}
	if cart.IsEmpty() {
		return nil
	}
	_, err := s.guard.BeforeAdd(businessID, true)
	return err
}

func (s *Service) readOrders() ([]model.Order, error) {
	data, ok, err := s.kv.Get(orderHistoryKey)
	if err != nil {
		return nil, fmt.Errorf("loading order history: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var orders []model.Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, fmt.Errorf("parsing order history: %w", err)
	}
	return orders, nil
}

func (s *Service) appendOrder(order model.Order) error {
	orders, err := s.readOrders()
	if err != nil {
		return err
	}
	orders = append(orders, order)

	data, err := json.Marshal(orders)
	if err != nil {
		return fmt.Errorf("encoding order history: %w", err)
	}
	if err := s.kv.Put(orderHistoryKey, data); err != nil {
		return fmt.Errorf("saving order history: %w", err)
	}
	return nil
}
