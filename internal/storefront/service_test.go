package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"storefront/internal/basket"
	"storefront/internal/catalog"
	"storefront/internal/localstore"
	"storefront/internal/model"
)

const emptyCartJSON = `{
	"items": [],
	"totals": {
		"currency_code": "GBP", "currency_symbol": "£", "currency_minor_unit": 2,
		"total_items": "0", "total_shipping": "0", "total_tax": "0", "total_price": "0"
	}
}`

const pizzaCartJSON = `{
	"items": [{
		"key": "abc", "id": 42, "name": "Margherita", "quantity": 1,
		"prices": {"price": "850"},
		"totals": {"line_total": "850"}
	}],
	"totals": {
		"currency_code": "GBP", "currency_symbol": "£", "currency_minor_unit": 2,
		"total_items": "850", "total_shipping": "250", "total_tax": "0", "total_price": "1100"
	}
}`

// fakeBusiness is one in-process Store API backend.
type fakeBusiness struct {
	mu       sync.Mutex
	requests []string

	cartBody     string
	batchBody    string
	checkoutBody string
}

func newFakeBusiness() *fakeBusiness {
	return &fakeBusiness{cartBody: emptyCartJSON}
}

func (f *fakeBusiness) serve(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/wp-json/wc/store/v1")

		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+path)
		f.mu.Unlock()

		switch {
		case r.Method == http.MethodGet && path == "/cart":
			io.WriteString(w, f.cartBody)
		case r.Method == http.MethodPost && path == "/batch":
			io.WriteString(w, f.batchBody)
		case r.Method == http.MethodPost && path == "/checkout":
			io.WriteString(w, f.checkoutBody)
		default:
			w.WriteHeader(http.StatusCreated)
			io.WriteString(w, "{}")
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeBusiness) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

type fixture struct {
	svc   *Service
	kv    *localstore.MemoryStore
	pizza *fakeBusiness
	sushi *fakeBusiness
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	pizza := newFakeBusiness()
	sushi := newFakeBusiness()
	pizzaSrv := pizza.serve(t)
	sushiSrv := sushi.serve(t)

	businesses := []model.Business{
		{ID: "pizza-palace", Name: "Pizza Palace", BaseURL: pizzaSrv.URL, Currency: "GBP", StoreAPIVersion: "1.0.0"},
		{ID: "sushi-spot", Name: "Sushi Spot", BaseURL: sushiSrv.URL, Currency: "GBP", StoreAPIVersion: "1.0.0"},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	kv := localstore.NewMemoryStore()
	cat := catalog.New(businesses, http.DefaultClient, logger)
	return &fixture{
		svc:   New(cat, kv, logger),
		kv:    kv,
		pizza: pizza,
		sushi: sushi,
	}
}

func TestAddItemClaimsOrigin(t *testing.T) {
	fx := newFixture(t)
	fx.pizza.cartBody = pizzaCartJSON

	cart, err := fx.svc.AddItem(context.Background(), "pizza-palace", 42, 1)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	if fx.svc.BasketBusinessID() != "pizza-palace" {
		t.Errorf("origin = %q, want pizza-palace", fx.svc.BasketBusinessID())
	}
	if cart.ItemCount() != 1 {
		t.Errorf("item count = %d, want 1", cart.ItemCount())
	}
	want := []string{"POST /cart/add-item", "GET /cart"}
	if got := fx.pizza.recorded(); !equalStrings(got, want) {
		t.Errorf("pizza requests = %v, want %v", got, want)
	}
}

func TestAddItemCrossBusinessBlocks(t *testing.T) {
	fx := newFixture(t)
	fx.pizza.cartBody = pizzaCartJSON

	if _, err := fx.svc.AddItem(context.Background(), "pizza-palace", 42, 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	cart, err := fx.svc.AddItem(context.Background(), "sushi-spot", 7, 1)
	if !errors.Is(err, model.ErrOriginConflict) {
		t.Fatalf("err = %v, want ErrOriginConflict", err)
	}
	if cart.ItemCount() != 1 {
		t.Errorf("blocked add changed the basket: %d items", cart.ItemCount())
	}
	if _, ok := fx.svc.PendingConflict(); !ok {
		t.Error("no pending conflict recorded")
	}
	if got := fx.sushi.recorded(); len(got) != 0 {
		t.Errorf("blocked add reached the target business: %v", got)
	}
	if fx.svc.BasketBusinessID() != "pizza-palace" {
		t.Errorf("origin = %q, want pizza-palace", fx.svc.BasketBusinessID())
	}
}

func TestResolveConflictClearAndAdd(t *testing.T) {
	fx := newFixture(t)
	fx.pizza.cartBody = pizzaCartJSON

	if _, err := fx.svc.AddItem(context.Background(), "pizza-palace", 42, 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := fx.svc.AddItem(context.Background(), "sushi-spot", 7, 2); !errors.Is(err, model.ErrOriginConflict) {
		t.Fatalf("err = %v, want ErrOriginConflict", err)
	}

	fx.sushi.cartBody = `{
		"items": [{"key": "def", "id": 7, "name": "Nigiri Set", "quantity": 2,
			"prices": {"price": "1200"}, "totals": {"line_total": "2400"}}],
		"totals": {"currency_code": "GBP", "currency_symbol": "£", "currency_minor_unit": 2,
			"total_items": "2400", "total_shipping": "0", "total_tax": "0", "total_price": "2400"}
	}`

	cart, err := fx.svc.ResolveConflict(context.Background(), basket.ResolutionClearAndAdd)
	if err != nil {
		t.Fatalf("ResolveConflict: %v", err)
	}

	if fx.svc.BasketBusinessID() != "sushi-spot" {
		t.Errorf("origin = %q, want sushi-spot", fx.svc.BasketBusinessID())
	}
	if _, ok := cart.FindItem(7); !ok {
		t.Errorf("pending item missing from basket: %+v", cart.Items)
	}
	if _, ok := fx.svc.PendingConflict(); ok {
		t.Error("pending conflict not cleared")
	}
	want := []string{"POST /cart/add-item", "GET /cart"}
	if got := fx.sushi.recorded(); !equalStrings(got, want) {
		t.Errorf("sushi requests = %v, want %v", got, want)
	}
}

func TestResolveConflictKeepExisting(t *testing.T) {
	fx := newFixture(t)
	fx.pizza.cartBody = pizzaCartJSON

	if _, err := fx.svc.AddItem(context.Background(), "pizza-palace", 42, 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := fx.svc.AddItem(context.Background(), "sushi-spot", 7, 1); !errors.Is(err, model.ErrOriginConflict) {
		t.Fatalf("err = %v, want ErrOriginConflict", err)
	}

	cart, err := fx.svc.ResolveConflict(context.Background(), basket.ResolutionKeepExisting)
	if err != nil {
		t.Fatalf("ResolveConflict: %v", err)
	}
	if cart.ItemCount() != 1 {
		t.Errorf("item count = %d, want 1", cart.ItemCount())
	}
	if fx.svc.BasketBusinessID() != "pizza-palace" {
		t.Errorf("origin = %q, want pizza-palace", fx.svc.BasketBusinessID())
	}
	if got := fx.sushi.recorded(); len(got) != 0 {
		t.Errorf("keep-existing reached the target business: %v", got)
	}
}

func TestConflictResolutionSurvivesRestart(t *testing.T) {
	fx := newFixture(t)
	fx.pizza.cartBody = pizzaCartJSON

	if _, err := fx.svc.AddItem(context.Background(), "pizza-palace", 42, 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := fx.svc.AddItem(context.Background(), "sushi-spot", 7, 2); !errors.Is(err, model.ErrOriginConflict) {
		t.Fatalf("err = %v, want ErrOriginConflict", err)
	}

	// A fresh process over the same state resolves the conflict, as a
	// second CLI invocation would.
	fx.sushi.cartBody = `{
		"items": [{"key": "def", "id": 7, "name": "Nigiri Set", "quantity": 2,
			"prices": {"price": "1200"}, "totals": {"line_total": "2400"}}],
		"totals": {"currency_code": "GBP", "currency_symbol": "£", "currency_minor_unit": 2,
			"total_items": "2400", "total_shipping": "0", "total_tax": "0", "total_price": "2400"}
	}`
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	restored := New(catalog.New(fx.svc.Businesses(), http.DefaultClient, logger), fx.kv, logger)
	if err := restored.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	p, ok := restored.PendingConflict()
	if !ok {
		t.Fatal("pending conflict lost across restart")
	}
	if p.BusinessID != "sushi-spot" || p.ProductID != 7 || p.Quantity != 2 {
		t.Fatalf("restored pending = %+v, want the blocked sushi add", p)
	}

	cart, err := restored.ResolveConflict(context.Background(), basket.ResolutionClearAndAdd)
	if err != nil {
		t.Fatalf("ResolveConflict: %v", err)
	}
	if restored.BasketBusinessID() != "sushi-spot" {
		t.Errorf("origin = %q, want sushi-spot", restored.BasketBusinessID())
	}
	if _, ok := cart.FindItem(7); !ok {
		t.Errorf("pending item missing from basket: %+v", cart.Items)
	}

	// The consumed pending must not resurface on the next restart.
	again := New(catalog.New(fx.svc.Businesses(), http.DefaultClient, logger), fx.kv, logger)
	if err := again.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if _, ok := again.PendingConflict(); ok {
		t.Error("resolved conflict still pending after restart")
	}
}

func TestResolveConflictWithoutPending(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.ResolveConflict(context.Background(), basket.ResolutionClearAndAdd)
	if !errors.Is(err, model.ErrInvalidRequest) {
		t.Errorf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestEmptyingBasketResetsOrigin(t *testing.T) {
	fx := newFixture(t)
	fx.pizza.cartBody = pizzaCartJSON

	if _, err := fx.svc.AddItem(context.Background(), "pizza-palace", 42, 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	fx.pizza.cartBody = emptyCartJSON
	cart, err := fx.svc.SetQuantity(context.Background(), 42, 0)
	if err != nil {
		t.Fatalf("SetQuantity: %v", err)
	}
	if !cart.IsEmpty() {
		t.Fatal("basket not empty")
	}
	if fx.svc.BasketBusinessID() != "" {
		t.Errorf("origin = %q, want empty", fx.svc.BasketBusinessID())
	}

	// A different business may now claim the basket without conflict.
	fx.sushi.cartBody = pizzaCartJSON
	if _, err := fx.svc.AddItem(context.Background(), "sushi-spot", 7, 1); err != nil {
		t.Fatalf("AddItem after reset: %v", err)
	}
}

func TestAddressBookRoundTrip(t *testing.T) {
	fx := newFixture(t)

	home := model.Address{
		Label: "home", FirstName: "Ada", LastName: "Lovelace",
		Address1: "1 Analytical Row", City: "London", Postcode: "N1 9GU", Country: "GB",
	}
	if err := fx.svc.SaveAddress(home); err != nil {
		t.Fatalf("SaveAddress: %v", err)
	}

	home.Address1 = "2 Analytical Row"
	if err := fx.svc.SaveAddress(home); err != nil {
		t.Fatalf("SaveAddress (update): %v", err)
	}

	addrs, err := fx.svc.Addresses()
	if err != nil {
		t.Fatalf("Addresses: %v", err)
	}
	if len(addrs) != 1 {
		t.Fatalf("addresses = %d, want 1 (label upsert)", len(addrs))
	}
	if addrs[0].Address1 != "2 Analytical Row" {
		t.Errorf("address1 = %q, want updated value", addrs[0].Address1)
	}

	if err := fx.svc.DeleteAddress("home"); err != nil {
		t.Fatalf("DeleteAddress: %v", err)
	}
	if err := fx.svc.DeleteAddress("home"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveAddressValidation(t *testing.T) {
	fx := newFixture(t)

	err := fx.svc.SaveAddress(model.Address{Label: "", Address1: "x", City: "y", Postcode: "z"})
	if !errors.Is(err, model.ErrInvalidRequest) {
		t.Errorf("missing label: err = %v, want ErrInvalidRequest", err)
	}
	err = fx.svc.SaveAddress(model.Address{Label: "home"})
	if !errors.Is(err, model.ErrInvalidRequest) {
		t.Errorf("missing fields: err = %v, want ErrInvalidRequest", err)
	}
}

func checkoutFixture(t *testing.T) *fixture {
	t.Helper()
	fx := newFixture(t)
	fx.pizza.cartBody = pizzaCartJSON
	fx.pizza.checkoutBody = `{
		"order_id": 1001, "order_key": "wc_order_abc", "status": "processing",
		"totals": {"currency_code": "GBP", "total_price": "1100"}
	}`

	if err := fx.svc.SaveAddress(model.Address{
		Label: "home", FirstName: "Ada", LastName: "Lovelace",
		Address1: "1 Analytical Row", City: "London", Postcode: "N1 9GU", Country: "GB",
	}); err != nil {
		t.Fatalf("SaveAddress: %v", err)
	}
	if _, err := fx.svc.AddItem(context.Background(), "pizza-palace", 42, 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	return fx
}

func TestCheckoutFinishesSession(t *testing.T) {
	fx := checkoutFixture(t)

	order, err := fx.svc.Checkout(context.Background(), CheckoutInput{AddressLabel: "home"})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if order.OrderID != 1001 {
		t.Errorf("order id = %d, want 1001", order.OrderID)
	}
	if order.Total != 1100 {
		t.Errorf("total = %d, want 1100", order.Total)
	}
	if order.BusinessID != "pizza-palace" {
		t.Errorf("business = %q, want pizza-palace", order.BusinessID)
	}

	if !fx.svc.Basket().IsEmpty() {
		t.Error("basket not emptied after checkout")
	}
	if fx.svc.BasketBusinessID() != "" {
		t.Errorf("origin = %q, want empty after checkout", fx.svc.BasketBusinessID())
	}

	// The cart token was deleted from local state.
	if _, ok, _ := fx.kv.Get("cart_token"); ok {
		t.Error("cart token still persisted after checkout")
	}

	orders, err := fx.svc.Orders()
	if err != nil {
		t.Fatalf("Orders: %v", err)
	}
	if len(orders) != 1 || orders[0].OrderID != 1001 {
		t.Errorf("orders = %+v, want the placed order", orders)
	}
}

func TestCheckoutRequiresItemsAndAddress(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.svc.Checkout(context.Background(), CheckoutInput{AddressLabel: "home"})
	if !errors.Is(err, model.ErrInvalidRequest) {
		t.Errorf("empty basket: err = %v, want ErrInvalidRequest", err)
	}

	fx.pizza.cartBody = pizzaCartJSON
	if _, err := fx.svc.AddItem(context.Background(), "pizza-palace", 42, 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	_, err = fx.svc.Checkout(context.Background(), CheckoutInput{AddressLabel: "nowhere"})
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("unknown address: err = %v, want ErrNotFound", err)
	}
}

func TestReorderReplaysIntoFreshBasket(t *testing.T) {
	fx := checkoutFixture(t)
	order, err := fx.svc.Checkout(context.Background(), CheckoutInput{AddressLabel: "home"})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	fx.pizza.mu.Lock()
	fx.pizza.requests = nil
	fx.pizza.mu.Unlock()
	fx.pizza.batchBody = `{"responses": [{"status": 201, "body": {}, "headers": {}}]}`

	cart, err := fx.svc.Reorder(context.Background(), order.OrderID)
	if err != nil {
		t.Fatalf("Reorder: %v", err)
	}

	want := []string{"DELETE /cart/items", "POST /batch", "GET /cart"}
	if got := fx.pizza.recorded(); !equalStrings(got, want) {
		t.Errorf("requests = %v, want %v", got, want)
	}
	if _, ok := cart.FindItem(42); !ok {
		t.Errorf("reordered item missing: %+v", cart.Items)
	}
	if fx.svc.BasketBusinessID() != "pizza-palace" {
		t.Errorf("origin = %q, want pizza-palace", fx.svc.BasketBusinessID())
	}
}

func TestReorderPartialFailureMovesOrigin(t *testing.T) {
	fx := checkoutFixture(t)
	order, err := fx.svc.Checkout(context.Background(), CheckoutInput{AddressLabel: "home"})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	// Another business holds the basket when the replay is attempted.
	fx.sushi.cartBody = `{
		"items": [{"key": "def", "id": 7, "name": "Nigiri Set", "quantity": 1,
			"prices": {"price": "1200"}, "totals": {"line_total": "1200"}}],
		"totals": {"currency_code": "GBP", "currency_symbol": "£", "currency_minor_unit": 2,
			"total_items": "1200", "total_shipping": "0", "total_tax": "0", "total_price": "1200"}
	}`
	if _, err := fx.svc.AddItem(context.Background(), "sushi-spot", 7, 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	// The batch reports a sub-failure after the clear landed; the resync
	// finds the partially applied items.
	fx.pizza.batchBody = `{"responses": [{"status": 400,
		"body": {"code": "woocommerce_rest_cart_invalid_product", "message": "no such product"},
		"headers": {}}]}`
	fx.pizza.cartBody = pizzaCartJSON

	cart, err := fx.svc.Reorder(context.Background(), order.OrderID)
	if err == nil {
		t.Fatal("Reorder succeeded, want batch sub-failure")
	}
	if cart.IsEmpty() {
		t.Fatal("resynced cart empty, want the partially applied items")
	}
	if got := fx.svc.BasketBusinessID(); got != "pizza-palace" {
		t.Errorf("origin = %q, want pizza-palace for the partially applied basket", got)
	}
}

func TestReorderFailureWithEmptyCartResetsOrigin(t *testing.T) {
	fx := checkoutFixture(t)
	order, err := fx.svc.Checkout(context.Background(), CheckoutInput{AddressLabel: "home"})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	fx.sushi.cartBody = `{
		"items": [{"key": "def", "id": 7, "name": "Nigiri Set", "quantity": 1,
			"prices": {"price": "1200"}, "totals": {"line_total": "1200"}}],
		"totals": {"currency_code": "GBP", "currency_symbol": "£", "currency_minor_unit": 2,
			"total_items": "1200", "total_shipping": "0", "total_tax": "0", "total_price": "1200"}
	}`
	if _, err := fx.svc.AddItem(context.Background(), "sushi-spot", 7, 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	// The batch response is unreadable and the resync finds nothing
	// applied; no business owns the empty basket.
	fx.pizza.batchBody = `{"responses": [`
	fx.pizza.cartBody = emptyCartJSON

	cart, err := fx.svc.Reorder(context.Background(), order.OrderID)
	if err == nil {
		t.Fatal("Reorder succeeded, want batch failure")
	}
	if !cart.IsEmpty() {
		t.Fatalf("cart not empty: %+v", cart.Items)
	}
	if got := fx.svc.BasketBusinessID(); got != "" {
		t.Errorf("origin = %q, want empty for an empty basket", got)
	}
}

func TestReorderUnknownOrder(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.Reorder(context.Background(), 9999)
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestOrdersNewestFirst(t *testing.T) {
	fx := newFixture(t)

	for _, id := range []int{1, 2, 3} {
		if err := fx.svc.appendOrder(model.Order{OrderID: id, BusinessID: "pizza-palace"}); err != nil {
			t.Fatalf("appendOrder: %v", err)
		}
	}

	orders, err := fx.svc.Orders()
	if err != nil {
		t.Fatalf("Orders: %v", err)
	}
	ids := make([]int, len(orders))
	for i, o := range orders {
		ids[i] = o.OrderID
	}
	if len(ids) != 3 || ids[0] != 3 || ids[2] != 1 {
		t.Errorf("order ids = %v, want [3 2 1]", ids)
	}
}

func TestRestoreRebindsOrigin(t *testing.T) {
	fx := newFixture(t)
	fx.pizza.cartBody = pizzaCartJSON

	if _, err := fx.svc.AddItem(context.Background(), "pizza-palace", 42, 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	// Persist origin + token, then build a fresh service over the same
	// state, as an app restart would.
	data, _ := json.Marshal("tok-restored")
	if err := fx.kv.Put("cart_token", data); err != nil {
		t.Fatalf("seeding token: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat := catalog.New(fx.svc.Businesses(), http.DefaultClient, logger)
	restored := New(cat, fx.kv, logger)
	if err := restored.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if restored.BasketBusinessID() != "pizza-palace" {
		t.Errorf("origin = %q, want pizza-palace", restored.BasketBusinessID())
	}
	if restored.Basket().ItemCount() != 1 {
		t.Errorf("restored basket items = %d, want 1", restored.Basket().ItemCount())
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
