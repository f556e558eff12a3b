package basket

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"storefront/internal/localstore"
	"storefront/internal/model"
	"storefront/internal/session"
)

func TestDeliveryControllerDefaultsToDelivery(t *testing.T) {
	engine := NewEngine(session.NewTokenStore(localstore.NewMemoryStore()), testLogger())
	ctrl := NewDeliveryController(engine, testLogger())
	if ctrl.Mode() != model.ModeDelivery {
		t.Errorf("mode = %q, want delivery", ctrl.Mode())
	}
}

func TestSetModeRejectsUnknownMode(t *testing.T) {
	engine := NewEngine(session.NewTokenStore(localstore.NewMemoryStore()), testLogger())
	ctrl := NewDeliveryController(engine, testLogger())

	_, err := ctrl.SetMode(context.Background(), model.DeliveryMode("drone"))
	if !errors.Is(err, model.ErrInvalidRequest) {
		t.Errorf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestSetModeSelectsMatchingRate(t *testing.T) {
	store := newFakeStore()
	store.cartBody = oneItemCartJSON
	srv := store.serve()
	defer srv.Close()

	engine, _ := newTestEngine(t, srv.URL, srv.Client())
	if _, err := engine.FetchCart(context.Background()); err != nil {
		t.Fatalf("FetchCart: %v", err)
	}
	ctrl := NewDeliveryController(engine, testLogger())

	if _, err := ctrl.SetMode(context.Background(), model.ModeCollection); err != nil {
		t.Fatalf("SetMode: %v", err)
	}

	if ctrl.Mode() != model.ModeCollection {
		t.Errorf("mode = %q, want collection", ctrl.Mode())
	}
	want := []string{"GET /cart", "POST /cart/select-shipping-rate", "GET /cart"}
	if got := store.recorded(); !equalStrings(got, want) {
		t.Errorf("requests = %v, want %v", got, want)
	}
}

func TestSetModeWithoutRatesOnlyFlipsFlag(t *testing.T) {
	store := newFakeStore()
	store.cartBody = emptyCartJSON
	srv := store.serve()
	defer srv.Close()

	engine, _ := newTestEngine(t, srv.URL, srv.Client())
	if _, err := engine.FetchCart(context.Background()); err != nil {
		t.Fatalf("FetchCart: %v", err)
	}
	ctrl := NewDeliveryController(engine, testLogger())

	if _, err := ctrl.SetMode(context.Background(), model.ModeCollection); err != nil {
		t.Fatalf("SetMode: %v", err)
	}

	if ctrl.Mode() != model.ModeCollection {
		t.Errorf("mode = %q, want collection", ctrl.Mode())
	}
	// Only the priming fetch; an empty cart offers no rates to select.
	want := []string{"GET /cart"}
	if got := store.recorded(); !equalStrings(got, want) {
		t.Errorf("requests = %v, want %v", got, want)
	}
}

func TestSetModeSkipsAlreadySelectedRate(t *testing.T) {
	store := newFakeStore()
	store.cartBody = oneItemCartJSON // flat_rate:1 already selected
	srv := store.serve()
	defer srv.Close()

	engine, _ := newTestEngine(t, srv.URL, srv.Client())
	if _, err := engine.FetchCart(context.Background()); err != nil {
		t.Fatalf("FetchCart: %v", err)
	}
	ctrl := NewDeliveryController(engine, testLogger())

	if _, err := ctrl.SetMode(context.Background(), model.ModeDelivery); err != nil {
		t.Fatalf("SetMode: %v", err)
	}

	want := []string{"GET /cart"}
	if got := store.recorded(); !equalStrings(got, want) {
		t.Errorf("requests = %v, want %v", got, want)
	}
}

func TestSetModeFailureDoesNotRollBackFlag(t *testing.T) {
	store := newFakeStore()
	store.cartBody = oneItemCartJSON
	srv := store.serve()
	defer srv.Close()

	engine, _ := newTestEngine(t, srv.URL, srv.Client())
	if _, err := engine.FetchCart(context.Background()); err != nil {
		t.Fatalf("FetchCart: %v", err)
	}
	ctrl := NewDeliveryController(engine, testLogger())

	store.mutationStatus = http.StatusInternalServerError
	_, err := ctrl.SetMode(context.Background(), model.ModeCollection)
	if err == nil {
		t.Fatal("SetMode should surface the rate selection failure")
	}

	if ctrl.Mode() != model.ModeCollection {
		t.Errorf("mode = %q, want collection kept after failure", ctrl.Mode())
	}
}
