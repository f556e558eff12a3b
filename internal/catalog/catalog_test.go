package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBusinessesSortedByName(t *testing.T) {
	svc := New([]model.Business{
		{ID: "z", Name: "Zen Sushi", BaseURL: "http://z.example", StoreAPIVersion: "1.0.0"},
		{ID: "a", Name: "Aroma Curry", BaseURL: "http://a.example", StoreAPIVersion: "1.0.0"},
	}, nil, testLogger())

	got := svc.Businesses()
	if len(got) != 2 || got[0].Name != "Aroma Curry" || got[1].Name != "Zen Sushi" {
		t.Errorf("Businesses = %+v, want sorted by name", got)
	}
}

func TestBusinessLookup(t *testing.T) {
	svc := New([]model.Business{
		{ID: "pizza-palace", Name: "Pizza Palace", BaseURL: "http://p.example", StoreAPIVersion: "1.0.0"},
	}, nil, testLogger())

	if _, err := svc.Business("pizza-palace"); err != nil {
		t.Errorf("Business: %v", err)
	}
	_, err := svc.Business("nope")
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestClientForRejectsOldStoreAPI(t *testing.T) {
	svc := New([]model.Business{
		{ID: "old", Name: "Old Store", BaseURL: "http://old.example", StoreAPIVersion: "0.5.0"},
		{ID: "silent", Name: "Silent Store", BaseURL: "http://s.example"},
	}, nil, testLogger())

	if _, err := svc.ClientFor("old"); !errors.Is(err, model.ErrInvalidRequest) {
		t.Errorf("old version: err = %v, want ErrInvalidRequest", err)
	}
	// No advertised version is rejected, not assumed compatible.
	if _, err := svc.ClientFor("silent"); !errors.Is(err, model.ErrInvalidRequest) {
		t.Errorf("missing version: err = %v, want ErrInvalidRequest", err)
	}
}

func TestClientForCachesPerBusiness(t *testing.T) {
	svc := New([]model.Business{
		{ID: "pizza-palace", Name: "Pizza Palace", BaseURL: "http://p.example", StoreAPIVersion: "1.0.0"},
	}, nil, testLogger())

	first, err := svc.ClientFor("pizza-palace")
	if err != nil {
		t.Fatalf("ClientFor: %v", err)
	}
	second, err := svc.ClientFor("pizza-palace")
	if err != nil {
		t.Fatalf("ClientFor: %v", err)
	}
	if first != second {
		t.Error("ClientFor built a new client instead of reusing the cached one")
	}
}

func TestMenuFetchesProducts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wp-json/wc/store/v1/products" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, `[
			{"id": 42, "name": "Margherita", "short_description": "Tomato and mozzarella",
				"prices": {"price": "850", "currency_code": "GBP", "currency_minor_unit": 2},
				"is_in_stock": true},
			{"id": 55, "name": "Diavola", "prices": {"price": "1050"}, "is_in_stock": false}
		]`)
	}))
	defer srv.Close()

	svc := New([]model.Business{
		{ID: "pizza-palace", Name: "Pizza Palace", BaseURL: srv.URL, StoreAPIVersion: "1.0.0"},
	}, srv.Client(), testLogger())

	items, err := svc.Menu(context.Background(), "pizza-palace")
	if err != nil {
		t.Fatalf("Menu: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].ProductID != 42 || items[0].Price != 850 || !items[0].InStock {
		t.Errorf("item 0 = %+v", items[0])
	}
	if items[1].InStock {
		t.Errorf("item 1 should be out of stock")
	}
}

func TestMenuUnknownBusiness(t *testing.T) {
	svc := New(nil, nil, testLogger())
	_, err := svc.Menu(context.Background(), "nope")
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
