// Package catalog exposes the business directory and per-business menus.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"storefront/internal/model"
	"storefront/internal/storeapi"
)

// Service resolves businesses from the configured directory and fetches
// their menus. Store API clients are built lazily and cached per
// business; each passes the version gate once, at first use.
type Service struct {
	logger     *slog.Logger
	httpClient *http.Client

	businesses map[string]model.Business

	mu      sync.Mutex
	clients map[string]*storeapi.Client
}

// New creates a catalog service over the given business directory.
// httpClient may be nil, in which case each Store API client uses the
// default browser-fingerprint transport.
func New(businesses []model.Business, httpClient *http.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	byID := make(map[string]model.Business, len(businesses))
	for _, b := range businesses {
		byID[b.ID] = b
	}
	return &Service{
		logger:     logger,
		httpClient: httpClient,
		businesses: byID,
		clients:    make(map[string]*storeapi.Client),
	}
}

// Businesses lists the directory, sorted by name for stable output.
func (s *Service) Businesses() []model.Business {
	out := make([]model.Business, 0, len(s.businesses))
	for _, b := range s.businesses {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Business looks up one directory entry by id.
func (s *Service) Business(id string) (model.Business, error) {
	b, ok := s.businesses[id]
	if !ok {
		return model.Business{}, model.NewNotFoundError(fmt.Sprintf("business %q", id))
	}
	return b, nil
}

// ClientFor returns the Store API client for a business, building and
// caching it on first use. The business's advertised Store API version
// is checked against the client minimum; incompatible backends are
// rejected before any traffic is sent.
func (s *Service) ClientFor(id string) (*storeapi.Client, error) {
	b, err := s.Business(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if client, ok := s.clients[id]; ok {
		return client, nil
	}

	if err := storeapi.CheckVersion(b.StoreAPIVersion); err != nil {
		return nil, model.NewValidationError("business", err.Error())
	}

	client, err := storeapi.New(b.BaseURL, s.httpClient)
	if err != nil {
		return nil, fmt.Errorf("building client for business %q: %w", id, err)
	}
	s.clients[id] = client
	return client, nil
}

// Menu fetches a business's orderable products.
func (s *Service) Menu(ctx context.Context, businessID string) ([]model.MenuItem, error) {
	client, err := s.ClientFor(businessID)
	if err != nil {
		return nil, err
	}

	products, err := client.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching menu for %q: %w", businessID, err)
	}

	s.logger.Debug("fetched menu",
		slog.String("business_id", businessID),
		slog.Int("items", len(products)),
	)
	return storeapi.ToMenuItems(products), nil
}
