// Package session owns the cart session token: durable persistence
// across restarts plus a synchronous in-memory read for attaching the
// token to outgoing request headers without touching storage.
package session

import (
	"encoding/json"
	"fmt"
	"sync"

	"storefront/internal/localstore"
	"storefront/internal/model"
)

// tokenKey is the persisted-state key for the cart session token.
const tokenKey = "cart_token"

// TokenStore persists the current cart token and caches it in memory.
// The cache is updated before the persisted value on every Save so Peek
// is never staler than one save/load round-trip.
type TokenStore struct {
	kv localstore.KV

	mu     sync.RWMutex
	cached model.CartToken
	loaded bool
}

// NewTokenStore creates a token store over the given KV.
func NewTokenStore(kv localstore.KV) *TokenStore {
	return &TokenStore{kv: kv}
}

// Load reads the persisted token, refreshing the in-memory cache.
// Returns the empty token if none is persisted.
func (s *TokenStore) Load() (model.CartToken, error) {
	data, ok, err := s.kv.Get(tokenKey)
	if err != nil {
		return "", fmt.Errorf("loading cart token: %w", err)
	}

	var token model.CartToken
	if ok {
		if err := json.Unmarshal(data, &token); err != nil {
			return "", fmt.Errorf("parsing cart token: %w", err)
		}
	}

	s.mu.Lock()
	s.cached = token
	s.loaded = true
	s.mu.Unlock()

	return token, nil
}

// Save persists the token and updates the cache. An empty token deletes
// the persisted entry, used on checkout completion and explicit clear.
func (s *TokenStore) Save(token model.CartToken) error {
	s.mu.Lock()
	s.cached = token
	s.loaded = true
	s.mu.Unlock()

	if token == "" {
		if err := s.kv.Delete(tokenKey); err != nil {
			return fmt.Errorf("deleting cart token: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encoding cart token: %w", err)
	}
	if err := s.kv.Put(tokenKey, data); err != nil {
		return fmt.Errorf("saving cart token: %w", err)
	}
	return nil
}

// Peek returns the cached token without I/O. Before the first Load or
// Save it returns the empty token.
func (s *TokenStore) Peek() model.CartToken {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cached
}
