package storeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"storefront/internal/model"
	"storefront/internal/transport"
)

// storeAPIPath is the base path for Store API endpoints, resolved against
// each business's base URL.
const storeAPIPath = "/wp-json/wc/store/v1"

// userAgent identifies this client to upstream servers.
// Required: hosted-store CDNs rate-limit requests without a User-Agent.
const userAgent = "Storefront/1.0"

// cartTokenHeader carries the cart session on requests. Responses return
// the header in arbitrary case; http.Header.Get reads it case-insensitively.
const cartTokenHeader = "Cart-Token"

// Client talks to one business's Store-API-compatible endpoint.
// It is stateless: the cart session token is supplied per call and any
// rotated token is handed back to the caller, which owns persistence.
//
// Mutating calls return the rotated token only. Cart state is never taken
// from mutation response bodies; callers re-fetch via GetCart so local
// state always reflects server-computed totals.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New creates a client for the business endpoint at baseURL.
// If httpClient is nil a default client with the browser-fingerprint
// transport is used; pass a custom client in tests.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport.NewBrowserTransport(30 * time.Second),
		}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// BaseURL returns the business endpoint this client is bound to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetCart fetches current cart state.
// Returns the cart, the token from the response header (empty if the
// server sent none), and any error.
func (c *Client) GetCart(ctx context.Context, token model.CartToken) (*CartResponse, model.CartToken, error) {
	body, newToken, err := c.do(ctx, http.MethodGet, "/cart", token, nil)
	if err != nil {
		return nil, "", err
	}

	var cart CartResponse
	if err := json.Unmarshal(body, &cart); err != nil {
		return nil, "", fmt.Errorf("parsing cart response: %w", err)
	}
	return &cart, newToken, nil
}

// AddItem adds a product to the cart.
func (c *Client) AddItem(ctx context.Context, token model.CartToken, productID, quantity int) (model.CartToken, error) {
	req := AddItemRequest{ID: strconv.Itoa(productID), Quantity: quantity}
	_, newToken, err := c.do(ctx, http.MethodPost, "/cart/add-item", token, req)
	return newToken, err
}

// UpdateItem sets the quantity of an existing cart item by its key.
func (c *Client) UpdateItem(ctx context.Context, token model.CartToken, key string, quantity int) (model.CartToken, error) {
	if key == "" {
		return "", model.NewValidationError("key", "cart item key is required")
	}
	req := UpdateItemRequest{Quantity: quantity}
	_, newToken, err := c.do(ctx, http.MethodPut, "/cart/items/"+url.PathEscape(key), token, req)
	return newToken, err
}

// RemoveItem deletes a cart item by its key.
func (c *Client) RemoveItem(ctx context.Context, token model.CartToken, key string) (model.CartToken, error) {
	if key == "" {
		return "", model.NewValidationError("key", "cart item key is required")
	}
	_, newToken, err := c.do(ctx, http.MethodDelete, "/cart/items/"+url.PathEscape(key), token, nil)
	return newToken, err
}

// ClearItems deletes every item in the cart in one request.
func (c *Client) ClearItems(ctx context.Context, token model.CartToken) (model.CartToken, error) {
	_, newToken, err := c.do(ctx, http.MethodDelete, "/cart/items", token, nil)
	return newToken, err
}

// SelectShippingRate selects a fulfillment option for a package.
func (c *Client) SelectShippingRate(ctx context.Context, token model.CartToken, packageID int, rateID string) (model.CartToken, error) {
	if rateID == "" {
		return "", model.NewValidationError("rate_id", "rate id is required")
	}
	req := SelectShippingRateRequest{PackageID: packageID, RateID: rateID}
	_, newToken, err := c.do(ctx, http.MethodPost, "/cart/select-shipping-rate", token, req)
	return newToken, err
}

// Batch executes multiple cart operations in one POST /batch round-trip.
// The session token is injected into each sub-operation's headers; the
// batch endpoint does not propagate parent request headers.
//
// An HTTP-level failure returns an error. Sub-operation statuses are the
/// caller's to inspect: the sync engine treats any status >= 400 as a
// whole-batch failure and forces a resync.
func (c *Client) Batch(ctx context.Context, token model.CartToken, batch *BatchRequest) (*BatchResponse, model.CartToken, error) {
	if batch == nil || len(batch.Requests) == 0 {
		return nil, "", model.NewValidationError("batch", "at least one operation required")
	}

	if token != "" {
		batch.InjectHeaders(map[string]string{cartTokenHeader: token})
	}

	body, newToken, err := c.do(ctx, http.MethodPost, "/batch", token, batch)
	if err != nil {
		return nil, "", err
	}

	var resp BatchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, "", fmt.Errorf("parsing batch response: %w", err)
	}

	// A sub-operation may have rotated the session even when the parent
	// response header carried nothing.
	for _, result := range resp.Responses {
		if result.Headers.CartToken != "" {
			newToken = result.Headers.CartToken
		}
	}

	return &resp, newToken, nil
}

// Checkout submits the cart as an order.
func (c *Client) Checkout(ctx context.Context, token model.CartToken, req *CheckoutRequest) (*CheckoutResponse, error) {
	body, _, err := c.do(ctx, http.MethodPost, "/checkout", token, req)
	if err != nil {
		return nil, err
	}

	var resp CheckoutResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing checkout response: %w", err)
	}
	return &resp, nil
}

// Products lists the business's catalog.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	body, _, err := c.do(ctx, http.MethodGet, "/products?per_page=100", "", nil)
	if err != nil {
		return nil, err
	}

	var products []Product
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, fmt.Errorf("parsing products response: %w", err)
	}
	return products, nil
}

// do executes one Store API request and returns the response body and any
// rotated cart token. Non-2xx statuses become APIErrors.
func (c *Client) do(ctx context.Context, method, path string, token model.CartToken, reqBody interface{}) ([]byte, model.CartToken, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return nil, "", fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+storeAPIPath+path, bodyReader)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", model.NewUpstreamError("store", err)
	}
	defer resp.Body.Close()

	newToken := resp.Header.Get(cartTokenHeader)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, "", parseErrorResponse(resp.StatusCode, respBody, resp.Header)
	}

	return respBody, newToken, nil
}

// setHeaders sets standard headers for Store API requests.
func (c *Client) setHeaders(req *http.Request, token model.CartToken) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if token != "" {
		req.Header.Set(cartTokenHeader, token)
	}
}

// parseErrorResponse converts a Store API error to an APIError.
// 429s carry retry hints from the structured RateLimit header when present.
func parseErrorResponse(statusCode int, body []byte, header http.Header) error {
	var wireErr ErrorResponse
	json.Unmarshal(body, &wireErr) // best effort

	switch statusCode {
	case 404:
		return model.NewNotFoundError("resource")
	case 400:
		msg := wireErr.Message
		if msg == "" {
			msg = "invalid request"
		}
		return model.NewValidationError("request", msg)
	case 429:
		return model.NewRateLimitError("store", RetryAfter(header))
	default:
		return model.NewUpstreamStatusError("store", statusCode, wireErr.Code, wireErr.Message)
	}
}
