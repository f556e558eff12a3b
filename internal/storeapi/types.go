// Package storeapi implements the HTTP client for WooCommerce
// Store-API-compatible backends. All wire types, transforms, and request
// plumbing for one business's endpoint live here.
package storeapi

import "encoding/json"

// === Cart wire types ===

// CartResponse is the Store API cart representation.
// Every cart-scoped endpoint returns this shape on success.
type CartResponse struct {
	Items         []CartItem    `json:"items"`
	Totals        CartTotals    `json:"totals"`
	ShippingRates []ShippingPkg `json:"shipping_rates,omitempty"`
	NeedsShipping bool          `json:"needs_shipping"`
	Errors        []CartError   `json:"errors,omitempty"`
}

// CartError represents an error embedded in cart state.
type CartError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CartItem is an item in the cart response.
// Key is the server-assigned cart item key, distinct from the product ID.
type CartItem struct {
	Key      string     `json:"key"`
	ID       int        `json:"id"`
	Name     string     `json:"name"`
	Quantity int        `json:"quantity"`
	Prices   ItemPrices `json:"prices"`
	Totals   ItemTotals `json:"totals"`
	Images   []Image    `json:"images,omitempty"`
}

// ItemPrices contains unit price info for a cart item.
// All values are minor units as strings.
type ItemPrices struct {
	Price        string `json:"price"`
	RegularPrice string `json:"regular_price"`
	SalePrice    string `json:"sale_price"`
}

// ItemTotals contains line totals for a cart item.
type ItemTotals struct {
	LineSubtotal    string `json:"line_subtotal"`
	LineSubtotalTax string `json:"line_subtotal_tax"`
	LineTotal       string `json:"line_total"` // after discounts
	LineTotalTax    string `json:"line_total_tax"`
}

// CartTotals contains all pricing totals.
// All string fields are minor units (e.g. "1250" = £12.50).
type CartTotals struct {
	CurrencyCode      string `json:"currency_code"`
	CurrencySymbol    string `json:"currency_symbol"`
	CurrencyMinorUnit int    `json:"currency_minor_unit"`
	TotalItems        string `json:"total_items"`
	TotalShipping     string `json:"total_shipping"`
	TotalTax          string `json:"total_tax"`
	TotalPrice        string `json:"total_price"`
}

// Image is a product image reference.
type Image struct {
	ID  int    `json:"id"`
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// ShippingPkg is a shipping package with its available rates.
type ShippingPkg struct {
	PackageID     int            `json:"package_id"`
	Name          string         `json:"name"`
	ShippingRates []ShippingRate `json:"shipping_rates"`
}

// ShippingRate is a single fulfillment option.
type ShippingRate struct {
	RateID   string `json:"rate_id"`
	Name     string `json:"name"`
	Price    string `json:"price"` // minor units as string
	MethodID string `json:"method_id"`
	Selected bool   `json:"selected"`
}

// === Request types ===

// AddItemRequest adds a product to the cart.
// The Store API accepts the product id as a string.
type AddItemRequest struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

// UpdateItemRequest changes the quantity of an existing cart item.
type UpdateItemRequest struct {
	Quantity int `json:"quantity"`
}

// SelectShippingRateRequest selects a fulfillment option.
type SelectShippingRateRequest struct {
	PackageID int    `json:"package_id"`
	RateID    string `json:"rate_id"`
}

// CheckoutRequest submits the cart as an order.
type CheckoutRequest struct {
	BillingAddress  *Address `json:"billing_address,omitempty"`
	ShippingAddress *Address `json:"shipping_address,omitempty"`
	CustomerNote    string   `json:"customer_note,omitempty"`
	PaymentMethod   string   `json:"payment_method,omitempty"`
}

// CheckoutResponse is returned from POST /checkout.
type CheckoutResponse struct {
	OrderID  int        `json:"order_id"`
	OrderKey string     `json:"order_key"`
	Status   string     `json:"status"`
	Totals   CartTotals `json:"totals"`
}

// Address is a Store API billing or shipping address.
type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2"`
	City      string `json:"city"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// === Catalog wire types ===

// Product is a Store API product listing entry.
type Product struct {
	ID          int           `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"short_description"`
	Prices      ProductPrices `json:"prices"`
	Images      []Image       `json:"images,omitempty"`
	IsInStock   bool          `json:"is_in_stock"`
}

// ProductPrices contains product pricing in minor units as strings.
type ProductPrices struct {
	CurrencyCode      string `json:"currency_code"`
	CurrencyMinorUnit int    `json:"currency_minor_unit"`
	Price             string `json:"price"`
}

// === Error wire type ===

// ErrorResponse represents a Store API error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Status int `json:"status"`
	} `json:"data"`
}

// === Batch types ===

// BatchRequest is the payload for POST /batch.
// Combines multiple cart operations into a single round-trip.
type BatchRequest struct {
	Requests []BatchOperation `json:"requests"`
}

// BatchOperation is a single operation within a batch.
// The Headers field allows per-operation session headers, which the
// batch endpoint does not inherit from the parent request.
type BatchOperation struct {
	Path    string            `json:"path"`
	Method  string            `json:"method"`
	Body    json.RawMessage   `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// BatchResponse is the response from POST /batch.
type BatchResponse struct {
	Responses []BatchResult `json:"responses"`
}

// BatchResult is a single result within a batch response.
type BatchResult struct {
	Status  int             `json:"status"`
	Body    json.RawMessage `json:"body"`
	Headers BatchHeaders    `json:"headers"`
}

// BatchHeaders carries response headers from a batch sub-operation.
type BatchHeaders struct {
	CartToken string `json:"Cart-Token"`
}
