// Package model defines the storefront domain types shared across packages:
// businesses, menus, the cart snapshot, addresses, and order history entries.
package model

import "time"

// CartToken is the opaque session identifier issued by the commerce backend.
// It is created server-side on the first mutating cart request, rotated via
// the Cart-Token response header, and cleared on checkout completion or an
// explicit cart clear.
type CartToken = string

// DeliveryMode selects how an order is fulfilled.
type DeliveryMode string

const (
	ModeDelivery   DeliveryMode = "delivery"
	ModeCollection DeliveryMode = "collection"
)

// Valid reports whether m is one of the known fulfillment modes.
func (m DeliveryMode) Valid() bool {
	return m == ModeDelivery || m == ModeCollection
}

// Business describes one merchant the storefront can order from.
// BaseURL is the root of the business's Store-API-compatible endpoint;
// all cart and catalog paths are resolved relative to it.
type Business struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	BaseURL  string `json:"base_url"`
	Cuisine  string `json:"cuisine,omitempty"`
	Currency string `json:"currency,omitempty"`

	// StoreAPIVersion is the Store API schema version the business
	// advertises. Checked against the client's minimum before any
	// basket traffic is sent.
	StoreAPIVersion string `json:"store_api_version,omitempty"`
}

// MenuItem is one orderable product on a business's menu.
// Price is in minor currency units.
type MenuItem struct {
	ProductID   int    `json:"product_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       int64  `json:"price"`
	ImageURL    string `json:"image_url,omitempty"`
	InStock     bool   `json:"in_stock"`
}

// LineItem is one product/quantity pair within a Cart.
// Key is the server-assigned cart item key used for update/delete
// addressing; it is distinct from the product id.
type LineItem struct {
	Key       string `json:"key"`
	ProductID int    `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"` // minor units
	LineTotal int64  `json:"line_total"` // minor units, after discounts
}

// Totals holds the server-computed cart totals in minor currency units.
type Totals struct {
	CurrencyCode      string `json:"currency_code"`
	CurrencySymbol    string `json:"currency_symbol"`
	CurrencyMinorUnit int    `json:"currency_minor_unit"`
	Subtotal          int64  `json:"subtotal"`
	Shipping          int64  `json:"shipping"`
	Tax               int64  `json:"tax"`
	Total             int64  `json:"total"`
}

// ShippingRate is one fulfillment option offered for the cart.
type ShippingRate struct {
	RateID   string `json:"rate_id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"` // minor units
	MethodID string `json:"method_id"`
	Selected bool   `json:"selected"`
}

// ShippingPackage groups the rates offered for one shipment.
// Single-store carts carry exactly one package in practice, but the wire
// format allows several.
type ShippingPackage struct {
	PackageID int            `json:"package_id"`
	Rates     []ShippingRate `json:"rates"`
}

// Cart is a snapshot of server cart state. It is immutable once built:
// the sync engine replaces the whole value on every successful fetch and
// never patches it in place.
type Cart struct {
	Items     []LineItem        `json:"items"`
	Totals    Totals            `json:"totals"`
	Shipping  []ShippingPackage `json:"shipping,omitempty"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// ItemCount returns the total quantity across all line items.
func (c *Cart) ItemCount() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// IsEmpty reports whether the cart holds no items.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// FindItem returns the line item for the given product id, if present.
func (c *Cart) FindItem(productID int) (LineItem, bool) {
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return LineItem{}, false
}

// SelectedRate returns the currently selected shipping rate, if any.
func (c *Cart) SelectedRate() (ShippingRate, bool) {
	for _, pkg := range c.Shipping {
		for _, r := range pkg.Rates {
			if r.Selected {
				return r, true
			}
		}
	}
	return ShippingRate{}, false
}

// RateForMode returns the first available rate matching the fulfillment
// mode: collection maps to the local_pickup shipping method, delivery to
// anything else. The package id is needed for rate selection requests.
func (c *Cart) RateForMode(mode DeliveryMode) (ShippingRate, int, bool) {
	for _, pkg := range c.Shipping {
		for _, r := range pkg.Rates {
			pickup := r.MethodID == "local_pickup"
			if (mode == ModeCollection) == pickup {
				return r, pkg.PackageID, true
			}
		}
	}
	return ShippingRate{}, 0, false
}

// Address is one saved delivery address in the guest address book.
type Address struct {
	Label     string `json:"label"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2,omitempty"`
	City      string `json:"city"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Order records a completed checkout in the local order history.
// Items are kept so a past order can be replayed into a fresh basket.
type Order struct {
	OrderID    int          `json:"order_id"`
	OrderKey   string       `json:"order_key,omitempty"`
	BusinessID string       `json:"business_id"`
	Mode       DeliveryMode `json:"mode"`
	Total      int64        `json:"total"`
	Currency   string       `json:"currency"`
	Items      []LineItem   `json:"items"`
	PlacedAt   time.Time    `json:"placed_at"`
}
