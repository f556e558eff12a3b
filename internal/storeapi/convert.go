package storeapi

import (
	"time"

	"storefront/internal/model"
)

// ToCart converts a wire cart response into the domain snapshot.
// All string money fields are parsed from minor units.
func ToCart(w *CartResponse) *model.Cart {
	cart := &model.Cart{
		Items: make([]model.LineItem, len(w.Items)),
		Totals: model.Totals{
			CurrencyCode:      w.Totals.CurrencyCode,
			CurrencySymbol:    w.Totals.CurrencySymbol,
			CurrencyMinorUnit: w.Totals.CurrencyMinorUnit,
			Subtotal:          model.ParseMinorUnits(w.Totals.TotalItems),
			Shipping:          model.ParseMinorUnits(w.Totals.TotalShipping),
			Tax:               model.ParseMinorUnits(w.Totals.TotalTax),
			Total:             model.ParseMinorUnits(w.Totals.TotalPrice),
		},
		FetchedAt: time.Now(),
	}

	for i, it := range w.Items {
		cart.Items[i] = model.LineItem{
			Key:       it.Key,
			ProductID: it.ID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: model.ParseMinorUnits(it.Prices.Price),
			LineTotal: model.ParseMinorUnits(it.Totals.LineTotal),
		}
	}

	for _, pkg := range w.ShippingRates {
		mp := model.ShippingPackage{
			PackageID: pkg.PackageID,
			Rates:     make([]model.ShippingRate, len(pkg.ShippingRates)),
		}
		for i, r := range pkg.ShippingRates {
			mp.Rates[i] = model.ShippingRate{
				RateID:   r.RateID,
				Name:     r.Name,
				Price:    model.ParseMinorUnits(r.Price),
				MethodID: r.MethodID,
				Selected: r.Selected,
			}
		}
		cart.Shipping = append(cart.Shipping, mp)
	}

	return cart
}

// ToMenuItems converts a product listing into menu entries.
func ToMenuItems(products []Product) []model.MenuItem {
	items := make([]model.MenuItem, len(products))
	for i, p := range products {
		var imageURL string
		if len(p.Images) > 0 {
			imageURL = p.Images[0].Src
		}
		items[i] = model.MenuItem{
			ProductID:   p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       model.ParseMinorUnits(p.Prices.Price),
			ImageURL:    imageURL,
			InStock:     p.IsInStock,
		}
	}
	return items
}

// ToAddress converts a saved address-book entry into the wire format.
func ToAddress(a *model.Address) *Address {
	if a == nil {
		return nil
	}
	return &Address{
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Address1:  a.Address1,
		Address2:  a.Address2,
		City:      a.City,
		Postcode:  a.Postcode,
		Country:   a.Country,
		Email:     a.Email,
		Phone:     a.Phone,
	}
}
