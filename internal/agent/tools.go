package agent

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"storefront/internal/basket"
	"storefront/internal/model"
	"storefront/internal/storefront"
)

// === Tool input/output types ===

// BusinessView is a directory entry as shown to agents.
type BusinessView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Cuisine string `json:"cuisine,omitempty"`
}

// MenuItemView is one orderable item with a formatted price.
type MenuItemView struct {
	ProductID   int    `json:"product_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price"`
	InStock     bool   `json:"in_stock"`
}

// BasketLineView is one basket line with formatted amounts.
type BasketLineView struct {
	ProductID int    `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"line_total"`
}

// BasketView is the basket as shown to agents.
type BasketView struct {
	BusinessID  string           `json:"business_id,omitempty"`
	Fulfillment string           `json:"fulfillment"`
	Items       []BasketLineView `json:"items"`
	Subtotal    string           `json:"subtotal"`
	Shipping    string           `json:"shipping"`
	Total       string           `json:"total"`
}

// OrderView is a past order as shown to agents.
type OrderView struct {
	OrderID    int    `json:"order_id"`
	BusinessID string `json:"business_id"`
	Mode       string `json:"mode"`
	Total      string `json:"total"`
	PlacedAt   string `json:"placed_at"`
	Items      int    `json:"items"`
}

type ListBusinessesInput struct{}

type ListBusinessesOutput struct {
	Businesses []BusinessView `json:"businesses"`
}

type GetMenuInput struct {
	BusinessID string `json:"business_id" jsonschema:"business to fetch the menu for,required"`
}

type GetMenuOutput struct {
	Items []MenuItemView `json:"items"`
}

type GetBasketInput struct{}

type AddItemInput struct {
	BusinessID string `json:"business_id" jsonschema:"business the item belongs to,required"`
	ProductID  int    `json:"product_id" jsonschema:"menu item product id,required"`
	Quantity   int    `json:"quantity" jsonschema:"quantity to add,required"`
}

type SetQuantityInput struct {
	ProductID int `json:"product_id" jsonschema:"basket line product id,required"`
	Quantity  int `json:"quantity" jsonschema:"absolute quantity, zero removes the line,required"`
}

type ClearBasketInput struct{}

type ResolveConflictInput struct {
	Decision string `json:"decision" jsonschema:"clear_and_add or keep_existing,required"`
}

type SetFulfillmentInput struct {
	Mode string `json:"mode" jsonschema:"delivery or collection,required"`
}

type ListAddressesInput struct{}

type ListAddressesOutput struct {
	Addresses []model.Address `json:"addresses"`
}

type SaveAddressInput struct {
	Address model.Address `json:"address" jsonschema:"address to save, keyed by label,required"`
}

type SaveAddressOutput struct {
	Saved bool `json:"saved"`
}

type DeleteAddressInput struct {
	Label string `json:"label" jsonschema:"label of the address to remove,required"`
}

type DeleteAddressOutput struct {
	Deleted bool `json:"deleted"`
}

type CheckoutInput struct {
	AddressLabel  string `json:"address_label" jsonschema:"label of a saved address,required"`
	CustomerNote  string `json:"customer_note,omitempty" jsonschema:"note passed to the business"`
	PaymentMethod string `json:"payment_method,omitempty" jsonschema:"payment method, defaults to pay on arrival"`
}

type CheckoutOutput struct {
	OrderID int    `json:"order_id"`
	Status  string `json:"status"`
	Total   string `json:"total"`
}

type ListOrdersInput struct{}

type ListOrdersOutput struct {
	Orders []OrderView `json:"orders"`
}

type ReorderInput struct {
	OrderID int `json:"order_id" jsonschema:"past order to replay,required"`
}

// === Tool handlers ===

func (s *Server) listBusinesses(ctx context.Context, req *mcp.CallToolRequest, in ListBusinessesInput) (*mcp.CallToolResult, *ListBusinessesOutput, error) {
	businesses := s.svc.Businesses()
	out := &ListBusinessesOutput{Businesses: make([]BusinessView, len(businesses))}
	for i, b := range businesses {
		out.Businesses[i] = BusinessView{ID: b.ID, Name: b.Name, Cuisine: b.Cuisine}
	}
	return nil, out, nil
}

func (s *Server) getMenu(ctx context.Context, req *mcp.CallToolRequest, in GetMenuInput) (*mcp.CallToolResult, *GetMenuOutput, error) {
	items, err := s.svc.Menu(ctx, in.BusinessID)
	if err != nil {
		return nil, nil, s.toolError(err)
	}

	business, err := s.svc.BusinessByID(in.BusinessID)
	if err != nil {
		return nil, nil, s.toolError(err)
	}
	symbol := currencySymbol(business.Currency)

	out := &GetMenuOutput{Items: make([]MenuItemView, len(items))}
	for i, it := range items {
		out.Items[i] = MenuItemView{
			ProductID:   it.ProductID,
			Name:        it.Name,
			Description: it.Description,
			Price:       model.FormatMinorUnits(it.Price, symbol, 2),
			InStock:     it.InStock,
		}
	}
	return nil, out, nil
}

func (s *Server) getBasket(ctx context.Context, req *mcp.CallToolRequest, in GetBasketInput) (*mcp.CallToolResult, *BasketView, error) {
	cart, err := s.svc.RefreshBasket(ctx)
	if err != nil {
		return nil, nil, s.toolError(err)
	}
	return nil, s.basketView(cart), nil
}

func (s *Server) addItem(ctx context.Context, req *mcp.CallToolRequest, in AddItemInput) (*mcp.CallToolResult, *BasketView, error) {
	cart, err := s.svc.AddItem(ctx, in.BusinessID, in.ProductID, in.Quantity)
	if err != nil {
		return nil, nil, s.toolError(err)
	}
	return nil, s.basketView(cart), nil
}

func (s *Server) setQuantity(ctx context.Context, req *mcp.CallToolRequest, in SetQuantityInput) (*mcp.CallToolResult, *BasketView, error) {
	cart, err := s.svc.SetQuantity(ctx, in.ProductID, in.Quantity)
	if err != nil {
		return nil, nil, s.toolError(err)
	}
	return nil, s.basketView(cart), nil
}

func (s *Server) clearBasket(ctx context.Context, req *mcp.CallToolRequest, in ClearBasketInput) (*mcp.CallToolResult, *BasketView, error) {
	cart, err := s.svc.ClearBasket(ctx)
	if err != nil {
		return nil, nil, s.toolError(err)
	}
	return nil, s.basketView(cart), nil
}

func (s *Server) resolveConflict(ctx context.Context, req *mcp.CallToolRequest, in ResolveConflictInput) (*mcp.CallToolResult, *BasketView, error) {
	cart, err := s.svc.ResolveConflict(ctx, basket.Resolution(in.Decision))
	if err != nil {
		return nil, nil, s.toolError(err)
	}
	return nil, s.basketView(cart), nil
}

func (s *Server) setFulfillment(ctx context.Context, req *mcp.CallToolRequest, in SetFulfillmentInput) (*mcp.CallToolResult, *BasketView, error) {
	cart, err := s.svc.SetDeliveryMode(ctx, model.DeliveryMode(in.Mode))
	if err != nil {
		return nil, nil, s.toolError(err)
	}
	return nil, s.basketView(cart), nil
}

func (s *Server) listAddresses(ctx context.Context, req *mcp.CallToolRequest, in ListAddressesInput) (*mcp.CallToolResult, *ListAddressesOutput, error) {
	addrs, err := s.svc.Addresses()
	if err != nil {
		return nil, nil, s.toolError(err)
	}
	return nil, &ListAddressesOutput{Addresses: addrs}, nil
}

func (s *Server) saveAddress(ctx context.Context, req *mcp.CallToolRequest, in SaveAddressInput) (*mcp.CallToolResult, *SaveAddressOutput, error) {
	if err := s.svc.SaveAddress(in.Address); err != nil {
		return nil, nil, s.toolError(err)
	}
	return nil, &SaveAddressOutput{Saved: true}, nil
}

func (s *Server) deleteAddress(ctx context.Context, req *mcp.CallToolRequest, in DeleteAddressInput) (*mcp.CallToolResult, *DeleteAddressOutput, error) {
	if err := s.svc.DeleteAddress(in.Label); err != nil {
		return nil, nil, s.toolError(err)
	}
	return nil, &DeleteAddressOutput{Deleted: true}, nil
}

func (s *Server) checkout(ctx context.Context, req *mcp.CallToolRequest, in CheckoutInput) (*mcp.CallToolResult, *CheckoutOutput, error) {
	order, err := s.svc.Checkout(ctx, storefront.CheckoutInput{
		AddressLabel:  in.AddressLabel,
		CustomerNote:  in.CustomerNote,
		PaymentMethod: in.PaymentMethod,
	})
	if err != nil {
		return nil, nil, s.toolError(err)
	}
	return nil, &CheckoutOutput{
		OrderID: order.OrderID,
		Status:  "placed",
		Total:   model.FormatMinorUnits(order.Total, currencySymbol(order.Currency), 2),
	}, nil
}

func (s *Server) listOrders(ctx context.Context, req *mcp.CallToolRequest, in ListOrdersInput) (*mcp.CallToolResult, *ListOrdersOutput, error) {
	orders, err := s.svc.Orders()
	if err != nil {
		return nil, nil, s.toolError(err)
	}

	out := &ListOrdersOutput{Orders: make([]OrderView, len(orders))}
	for i, o := range orders {
		out.Orders[i] = OrderView{
			OrderID:    o.OrderID,
			BusinessID: o.BusinessID,
			Mode:       string(o.Mode),
			Total:      model.FormatMinorUnits(o.Total, currencySymbol(o.Currency), 2),
			PlacedAt:   o.PlacedAt.Format("2006-01-02 15:04"),
			Items:      len(o.Items),
		}
	}
	return nil, out, nil
}

func (s *Server) reorder(ctx context.Context, req *mcp.CallToolRequest, in ReorderInput) (*mcp.CallToolResult, *BasketView, error) {
	cart, err := s.svc.Reorder(ctx, in.OrderID)
	if err != nil {
		return nil, nil, s.toolError(err)
	}
	return nil, s.basketView(cart), nil
}

// basketView renders the cart snapshot with formatted amounts.
func (s *Server) basketView(cart *model.Cart) *BasketView {
	symbol := cart.Totals.CurrencySymbol
	minor := cart.Totals.CurrencyMinorUnit
	if minor == 0 {
		minor = 2
	}

	view := &BasketView{
		BusinessID:  s.svc.BasketBusinessID(),
		Fulfillment: string(s.svc.DeliveryMode()),
		Items:       make([]BasketLineView, len(cart.Items)),
		Subtotal:    model.FormatMinorUnits(cart.Totals.Subtotal, symbol, minor),
		Shipping:    model.FormatMinorUnits(cart.Totals.Shipping, symbol, minor),
		Total:       model.FormatMinorUnits(cart.Totals.Total, symbol, minor),
	}
	for i, it := range cart.Items {
		view.Items[i] = BasketLineView{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			LineTotal: model.FormatMinorUnits(it.LineTotal, symbol, minor),
		}
	}
	return view
}

// currencySymbol maps common currency codes to their symbols, falling
// back to the code itself.
func currencySymbol(code string) string {
	switch code {
	case "GBP":
		return "£"
	case "EUR":
		return "€"
	case "USD":
		return "$"
	default:
		return code
	}
}
