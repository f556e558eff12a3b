// Package agent exposes the storefront to AI agents over MCP. Each tool
// wraps one storefront operation; all basket rules (origin guard, single
// in-flight mutation, canonical re-fetch) apply to agent traffic exactly
// as they do to the CLI.
package agent

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"storefront/internal/model"
	"storefront/internal/storefront"
)

// Server bridges MCP tool calls to the storefront coordinator.
type Server struct {
	svc    *storefront.Service
	logger *slog.Logger
}

// New creates an agent gateway over the given storefront.
func New(svc *storefront.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, logger: logger}
}

// MCPServer creates an MCP server with all storefront tools registered.
func (s *Server) MCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "storefront",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Food ordering storefront. Browse businesses and menus, " +
				"build a basket (one business at a time), choose delivery or collection, " +
				"and place orders. If add_item reports an origin conflict, ask the user " +
				"and call resolve_conflict.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_businesses",
		Description: "List the businesses available to order from.",
	}, s.listBusinesses)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_menu",
		Description: "Get a business's menu of orderable items.",
	}, s.getMenu)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_basket",
		Description: "Get the current basket: items, totals, fulfillment mode, and origin business.",
	}, s.getBasket)

	mcp.AddTool(server, &mcp.Tool{
		Name: "add_item",
		Description: "Add a quantity of a menu item to the basket. Fails with ORIGIN_CONFLICT " +
			"if the basket holds items from another business.",
	}, s.addItem)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_quantity",
		Description: "Set a basket line to an absolute quantity. Zero removes the line.",
	}, s.setQuantity)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_basket",
		Description: "Remove every item from the basket.",
	}, s.clearBasket)

	mcp.AddTool(server, &mcp.Tool{
		Name: "resolve_conflict",
		Description: "Resolve a blocked cross-business add: clear_and_add switches business " +
			"and adds the pending item, keep_existing discards it.",
	}, s.resolveConflict)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_fulfillment",
		Description: "Choose delivery or collection for the order.",
	}, s.setFulfillment)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_addresses",
		Description: "List saved delivery addresses.",
	}, s.listAddresses)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "save_address",
		Description: "Save or replace a delivery address by label.",
	}, s.saveAddress)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_address",
		Description: "Remove a saved delivery address by label.",
	}, s.deleteAddress)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "checkout",
		Description: "Place the basket as an order using a saved address.",
	}, s.checkout)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_orders",
		Description: "List past orders, newest first.",
	}, s.listOrders)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "reorder",
		Description: "Replace the basket with the items from a past order.",
	}, s.reorder)

	return server
}

// HTTPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (s *Server) HTTPHandler() http.Handler {
	server := s.MCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// toolError converts storefront errors to agent-friendly errors. Origin
// conflicts keep their code so the agent knows to prompt the user;
// anything without an APIError shape is logged and masked.
func (s *Server) toolError(err error) error {
	if errors.Is(err, model.ErrSyncBusy) {
		return fmt.Errorf("BASKET_BUSY: another basket update is in progress, retry shortly")
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	s.logger.Error("agent tool internal error", slog.String("error", err.Error()))
	return fmt.Errorf("internal error")
}
