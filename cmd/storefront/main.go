// storefront is a CLI for the food-ordering client. Each command
// performs a single operation, making it composable for scripts.
//
// Commands:
//
//	storefront businesses
//	storefront menu -business ID
//	storefront basket
//	storefront add -business ID -product ID [-qty N]
//	storefront set -product ID -qty N
//	storefront clear
//	storefront resolve -decision clear_and_add|keep_existing
//	storefront mode -set delivery|collection
//	storefront addresses
//	storefront save-address -label NAME [options]
//	storefront delete-address -label NAME
//	storefront checkout -address LABEL [-note TEXT]
//	storefront orders
//	storefront reorder -id N
//
// Configuration comes from the same sources as agentd: CONFIG_FILE or
// the BUSINESSES / STATE_DIR environment variables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"storefront/internal/basket"
	"storefront/internal/catalog"
	"storefront/internal/config"
	"storefront/internal/localstore"
	"storefront/internal/model"
	"storefront/internal/storefront"
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		colorReset, colorRed, colorGreen = "", "", ""
		colorYellow, colorCyan, colorGray, colorBold = "", "", "", ""
	}
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "businesses":
		runBusinesses(args)
	case "menu":
		runMenu(args)
	case "basket":
		runBasket(args)
	case "add":
		runAdd(args)
	case "set":
		runSet(args)
	case "clear":
		runClear(args)
	case "resolve":
		runResolve(args)
	case "mode":
		runMode(args)
	case "addresses":
		runAddresses(args)
	case "save-address":
		runSaveAddress(args)
	case "delete-address":
		runDeleteAddress(args)
	case "checkout":
		runCheckout(args)
	case "orders":
		runOrders(args)
	case "reorder":
		runReorder(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `storefront - food ordering client

Usage:
  storefront <command> [options]

Commands:
  businesses    List businesses to order from
  menu          Show a business's menu
  basket        Show the current basket
  add           Add a menu item to the basket
  set           Set a basket line's quantity (0 removes)
  clear         Empty the basket
  resolve       Resolve a cross-business conflict
  mode          Show or set delivery/collection
  addresses     List saved addresses
  save-address  Save a delivery address
  delete-address  Remove a saved address
  checkout      Place the order
  orders        List past orders
  reorder       Replay a past order into the basket

Examples:
  storefront menu -business pizza-palace
  storefront add -business pizza-palace -product 42 -qty 2
  storefront mode -set collection
  storefront checkout -address home

Run 'storefront <command> -h' for command-specific options.
`)
}

// loadService builds the coordinator from configuration and restores
// persisted basket state.
func loadService(ctx context.Context) *storefront.Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if os.Getenv("LOG_LEVEL") == "debug" {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		fatal("Loading config: %v", err)
	}
	kv, err := localstore.NewFileStore(cfg.StateDir)
	if err != nil {
		fatal("Opening state store: %v", err)
	}

	svc := storefront.New(catalog.New(cfg.Businesses, nil, logger), kv, logger)
	if err := svc.Restore(ctx); err != nil {
		fatal("Restoring state: %v", err)
	}
	return svc
}

func runBusinesses(args []string) {
	fs := flag.NewFlagSet("businesses", flag.ExitOnError)
	fs.Parse(args)

	svc := loadService(context.Background())
	for _, b := range svc.Businesses() {
		cuisine := ""
		if b.Cuisine != "" {
			cuisine = fmt.Sprintf(" %s(%s)%s", colorGray, b.Cuisine, colorReset)
		}
		fmt.Printf("%s%s%s  %s%s\n", colorBold, b.ID, colorReset, b.Name, cuisine)
	}
}

func runMenu(args []string) {
	fs := flag.NewFlagSet("menu", flag.ExitOnError)
	businessID := fs.String("business", "", "Business ID (required)")
	fs.Parse(args)
	if *businessID == "" {
		fatal("-business is required")
	}

	ctx := context.Background()
	svc := loadService(ctx)

	items, err := svc.Menu(ctx, *businessID)
	if err != nil {
		fatal("Fetching menu: %v", err)
	}

	business, _ := svc.BusinessByID(*businessID)
	for _, it := range items {
		stock := ""
		if !it.InStock {
			stock = fmt.Sprintf(" %s[out of stock]%s", colorRed, colorReset)
		}
		fmt.Printf("%s%4d%s  %-32s %s%s%s%s\n",
			colorCyan, it.ProductID, colorReset,
			it.Name,
			colorGreen, money(it.Price, business.Currency), colorReset,
			stock,
		)
	}
}

func runBasket(args []string) {
	fs := flag.NewFlagSet("basket", flag.ExitOnError)
	refresh := fs.Bool("refresh", true, "Re-fetch basket from the server")
	fs.Parse(args)

	ctx := context.Background()
	svc := loadService(ctx)

	cart := svc.Basket()
	if *refresh {
		var err error
		if cart, err = svc.RefreshBasket(ctx); err != nil {
			fatal("Refreshing basket: %v", err)
		}
	}
	printBasket(svc, cart)
}

func runAdd(args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	businessID := fs.String("business", "", "Business ID (required)")
	productID := fs.Int("product", 0, "Product ID (required)")
	qty := fs.Int("qty", 1, "Quantity to add")
	fs.Parse(args)
	if *businessID == "" || *productID == 0 {
		fatal("-business and -product are required")
	}

	ctx := context.Background()
	svc := loadService(ctx)

	cart, err := svc.AddItem(ctx, *businessID, *productID, *qty)
	if errors.Is(err, model.ErrOriginConflict) {
		fmt.Fprintf(os.Stderr, "%sConflict:%s %v\n", colorYellow, colorReset, err)
		fmt.Fprintf(os.Stderr, "Run 'storefront resolve -decision clear_and_add' to switch business,\n")
		fmt.Fprintf(os.Stderr, "or  'storefront resolve -decision keep_existing' to keep the basket.\n")
		os.Exit(2)
	}
	if err != nil {
		fatal("Adding item: %v", err)
	}
	printBasket(svc, cart)
}

func runSet(args []string) {
	fs := flag.NewFlagSet("set", flag.ExitOnError)
	productID := fs.Int("product", 0, "Product ID (required)")
	qty := fs.Int("qty", -1, "Absolute quantity, 0 removes (required)")
	fs.Parse(args)
	if *productID == 0 || *qty < 0 {
		fatal("-product and -qty are required")
	}

	ctx := context.Background()
	svc := loadService(ctx)

	cart, err := svc.SetQuantity(ctx, *productID, *qty)
	if err != nil {
		fatal("Updating basket: %v", err)
	}
	printBasket(svc, cart)
}

func runClear(args []string) {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	fs.Parse(args)

	ctx := context.Background()
	svc := loadService(ctx)
	if _, err := svc.ClearBasket(ctx); err != nil {
		fatal("Clearing basket: %v", err)
	}
	fmt.Printf("%sBasket cleared.%s\n", colorGreen, colorReset)
}

func runResolve(args []string) {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	decision := fs.String("decision", "", "clear_and_add or keep_existing (required)")
	fs.Parse(args)
	if *decision == "" {
		fatal("-decision is required")
	}

	ctx := context.Background()
	svc := loadService(ctx)

	cart, err := svc.ResolveConflict(ctx, basket.Resolution(*decision))
	if err != nil {
		fatal("Resolving conflict: %v", err)
	}
	printBasket(svc, cart)
}

func runMode(args []string) {
	fs := flag.NewFlagSet("mode", flag.ExitOnError)
	set := fs.String("set", "", "Set mode: delivery or collection")
	fs.Parse(args)

	ctx := context.Background()
	svc := loadService(ctx)

	if *set == "" {
		fmt.Printf("Fulfillment: %s%s%s\n", colorBold, svc.DeliveryMode(), colorReset)
		return
	}

	cart, err := svc.SetDeliveryMode(ctx, model.DeliveryMode(*set))
	if err != nil {
		fatal("Setting mode: %v", err)
	}
	fmt.Printf("Fulfillment: %s%s%s\n", colorBold, svc.DeliveryMode(), colorReset)
	printBasket(svc, cart)
}

func runAddresses(args []string) {
	fs := flag.NewFlagSet("addresses", flag.ExitOnError)
	fs.Parse(args)

	svc := loadService(context.Background())
	addrs, err := svc.Addresses()
	if err != nil {
		fatal("Loading addresses: %v", err)
	}
	for _, a := range addrs {
		fmt.Printf("%s%-12s%s %s, %s, %s %s\n",
			colorBold, a.Label, colorReset, a.Address1, a.City, a.Postcode, a.Country)
	}
}

func runSaveAddress(args []string) {
	fs := flag.NewFlagSet("save-address", flag.ExitOnError)
	var a model.Address
	fs.StringVar(&a.Label, "label", "", "Address label, e.g. home (required)")
	fs.StringVar(&a.FirstName, "first", "", "First name")
	fs.StringVar(&a.LastName, "last", "", "Last name")
	fs.StringVar(&a.Address1, "street", "", "Street address (required)")
	fs.StringVar(&a.Address2, "street2", "", "Second address line")
	fs.StringVar(&a.City, "city", "", "City (required)")
	fs.StringVar(&a.Postcode, "postcode", "", "Postcode (required)")
	fs.StringVar(&a.Country, "country", "GB", "Country code")
	fs.StringVar(&a.Phone, "phone", "", "Phone number")
	fs.StringVar(&a.Email, "email", "", "Email address")
	fs.Parse(args)

	svc := loadService(context.Background())
	if err := svc.SaveAddress(a); err != nil {
		fatal("Saving address: %v", err)
	}
	fmt.Printf("%sSaved address %q.%s\n", colorGreen, a.Label, colorReset)
}

func runDeleteAddress(args []string) {
	fs := flag.NewFlagSet("delete-address", flag.ExitOnError)
	label := fs.String("label", "", "Address label to remove (required)")
	fs.Parse(args)
	if *label == "" {
		fatal("-label is required")
	}

	svc := loadService(context.Background())
	if err := svc.DeleteAddress(*label); err != nil {
		fatal("Deleting address: %v", err)
	}
	fmt.Printf("%sDeleted address %q.%s\n", colorGreen, *label, colorReset)
}

func runCheckout(args []string) {
	fs := flag.NewFlagSet("checkout", flag.ExitOnError)
	address := fs.String("address", "", "Saved address label (required)")
	note := fs.String("note", "", "Note for the business")
	payment := fs.String("payment", "", "Payment method (default: pay on arrival)")
	fs.Parse(args)
	if *address == "" {
		fatal("-address is required")
	}

	ctx := context.Background()
	svc := loadService(ctx)

	order, err := svc.Checkout(ctx, storefront.CheckoutInput{
		AddressLabel:  *address,
		CustomerNote:  *note,
		PaymentMethod: *payment,
	})
	if err != nil {
		fatal("Checkout: %v", err)
	}
	fmt.Printf("%sOrder #%d placed%s with %s (%s), total %s\n",
		colorGreen, order.OrderID, colorReset,
		order.BusinessID, order.Mode, money(order.Total, order.Currency))
}

func runOrders(args []string) {
	fs := flag.NewFlagSet("orders", flag.ExitOnError)
	fs.Parse(args)

	svc := loadService(context.Background())
	orders, err := svc.Orders()
	if err != nil {
		fatal("Loading orders: %v", err)
	}
	for _, o := range orders {
		fmt.Printf("%s#%-6d%s %s  %-16s %-10s %s\n",
			colorBold, o.OrderID, colorReset,
			o.PlacedAt.Format("2006-01-02 15:04"),
			o.BusinessID, o.Mode, money(o.Total, o.Currency))
	}
}

func runReorder(args []string) {
	fs := flag.NewFlagSet("reorder", flag.ExitOnError)
	orderID := fs.Int("id", 0, "Order ID to replay (required)")
	fs.Parse(args)
	if *orderID == 0 {
		fatal("-id is required")
	}

	ctx := context.Background()
	svc := loadService(ctx)

	cart, err := svc.Reorder(ctx, *orderID)
	if err != nil {
		fatal("Reordering: %v", err)
	}
	printBasket(svc, cart)
}

// printBasket renders the basket snapshot.
func printBasket(svc *storefront.Service, cart *model.Cart) {
	if cart.IsEmpty() {
		fmt.Printf("%sBasket is empty.%s\n", colorGray, colorReset)
		return
	}

	if origin := svc.BasketBusinessID(); origin != "" {
		fmt.Printf("%sBasket (%s, %s):%s\n", colorBold, origin, svc.DeliveryMode(), colorReset)
	}
	symbol := cart.Totals.CurrencySymbol
	minor := cart.Totals.CurrencyMinorUnit
	for _, it := range cart.Items {
		fmt.Printf("  %dx %-32s %s\n", it.Quantity, it.Name,
			model.FormatMinorUnits(it.LineTotal, symbol, minor))
	}
	fmt.Printf("  %sSubtotal %s  Delivery %s  Total %s%s\n",
		colorGray,
		model.FormatMinorUnits(cart.Totals.Subtotal, symbol, minor),
		model.FormatMinorUnits(cart.Totals.Shipping, symbol, minor),
		model.FormatMinorUnits(cart.Totals.Total, symbol, minor),
		colorReset,
	)
}

// fatal prints an error and exits non-zero.
func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%sError:%s %s\n", colorRed, colorReset, fmt.Sprintf(format, args...))
	os.Exit(1)
}

// money formats a minor-unit amount using the currency code's symbol.
func money(amount int64, currency string) string {
	symbol := currency
	switch currency {
	case "GBP":
		symbol = "£"
	case "EUR":
		symbol = "€"
	case "USD":
		symbol = "$"
	}
	return model.FormatMinorUnits(amount, symbol, 2)
}
