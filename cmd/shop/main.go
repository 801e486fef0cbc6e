package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/greeneye-shop/internal/cart"
	"github.com/joao-fontenele/greeneye-shop/internal/checkout"
	"github.com/joao-fontenele/greeneye-shop/internal/config"
	"github.com/joao-fontenele/greeneye-shop/internal/credentials"
	"github.com/joao-fontenele/greeneye-shop/internal/domain"
	"github.com/joao-fontenele/greeneye-shop/internal/drawer"
	"github.com/joao-fontenele/greeneye-shop/internal/gateway"
	"github.com/joao-fontenele/greeneye-shop/internal/messaging"
	"github.com/joao-fontenele/greeneye-shop/internal/notify"
	"github.com/joao-fontenele/greeneye-shop/internal/payment"
	"github.com/joao-fontenele/greeneye-shop/internal/telemetry"
)

const usage = `usage: shop [flags] <command> [args]

commands:
  plants                  list the catalog
  cart                    show the cart
  add <plantId> [qty]     add a plant to the cart
  qty <itemId> <n>        set a line's quantity
  inc <itemId>            increase a line by one
  dec <itemId>            decrease a line by one
  rm <itemId>             remove a line
  checkout [cod|online]   place an order for the cart
  orders                  list your orders
`

var errUsage = errors.New("invalid usage")

func main() {
	_ = godotenv.Load()

	verbose := flag.Bool("v", false, "log debug output to stderr")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	cfg := config.Load()

	if cfg.APIBaseURL == "" {
		logger.Error("API_BASE_URL environment variable is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, telemetry.Resource("greeneye-shop", "0.1.0"))
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	a := newApp(cfg, logger, os.Stdin, os.Stdout)
	defer a.close()

	if err := a.run(ctx, flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

type app struct {
	client    *gateway.Client
	store     *cart.Store
	drawer    *drawer.Drawer
	session   *checkout.Session
	notices   *notify.Queue
	publisher *messaging.Publisher
	out       io.Writer
	logger    *slog.Logger
}

func newApp(cfg config.Config, logger *slog.Logger, in io.Reader, out io.Writer) *app {
	var creds credentials.Provider = credentials.Static(cfg.AuthToken)
	if cfg.AuthTokenFile != "" {
		creds = credentials.NewFile(cfg.AuthTokenFile, logger)
	}
	creds = credentials.NewExpiring(creds)

	httpClient := &http.Client{
		Timeout:   cfg.HTTPTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	var opts []gateway.Option
	if cfg.BreakerMaxFailures > 0 {
		opts = append(opts, gateway.WithBreaker(uint32(cfg.BreakerMaxFailures), cfg.BreakerCooldown))
	}
	client := gateway.NewClient(cfg.APIBaseURL, httpClient, creds, logger, opts...)

	store := cart.NewStore(client, creds, logger)
	a := &app{
		client:  client,
		store:   store,
		drawer:  drawer.New(store),
		notices: notify.NewQueue(0, logger),
		out:     out,
		logger:  logger,
	}

	sessionOpts := []checkout.Option{
		checkout.WithProfileSource(client),
		checkout.WithCredentials(creds),
		checkout.WithPaymentSheet(payment.NewPromptSheet(in, out), cfg.PaymentKeyID),
	}
	if len(cfg.KafkaBrokers) > 0 {
		a.publisher = messaging.NewPublisher(cfg.KafkaBrokers, cfg.CheckoutEventsTopic, logger)
		sessionOpts = append(sessionOpts, checkout.WithEventPublisher(a.publisher))
	}
	a.session = checkout.NewSession(client, store, logger, sessionOpts...)
	return a
}

func (a *app) close() {
	a.store.Detach()
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error("failed to close publisher", "error", err)
		}
	}
}

// run executes one command. Failures are reported through the notification
// queue and flushed to out before returning.
func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	err := a.dispatch(ctx, args[0], args[1:])
	var reported errReported
	if err != nil && !errors.Is(err, errUsage) && !errors.As(err, &reported) {
		a.notices.NotifyError(err)
	}
	a.flushNotices()
	return err
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "plants":
		return a.plants(ctx)
	case "cart":
		a.store.Refresh(ctx)
		a.drawer.Open()
		return a.renderDrawer()
	case "add":
		if len(args) < 1 || len(args) > 2 {
			return errUsage
		}
		qty := 1
		if len(args) == 2 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return errUsage
			}
			qty = n
		}
		if err := a.store.AddItem(ctx, args[0], qty); err != nil {
			return err
		}
		a.notices.Notify(notify.Notification{Kind: notify.KindSuccess, Message: "Added to cart"})
		return a.renderDrawer()
	case "qty":
		if len(args) != 2 {
			return errUsage
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return errUsage
		}
		return a.lineGesture(ctx, func() error { return a.store.ChangeQuantity(ctx, args[0], n) })
	case "inc", "dec", "rm":
		if len(args) != 1 {
			return errUsage
		}
		gesture := map[string]func(context.Context, string) error{
			"inc": a.drawer.Increment,
			"dec": a.drawer.Decrement,
			"rm":  a.drawer.Remove,
		}[cmd]
		return a.lineGesture(ctx, func() error { return gesture(ctx, args[0]) })
	case "checkout":
		method := domain.PaymentMethodCashOnDelivery
		if len(args) == 1 {
			switch strings.ToLower(args[0]) {
			case "cod":
			case "online":
				method = domain.PaymentMethodOnlineGateway
			default:
				return errUsage
			}
		} else if len(args) > 1 {
			return errUsage
		}
		return a.checkout(ctx, method)
	case "orders":
		return a.orders(ctx)
	default:
		return errUsage
	}
}

func (a *app) lineGesture(ctx context.Context, gesture func() error) error {
	a.store.Refresh(ctx)
	a.drawer.Open()
	if err := gesture(); err != nil {
		return err
	}
	return a.renderDrawer()
}

func (a *app) renderDrawer() error {
	if !a.drawer.IsOpen() {
		return nil
	}
	return drawer.Render(a.out, a.drawer.View())
}

func (a *app) plants(ctx context.Context) error {
	plants, err := a.client.ListPlants(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE")
	for _, p := range plants {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, drawer.FormatPrice(p.Price))
	}
	return tw.Flush()
}

func (a *app) checkout(ctx context.Context, method domain.PaymentMethod) error {
	a.store.Refresh(ctx)

	var err error
	a.drawer.Checkout(func() {
		a.session.Prefill(ctx)
		if err = a.session.SetField(domain.FieldPaymentMethod, string(method)); err != nil {
			return
		}
		err = a.session.Submit(ctx)
	})

	result := a.session.Result()
	if err != nil {
		if result.OrderID != "" {
			fmt.Fprintf(a.out, "Order %s was created but not paid.\n", result.OrderID)
		}
		if result.Message != "" && !errors.Is(err, domain.ErrAuthenticationRequired) {
			a.notices.Notify(notify.Notification{Kind: notify.KindError, Message: result.Message})
			return fmt.Errorf("checkout: %w", errReported{err})
		}
		return err
	}

	a.notices.Notify(notify.Notification{Kind: notify.KindSuccess, Message: result.Message})
	fmt.Fprintf(a.out, "Order %s\n", result.OrderID)
	a.store.Refresh(ctx)
	return a.orders(ctx)
}

// errReported marks an error whose notification was already queued.
type errReported struct{ err error }

func (e errReported) Error() string { return e.err.Error() }
func (e errReported) Unwrap() error { return e.err }

func (a *app) orders(ctx context.Context) error {
	orders, err := a.client.ListMyOrders(ctx)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Fprintln(a.out, "No orders yet")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tPLACED\tPAYMENT\tTOTAL\tPAID\tDELIVERED")
	for _, o := range orders {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%t\n",
			o.ID, o.CreatedAt.Format("2006-01-02 15:04"), o.PaymentMethod, drawer.FormatPrice(o.TotalPrice), o.IsPaid, o.IsDelivered)
	}
	return tw.Flush()
}

func (a *app) flushNotices() {
	for _, n := range a.notices.Pending() {
		prefix := ""
		switch n.Kind {
		case notify.KindError:
			prefix = "error: "
		case notify.KindRedirectLogin:
			prefix = "login required: "
		}
		fmt.Fprintf(a.out, "%s%s\n", prefix, n.Message)
		a.notices.Dismiss(n.ID)
	}
}
