// Package checkout drives a single checkout attempt from the address form to
// a placed order and, for online payment, an opened payment sheet.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/greeneye-shop/internal/credentials"
	"github.com/joao-fontenele/greeneye-shop/internal/domain"
	"github.com/joao-fontenele/greeneye-shop/internal/payment"
	"github.com/joao-fontenele/greeneye-shop/internal/telemetry"
)

var tracer = otel.Tracer("checkout/session")

var ErrSubmissionInFlight = errors.New("checkout submission already in flight")

type State string

const (
	StateEditing         State = "EDITING"
	StateValidating      State = "VALIDATING"
	StatePlacingOrder    State = "PLACING_ORDER"
	StateAwaitingPayment State = "AWAITING_PAYMENT"
	StateDone            State = "DONE"
	StateFailed          State = "FAILED"
)

func (s State) inFlight() bool {
	return s == StateValidating || s == StatePlacingOrder || s == StateAwaitingPayment
}

const (
	MessageOrderPlacedCOD    = "Order placed successfully. Pay on delivery."
	MessagePaymentProcessing = "Payment is being processed. Your order will be confirmed shortly."
	MessagePaymentCancelled  = "Payment cancelled"
	MessagePlaceOrderFailed  = "Failed to place order. Please try again."
	MessageLoginRequired     = "Please log in to place an order"

	MerchantName = "GreenEye Store"
	Currency     = "INR"
)

type OrderGateway interface {
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.PlacedOrder, error)
}

type ProfileSource interface {
	GetProfile(ctx context.Context) (domain.Profile, error)
}

type CartSource interface {
	Snapshot() domain.Cart
}

type EventPublisher interface {
	PublishCheckoutEvent(ctx context.Context, event domain.CheckoutEvent) error
}

// Result describes how the last submission ended. OrderID is kept whenever
// the order was created, even if the payment step failed afterwards.
type Result struct {
	OrderID string
	Message string
	Err     error
}

type Session struct {
	orders       OrderGateway
	cart         CartSource
	profiles     ProfileSource
	credentials  credentials.Provider
	sheet        payment.Sheet
	publisher    EventPublisher
	paymentKeyID string
	logger       *slog.Logger
	now          func() time.Time

	ordersPlaced      metric.Int64Counter
	paymentsCancelled metric.Int64Counter

	mu     sync.Mutex
	state  State
	draft  Draft
	result Result
}

type Option func(*Session)

func WithPaymentSheet(sheet payment.Sheet, keyID string) Option {
	return func(s *Session) {
		s.sheet = sheet
		s.paymentKeyID = keyID
	}
}

func WithProfileSource(profiles ProfileSource) Option {
	return func(s *Session) {
		s.profiles = profiles
	}
}

// WithCredentials makes Submit fail fast when no credential is present.
func WithCredentials(creds credentials.Provider) Option {
	return func(s *Session) {
		s.credentials = creds
	}
}

func WithEventPublisher(publisher EventPublisher) Option {
	return func(s *Session) {
		s.publisher = publisher
	}
}

func NewSession(orders OrderGateway, cart CartSource, logger *slog.Logger, opts ...Option) *Session {
	meter := otel.Meter("checkout/session")
	s := &Session{
		orders:            orders,
		cart:              cart,
		logger:            logger,
		now:               time.Now,
		ordersPlaced:      telemetry.Counter(meter, "checkout.orders.placed", "Orders created by checkout"),
		paymentsCancelled: telemetry.Counter(meter, "checkout.payments.cancelled", "Payment sheets that ended without completion"),
		state:             StateEditing,
		draft:             Draft{PaymentMethod: domain.PaymentMethodCashOnDelivery},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func (s *Session) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SetField edits the draft. Editing a failed session moves it back to
// EDITING.
func (s *Session) SetField(field domain.Field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.inFlight() {
		return ErrSubmissionInFlight
	}
	s.draft.Set(field, value)
	s.toEditing()
	return nil
}

// Edit returns a finished session to EDITING with its draft intact.
func (s *Session) Edit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.inFlight() {
		return ErrSubmissionInFlight
	}
	s.toEditing()
	return nil
}

func (s *Session) toEditing() {
	if s.state != StateEditing {
		s.state = StateEditing
		s.result = Result{}
	}
}

// Prefill copies the user's profile into the draft. Fields the profile leaves
// empty keep whatever the user already typed. Failures are logged only.
func (s *Session) Prefill(ctx context.Context) {
	if s.profiles == nil {
		return
	}
	profile, err := s.profiles.GetProfile(ctx)
	if err != nil {
		s.logger.Warn("failed to load profile for checkout", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.inFlight() {
		return
	}
	prefer(&s.draft.Name, profile.Name)
	prefer(&s.draft.Email, profile.Email)
	prefer(&s.draft.Phone, profile.Phone)
	if addr := profile.Address; addr != nil {
		prefer(&s.draft.Street, addr.Street)
		prefer(&s.draft.City, addr.City)
		prefer(&s.draft.State, addr.State)
		prefer(&s.draft.Pincode, addr.Pincode)
	}
}

func prefer(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// Validate runs the local checks against the current draft and cart.
func (s *Session) Validate() error {
	return Validate(s.Draft(), s.cart.Snapshot())
}

// Submit validates the draft, places the order and, for online payment,
// waits for the payment sheet's terminal outcome.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.state.inFlight() {
		s.mu.Unlock()
		return ErrSubmissionInFlight
	}
	s.state = StateValidating
	s.result = Result{}
	draft := s.draft
	s.mu.Unlock()

	if draft.PaymentMethod == "" {
		draft.PaymentMethod = domain.PaymentMethodCashOnDelivery
	}

	ctx, span := tracer.Start(ctx, "checkout.submit", trace.WithAttributes(
		attribute.String("payment_method", string(draft.PaymentMethod)),
	))
	defer span.End()

	cart := s.cart.Snapshot()
	if err := Validate(draft, cart); err != nil {
		var verr *domain.ValidationError
		msg := err.Error()
		if errors.As(err, &verr) {
			msg = verr.Message
		}
		s.mu.Lock()
		s.state = StateEditing
		s.result = Result{Message: msg, Err: err}
		s.mu.Unlock()
		return err
	}

	if s.credentials != nil {
		if _, ok := s.credentials.Token(ctx); !ok {
			s.finish(StateFailed, Result{Message: MessageLoginRequired, Err: domain.ErrAuthenticationRequired})
			return domain.ErrAuthenticationRequired
		}
	}

	s.setState(StatePlacingOrder)
	req := domain.OrderRequest{
		OrderItems:      orderItems(cart),
		ShippingAddress: draft.ShippingAddress(),
		PaymentMethod:   draft.PaymentMethod,
	}

	placed, err := s.orders.PlaceOrder(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("failed to place order", "error", err, "payment_method", draft.PaymentMethod)

		msg, ok := domain.ServerMessage(err)
		if !ok {
			msg = MessagePlaceOrderFailed
		}
		s.publish(ctx, domain.CheckoutEventOrderFailed, "", req, cart, msg)
		s.finish(StateFailed, Result{Message: msg, Err: fmt.Errorf("place order: %w", err)})
		return err
	}

	span.SetAttributes(attribute.String("order_id", placed.ID))
	s.ordersPlaced.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_method", string(draft.PaymentMethod))))
	s.logger.Info("order placed", "order_id", placed.ID, "payment_method", draft.PaymentMethod)
	s.publish(ctx, domain.CheckoutEventOrderPlaced, placed.ID, req, cart, "")

	if draft.PaymentMethod == domain.PaymentMethodCashOnDelivery {
		s.succeed(placed.ID, MessageOrderPlacedCOD)
		return nil
	}

	s.setState(StateAwaitingPayment)
	outcome := s.awaitPayment(ctx, placed, draft)
	if outcome.Kind != payment.OutcomeCompleted {
		s.paymentsCancelled.Add(ctx, 1)
		s.logger.Warn("payment not completed", "order_id", placed.ID, "reason", outcome.Reason)
		s.publish(ctx, domain.CheckoutEventPaymentCancelled, placed.ID, req, cart, outcome.Reason)
		err := fmt.Errorf("order %s: %w: %s", placed.ID, domain.ErrPaymentCancelled, outcome.Reason)
		s.finish(StateFailed, Result{OrderID: placed.ID, Message: MessagePaymentCancelled, Err: err})
		return err
	}

	s.logger.Info("payment sheet completed", "order_id", placed.ID, "payment_ref", outcome.PaymentRef)
	s.publish(ctx, domain.CheckoutEventPaymentCompleted, placed.ID, req, cart, outcome.PaymentRef)
	s.succeed(placed.ID, MessagePaymentProcessing)
	return nil
}

func (s *Session) awaitPayment(ctx context.Context, placed domain.PlacedOrder, draft Draft) payment.Outcome {
	token := placed.GatewayOrderToken()
	switch {
	case s.sheet == nil:
		return payment.Cancelled("payment sheet not available")
	case token == "":
		return payment.Cancelled("order has no payment gateway token")
	}

	return payment.Await(ctx, s.sheet, payment.Intent{
		KeyID:        s.paymentKeyID,
		Amount:       payment.MinorUnits(placed.TotalPrice),
		Currency:     Currency,
		MerchantName: MerchantName,
		Description:  "Order " + placed.ID,
		OrderToken:   token,
		Prefill: payment.Contact{
			Name:  draft.Name,
			Email: draft.Email,
			Phone: draft.Phone,
		},
	})
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Session) succeed(orderID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateDone
	s.result = Result{OrderID: orderID, Message: message}
	s.draft = Draft{PaymentMethod: s.draft.PaymentMethod}
}

func (s *Session) finish(state State, result Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.result = result
}

func (s *Session) publish(ctx context.Context, typ domain.CheckoutEventType, orderID string, req domain.OrderRequest, cart domain.Cart, message string) {
	if s.publisher == nil {
		return
	}
	event := domain.CheckoutEvent{
		ID:            uuid.NewString(),
		Type:          typ,
		OrderID:       orderID,
		PaymentMethod: req.PaymentMethod,
		Items:         req.OrderItems,
		Total:         cart.Total(),
		Message:       message,
		Timestamp:     s.now().UTC(),
	}
	if err := s.publisher.PublishCheckoutEvent(ctx, event); err != nil {
		s.logger.Error("failed to publish checkout event", "error", err, "type", typ, "order_id", orderID)
	}
}

func orderItems(cart domain.Cart) []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, domain.OrderItem{
			ProductRef: item.ProductRef(),
			Quantity:   item.Quantity,
		})
	}
	return items
}
