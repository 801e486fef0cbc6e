// Package cart keeps the client-side mirror of the remote cart.
//
// Every mutation is two explicit phases: mutate() sends one call to the
// gateway, sync() re-fetches the whole cart and replaces local state. There
// are no optimistic updates. Mutations started concurrently race at the
// gateway and, by default, whichever sync finishes last wins.
package cart

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/greeneye-shop/internal/credentials"
	"github.com/joao-fontenele/greeneye-shop/internal/domain"
	"github.com/joao-fontenele/greeneye-shop/internal/telemetry"
)

var tracer = otel.Tracer("cart/store")

type Gateway interface {
	GetCart(ctx context.Context) (domain.Cart, error)
	AddCartItem(ctx context.Context, productRef string, quantity int) error
	UpdateCartItem(ctx context.Context, id string, quantity int) error
	RemoveCartItem(ctx context.Context, id string) error
}

// RefreshFallback picks the cart that replaces local state when a refresh
// fails. It is the single place that decides this.
type RefreshFallback func(err error) domain.Cart

// EmptyOnRefreshFailure treats any refresh failure as "nothing in cart".
// A network error and a missing session are indistinguishable to the user.
func EmptyOnRefreshFailure(error) domain.Cart {
	return domain.EmptyCart()
}

type Store struct {
	gateway     Gateway
	credentials credentials.Provider
	fallback    RefreshFallback
	orderedSync bool
	logger      *slog.Logger

	mutations metric.Int64Counter
	fallbacks metric.Int64Counter

	mu       sync.Mutex
	cart     domain.Cart
	detached bool
	issued   uint64
	applied  uint64
	onChange []func(domain.Cart)
	onOpen   []func()
}

type Option func(*Store)

func WithRefreshFallback(fallback RefreshFallback) Option {
	return func(s *Store) {
		s.fallback = fallback
	}
}

// WithOrderedSync drops refresh results that were requested before the
// result currently applied, so a slow early fetch cannot overwrite a newer
// one.
func WithOrderedSync() Option {
	return func(s *Store) {
		s.orderedSync = true
	}
}

func NewStore(gateway Gateway, creds credentials.Provider, logger *slog.Logger, opts ...Option) *Store {
	meter := otel.Meter("cart/store")
	s := &Store{
		gateway:     gateway,
		credentials: creds,
		fallback:    EmptyOnRefreshFailure,
		logger:      logger,
		mutations:   telemetry.Counter(meter, "cart.mutations", "Cart mutations sent to the gateway"),
		fallbacks:   telemetry.Counter(meter, "cart.refresh.fallbacks", "Cart refreshes that fell back after a gateway failure"),
		cart:        domain.EmptyCart(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers fn to be called with a snapshot after each applied
// refresh.
func (s *Store) OnChange(fn func(domain.Cart)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// OnOpenRequested registers fn to be called after a successful AddItem.
func (s *Store) OnOpenRequested(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onOpen = append(s.onOpen, fn)
}

// Refresh replaces local state with the gateway's cart. It never fails:
// without a credential the cart is empty, and gateway errors go through the
// refresh fallback.
func (s *Store) Refresh(ctx context.Context) {
	if _, ok := s.credentials.Token(ctx); !ok {
		s.apply(s.nextSeq(), domain.EmptyCart())
		return
	}
	s.sync(ctx)
}

// AddItem adds quantity units of productRef. A quantity below 1 means 1.
// Unlike the other mutations it reports a missing credential, because the
// caller has to send the user to login.
func (s *Store) AddItem(ctx context.Context, productRef string, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}
	if _, ok := s.credentials.Token(ctx); !ok {
		return domain.ErrAuthenticationRequired
	}

	err := s.mutate(ctx, "add", func(ctx context.Context) error {
		return s.gateway.AddCartItem(ctx, productRef, quantity)
	}, attribute.String("product_ref", productRef), attribute.Int("quantity", quantity))
	if err != nil {
		return err
	}

	s.sync(ctx)
	s.requestOpen()
	return nil
}

// RemoveItem is a silent no-op without a credential.
func (s *Store) RemoveItem(ctx context.Context, id string) error {
	if _, ok := s.credentials.Token(ctx); !ok {
		return nil
	}

	err := s.mutate(ctx, "remove", func(ctx context.Context) error {
		return s.gateway.RemoveCartItem(ctx, id)
	}, attribute.String("item_id", id))
	if err != nil {
		return err
	}

	s.sync(ctx)
	return nil
}

// ChangeQuantity is a silent no-op without a credential or when quantity is
// below 1; the gateway is never asked for a non-positive quantity.
func (s *Store) ChangeQuantity(ctx context.Context, id string, quantity int) error {
	if quantity < 1 {
		return nil
	}
	if _, ok := s.credentials.Token(ctx); !ok {
		return nil
	}

	err := s.mutate(ctx, "change_quantity", func(ctx context.Context) error {
		return s.gateway.UpdateCartItem(ctx, id, quantity)
	}, attribute.String("item_id", id), attribute.Int("quantity", quantity))
	if err != nil {
		return err
	}

	s.sync(ctx)
	return nil
}

func (s *Store) Snapshot() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.ItemCount()
}

func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Total()
}

// Reset discards the cart, e.g. on logout.
func (s *Store) Reset() {
	s.apply(s.nextSeq(), domain.EmptyCart())
}

// Detach stops the store from applying any further results. Calls still in
// flight complete against the gateway but their refreshes are discarded.
func (s *Store) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detached = true
}

func (s *Store) mutate(ctx context.Context, op string, call func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := tracer.Start(ctx, "cart."+op, trace.WithAttributes(attrs...))
	defer span.End()

	s.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))

	if err := call(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("cart mutation failed", "error", err, "op", op)
		return fmt.Errorf("cart %s: %w", op, err)
	}
	return nil
}

func (s *Store) sync(ctx context.Context) {
	seq := s.nextSeq()

	cart, err := s.gateway.GetCart(ctx)
	if err != nil {
		s.fallbacks.Add(ctx, 1)
		s.logger.Warn("cart refresh failed, using fallback", "error", fmt.Errorf("%w: %w", domain.ErrRefreshFailed, err))
		cart = s.fallback(err)
	}

	s.apply(seq, cart)
}

func (s *Store) nextSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

func (s *Store) apply(seq uint64, cart domain.Cart) {
	s.mu.Lock()
	if s.detached {
		s.mu.Unlock()
		return
	}
	if s.orderedSync && seq < s.applied {
		applied := s.applied
		s.mu.Unlock()
		s.logger.Debug("discarding stale cart refresh", "seq", seq, "applied", applied)
		return
	}
	if cart.Items == nil {
		cart.Items = []domain.CartLineItem{}
	}
	s.cart = cart
	s.applied = seq
	snapshot := s.cart.Clone()
	listeners := append([]func(domain.Cart){}, s.onChange...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

func (s *Store) requestOpen() {
	s.mu.Lock()
	if s.detached {
		s.mu.Unlock()
		return
	}
	listeners := append([]func(){}, s.onOpen...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}
