package fakeapi

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/joao-fontenele/greeneye-shop/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmptyOrder         = errors.New("no order items")
)

// OutOfStockError is returned when an order asks for more than is available.
type OutOfStockError struct {
	Plant string
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("%s is out of stock", e.Plant)
}

type User struct {
	ID           string
	PasswordHash []byte
	Profile      domain.Profile
}

type stockedPlant struct {
	plant     domain.Plant
	available int
}

// Store is the in-memory state behind the fake API. Carts and orders are
// keyed by user id.
type Store struct {
	mu      sync.Mutex
	now     func() time.Time
	plants  []*stockedPlant
	users   map[string]*User
	byEmail map[string]string
	carts   map[string][]domain.CartLineItem
	orders  map[string][]domain.Order
}

func NewStore() *Store {
	return &Store{
		now:     time.Now,
		users:   map[string]*User{},
		byEmail: map[string]string{},
		carts:   map[string][]domain.CartLineItem{},
		orders:  map[string][]domain.Order{},
	}
}

func (s *Store) AddPlant(plant domain.Plant, available int) domain.Plant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if plant.ID == "" {
		plant.ID = uuid.NewString()
	}
	s.plants = append(s.plants, &stockedPlant{plant: plant, available: available})
	return plant
}

func (s *Store) AddUser(email, password string, profile domain.Profile) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	email = strings.ToLower(strings.TrimSpace(email))
	profile.Email = email

	s.mu.Lock()
	defer s.mu.Unlock()
	u := &User{ID: uuid.NewString(), PasswordHash: hash, Profile: profile}
	s.users[u.ID] = u
	s.byEmail[email] = u.ID
	return u, nil
}

func (s *Store) Authenticate(email, password string) (*User, error) {
	s.mu.Lock()
	u, ok := s.users[s.byEmail[strings.ToLower(strings.TrimSpace(email))]]
	s.mu.Unlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Store) Profile(userID string) (domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.Profile{}, ErrNotFound
	}
	return u.Profile, nil
}

func (s *Store) Plants() []domain.Plant {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Plant, 0, len(s.plants))
	for _, p := range s.plants {
		out = append(out, p.plant)
	}
	return out
}

func (s *Store) plant(id string) (*stockedPlant, bool) {
	for _, p := range s.plants {
		if p.plant.ID == id {
			return p, true
		}
	}
	return nil, false
}

// Cart returns the user's cart with current catalog data in each line.
func (s *Store) Cart(userID string) domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Cart{Items: s.carts[userID]}.Clone()
}

// AddToCart adds quantity to the line for plantID, creating it if needed.
func (s *Store) AddToCart(userID, plantID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plant(plantID)
	if !ok {
		return fmt.Errorf("plant %s: %w", plantID, ErrNotFound)
	}
	items := s.carts[userID]
	for i := range items {
		if items[i].Plant.ID == plantID {
			items[i].Quantity += quantity
			return nil
		}
	}
	s.carts[userID] = append(items, domain.CartLineItem{
		ID:       uuid.NewString(),
		Quantity: quantity,
		Plant:    p.plant,
	})
	return nil
}

func (s *Store) UpdateCartItem(userID, itemID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.carts[userID]
	for i := range items {
		if items[i].ID == itemID {
			items[i].Quantity = quantity
			return nil
		}
	}
	return fmt.Errorf("cart item %s: %w", itemID, ErrNotFound)
}

func (s *Store) RemoveCartItem(userID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.carts[userID]
	for i := range items {
		if items[i].ID == itemID {
			s.carts[userID] = slices.Delete(items, i, i+1)
			return nil
		}
	}
	return fmt.Errorf("cart item %s: %w", itemID, ErrNotFound)
}

// PlaceOrder prices the order from the catalog, reserves stock and empties
// the cart. Online orders get a payment gateway order token.
func (s *Store) PlaceOrder(userID string, req domain.OrderRequest) (domain.Order, domain.PlacedOrder, error) {
	if len(req.OrderItems) == 0 {
		return domain.Order{}, domain.PlacedOrder{}, ErrEmptyOrder
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]domain.OrderLine, 0, len(req.OrderItems))
	reserved := make(map[*stockedPlant]int, len(req.OrderItems))
	for _, item := range req.OrderItems {
		if item.Quantity < 1 {
			return domain.Order{}, domain.PlacedOrder{}, ErrInvalidQuantity
		}
		p, ok := s.plant(item.ProductRef)
		if !ok {
			return domain.Order{}, domain.PlacedOrder{}, fmt.Errorf("plant %s: %w", item.ProductRef, ErrNotFound)
		}
		if p.available < reserved[p]+item.Quantity {
			return domain.Order{}, domain.PlacedOrder{}, &OutOfStockError{Plant: p.plant.Name}
		}
		reserved[p] += item.Quantity
		lines = append(lines, domain.OrderLine{
			ID:       p.plant.ID,
			Name:     p.plant.Name,
			Quantity: item.Quantity,
			Price:    p.plant.Price,
		})
	}
	for p, n := range reserved {
		p.available -= n
	}

	order := domain.Order{
		ID:              uuid.NewString(),
		OrderItems:      lines,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		CreatedAt:       s.now().UTC(),
	}
	order.TotalPrice = order.ItemsTotal()
	s.orders[userID] = append(s.orders[userID], order)
	delete(s.carts, userID)

	placed := domain.PlacedOrder{ID: order.ID, TotalPrice: order.TotalPrice}
	if req.PaymentMethod == domain.PaymentMethodOnlineGateway {
		placed.PaymentResult = &domain.PaymentResult{ID: "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]}
	}
	return order, placed, nil
}

func (s *Store) Orders(userID string) []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.orders[userID])
}

func (s *Store) Order(userID, orderID string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders[userID] {
		if o.ID == orderID {
			return o, nil
		}
	}
	return domain.Order{}, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
}

// Seed fills the store with a small catalog and one demo account.
func Seed(s *Store) error {
	s.AddPlant(domain.Plant{ID: "plant-monstera", Name: "Monstera Deliciosa", Price: decimal.NewFromInt(799), Description: "Split-leaf tropical, bright indirect light"}, 20)
	s.AddPlant(domain.Plant{ID: "plant-snake", Name: "Snake Plant", Price: decimal.NewFromInt(449), Description: "Tolerates low light and missed waterings"}, 35)
	s.AddPlant(domain.Plant{ID: "plant-pothos", Name: "Golden Pothos", Price: decimal.NewFromInt(299), Description: "Trailing vine for shelves"}, 50)
	s.AddPlant(domain.Plant{ID: "plant-tulsi", Name: "Holy Basil (Tulsi)", Price: decimal.RequireFromString("149.50"), Description: "Sunny balcony herb"}, 3)

	_, err := s.AddUser("demo@greeneye.shop", "greeneye", domain.Profile{
		Name:  "Demo Gardener",
		Phone: "9876543210",
		Address: &domain.Address{
			Street:  "12 MG Road",
			City:    "Jaipur",
			State:   "Rajasthan",
			Pincode: "302034",
		},
	})
	return err
}
