// Package fakeapi is an in-memory stand-in for the GreenEye backend. It
// speaks the same JSON as the real API so the client can run end to end
// without it.
package fakeapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joao-fontenele/greeneye-shop/internal/domain"
	"github.com/joao-fontenele/greeneye-shop/internal/telemetry"
)

type Server struct {
	store  *Store
	tokens *Tokens
	logger *slog.Logger
}

func NewServer(store *Store, tokens *Tokens, logger *slog.Logger) *Server {
	return &Server{store: store, tokens: tokens, logger: logger}
}

// Routes builds the router. Every /api route except plants and login
// requires a bearer token.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(telemetry.RouteAttribute)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/plants", s.handleListPlants)
		r.Post("/users/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/users/profile", s.handleProfile)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", s.handleGetCart)
				r.Post("/", s.handleAddToCart)
				r.Put("/{id}", s.handleUpdateCartItem)
				r.Delete("/{id}", s.handleRemoveCartItem)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", s.handlePlaceOrder)
				r.Get("/myorders", s.handleMyOrders)
				r.Get("/{id}", s.handleGetOrder)
			})
		})
	})
	return r
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			s.writeError(w, http.StatusUnauthorized, "Not authorized, no token")
			return
		}
		id, err := s.tokens.Verify(raw)
		if err != nil {
			s.logger.Debug("rejected bearer token", "error", err)
			s.writeError(w, http.StatusUnauthorized, "Not authorized, token failed")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.store.Authenticate(req.Email, req.Password)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		s.logger.Error("failed to issue token", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	s.writeJSON(w, http.StatusOK, loginResponse{Token: token, Name: user.Profile.Name, Email: user.Profile.Email})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.store.Profile(userID(r.Context()))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "User not found")
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleListPlants(w http.ResponseWriter, r *http.Request) {
	plants := s.store.Plants()
	s.writeJSON(w, http.StatusOK, map[string]any{"plants": plants})
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Cart(userID(r.Context())))
}

type addToCartRequest struct {
	PlantID  string `json:"plantId"`
	Quantity int    `json:"quantity"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (s *Server) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user := userID(r.Context())
	if err := s.store.AddToCart(user, req.PlantID, req.Quantity); err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.logger.Info("cart item added", "user_id", user, "plant_id", req.PlantID, "quantity", req.Quantity)
	s.writeJSON(w, http.StatusCreated, s.store.Cart(user))
}

func (s *Server) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, id := userID(r.Context()), chi.URLParam(r, "id")
	if err := s.store.UpdateCartItem(user, id, req.Quantity); err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.logger.Info("cart item updated", "user_id", user, "item_id", id, "quantity", req.Quantity)
	s.writeJSON(w, http.StatusOK, s.store.Cart(user))
}

func (s *Server) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	user, id := userID(r.Context()), chi.URLParam(r, "id")
	if err := s.store.RemoveCartItem(user, id); err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.logger.Info("cart item removed", "user_id", user, "item_id", id)
	s.writeJSON(w, http.StatusOK, s.store.Cart(user))
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.PaymentMethod.Valid() {
		s.writeError(w, http.StatusBadRequest, "Invalid payment method")
		return
	}

	user := userID(r.Context())
	order, placed, err := s.store.PlaceOrder(user, req)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.logger.Info("order created", "order_id", order.ID, "user_id", user, "total", order.TotalPrice, "payment_method", order.PaymentMethod)
	s.writeJSON(w, http.StatusCreated, placed)
}

func (s *Server) handleMyOrders(w http.ResponseWriter, r *http.Request) {
	orders := s.store.Orders(userID(r.Context()))
	if orders == nil {
		orders = []domain.Order{}
	}
	s.writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.store.Order(userID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, order)
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	var stockErr *OutOfStockError
	switch {
	case errors.As(err, &stockErr):
		s.writeError(w, http.StatusBadRequest, stockErr.Error())
	case errors.Is(err, ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrEmptyOrder):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("unexpected store error", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"message": message})
}
