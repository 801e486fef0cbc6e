package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/greeneye-shop/internal/credentials"
	"github.com/joao-fontenele/greeneye-shop/internal/domain"
)

func newTestClient(server *httptest.Server, creds credentials.Provider, opts ...Option) *Client {
	return NewClient(server.URL, server.Client(), creds, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

func TestClient_GetCart(t *testing.T) {
	t.Run("decodes items and sends bearer token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/api/cart", r.URL.Path)
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"items":[{"_id":"i1","quantity":2,"plant":{"_id":"p1","name":"Neem","price":500}}]}`))
		}))
		defer server.Close()

		cart, err := newTestClient(server, credentials.Static("tok")).GetCart(context.Background())
		require.NoError(t, err)
		require.Len(t, cart.Items, 1)
		assert.Equal(t, "p1", cart.Items[0].ProductRef())
		assert.True(t, cart.Total().Equal(decimal.NewFromInt(1000)))
	})

	t.Run("missing items becomes empty cart", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		defer server.Close()

		cart, err := newTestClient(server, credentials.Static("tok")).GetCart(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, cart.Items)
		assert.True(t, cart.IsEmpty())
	})

	t.Run("omits authorization without credential", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"items":[]}`))
		}))
		defer server.Close()

		_, err := newTestClient(server, credentials.Static("")).GetCart(context.Background())
		require.NoError(t, err)
	})
}

func TestClient_Mutations(t *testing.T) {
	t.Run("add sends plantId and quantity", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "p1", body["plantId"])
			assert.EqualValues(t, 3, body["quantity"])
			w.WriteHeader(http.StatusCreated)
		}))
		defer server.Close()

		require.NoError(t, newTestClient(server, credentials.Static("tok")).AddCartItem(context.Background(), "p1", 3))
	})

	t.Run("update puts quantity on item path", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "/api/cart/i1", r.URL.Path)
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"quantity":5}`, string(body))
		}))
		defer server.Close()

		require.NoError(t, newTestClient(server, credentials.Static("tok")).UpdateCartItem(context.Background(), "i1", 5))
	})

	t.Run("remove deletes item path", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "/api/cart/i1", r.URL.Path)
		}))
		defer server.Close()

		require.NoError(t, newTestClient(server, credentials.Static("tok")).RemoveCartItem(context.Background(), "i1"))
	})
}

func TestClient_Errors(t *testing.T) {
	t.Run("surfaces server message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"Plant out of stock"}`))
		}))
		defer server.Close()

		_, err := newTestClient(server, credentials.Static("tok")).PlaceOrder(context.Background(), domain.OrderRequest{})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
		msg, ok := domain.ServerMessage(err)
		assert.True(t, ok)
		assert.Equal(t, "Plant out of stock", msg)
	})

	t.Run("transport failure is gateway unavailable", func(t *testing.T) {
		client := NewClient("http://localhost:99999", &http.Client{}, credentials.Static("tok"), slog.New(slog.NewTextHandler(io.Discard, nil)))
		err := client.RemoveCartItem(context.Background(), "i1")
		assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
		_, ok := domain.ServerMessage(err)
		assert.False(t, ok)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newTestClient(server, credentials.Static("tok")).GetCart(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestClient_Breaker(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server, credentials.Static("tok"), WithBreaker(2, time.Minute))

	for i := 0; i < 2; i++ {
		_, err := client.GetCart(context.Background())
		require.Error(t, err)
	}

	_, err := client.GetCart(context.Background())
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	var gwErr *domain.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Zero(t, gwErr.Status, "open breaker fails before reaching the server")
	assert.EqualValues(t, 2, calls.Load())
}

func TestClient_Catalog(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/plants", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"plants":[{"_id":"p1","name":"Tulsi","price":"120.50"}]}`))
	})
	mux.HandleFunc("GET /api/users/profile", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"Asha","email":"a@b.com","address":{"city":"Jaipur"}}`))
	})
	mux.HandleFunc("GET /api/orders/myorders", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"_id":"o1","orderItems":[{"name":"Tulsi","quantity":2,"price":100}]}]`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(server, credentials.Static("tok"))

	plants, err := client.ListPlants(context.Background())
	require.NoError(t, err)
	require.Len(t, plants, 1)
	assert.True(t, plants[0].Price.Equal(decimal.RequireFromString("120.5")))

	profile, err := client.GetProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Jaipur", profile.Address.City)

	orders, err := client.ListMyOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.True(t, orders[0].ItemsTotal().Equal(decimal.NewFromInt(200)))
}
