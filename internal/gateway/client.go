// Package gateway is the HTTP/JSON client for the shop backend. It is the
// only code that talks to the remote cart, order, profile and catalog APIs.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/joao-fontenele/greeneye-shop/internal/credentials"
	"github.com/joao-fontenele/greeneye-shop/internal/domain"
)

const maxErrorBody = 64 << 10

type Client struct {
	baseURL     string
	httpClient  *http.Client
	credentials credentials.Provider
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	logger      *slog.Logger
}

type Option func(*Client)

// WithBreaker trips after maxFailures consecutive transport or 5xx failures
// and fails fast until cooldown elapses. Calls are never retried.
func WithBreaker(maxFailures uint32, cooldown time.Duration) Option {
	return func(c *Client) {
		c.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        "shop-api",
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
		})
	}
}

func NewClient(baseURL string, httpClient *http.Client, creds credentials.Provider, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:     baseURL,
		httpClient:  httpClient,
		credentials: creds,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token, ok := c.credentials.Token(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.execute(op, req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readError(op, resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.GatewayError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) execute(op string, req *http.Request) (*http.Response, error) {
	call := func() (*http.Response, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, &domain.GatewayError{Op: op, Err: err}
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			defer func() { _ = resp.Body.Close() }()
			return nil, readError(op, resp)
		}
		return resp, nil
	}

	if c.breaker == nil {
		return call()
	}

	resp, err := c.breaker.Execute(call)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &domain.GatewayError{Op: op, Err: err}
	}
	return resp, err
}

func readError(op string, resp *http.Response) error {
	gwErr := &domain.GatewayError{Op: op, Status: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		gwErr.Err = err
		return gwErr
	}

	var body errorBody
	if json.Unmarshal(data, &body) == nil {
		gwErr.Message = body.Message
		if gwErr.Message == "" {
			gwErr.Message = body.Error
		}
	}
	return gwErr
}
