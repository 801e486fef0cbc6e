package gateway

import (
	"context"
	"net/http"
	"net/url"

	"github.com/joao-fontenele/greeneye-shop/internal/domain"
)

func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.PlacedOrder, error) {
	var order domain.PlacedOrder
	if err := c.do(ctx, "place order", http.MethodPost, "/api/orders", req, &order); err != nil {
		return domain.PlacedOrder{}, err
	}
	return order, nil
}

func (c *Client) ListMyOrders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	if err := c.do(ctx, "list orders", http.MethodGet, "/api/orders/myorders", nil, &orders); err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

func (c *Client) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	var order domain.Order
	if err := c.do(ctx, "get order", http.MethodGet, "/api/orders/"+url.PathEscape(id), nil, &order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}
