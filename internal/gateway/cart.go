package gateway

import (
	"context"
	"net/http"
	"net/url"

	"github.com/joao-fontenele/greeneye-shop/internal/domain"
)

func (c *Client) GetCart(ctx context.Context) (domain.Cart, error) {
	var cart domain.Cart
	if err := c.do(ctx, "get cart", http.MethodGet, "/api/cart", nil, &cart); err != nil {
		return domain.Cart{}, err
	}
	if cart.Items == nil {
		cart.Items = []domain.CartLineItem{}
	}
	return cart, nil
}

type addItemRequest struct {
	PlantID  string `json:"plantId"`
	Quantity int    `json:"quantity"`
}

func (c *Client) AddCartItem(ctx context.Context, productRef string, quantity int) error {
	body := addItemRequest{PlantID: productRef, Quantity: quantity}
	return c.do(ctx, "add cart item", http.MethodPost, "/api/cart", body, nil)
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (c *Client) UpdateCartItem(ctx context.Context, id string, quantity int) error {
	body := updateQuantityRequest{Quantity: quantity}
	return c.do(ctx, "update cart item", http.MethodPut, "/api/cart/"+url.PathEscape(id), body, nil)
}

func (c *Client) RemoveCartItem(ctx context.Context, id string) error {
	return c.do(ctx, "remove cart item", http.MethodDelete, "/api/cart/"+url.PathEscape(id), nil, nil)
}
