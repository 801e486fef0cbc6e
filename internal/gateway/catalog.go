package gateway

import (
	"context"
	"net/http"

	"github.com/joao-fontenele/greeneye-shop/internal/domain"
)

func (c *Client) GetProfile(ctx context.Context) (domain.Profile, error) {
	var profile domain.Profile
	if err := c.do(ctx, "get profile", http.MethodGet, "/api/users/profile", nil, &profile); err != nil {
		return domain.Profile{}, err
	}
	return profile, nil
}

type plantsResponse struct {
	Plants []domain.Plant `json:"plants"`
}

func (c *Client) ListPlants(ctx context.Context) ([]domain.Plant, error) {
	var resp plantsResponse
	if err := c.do(ctx, "list plants", http.MethodGet, "/api/plants", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Plants == nil {
		resp.Plants = []domain.Plant{}
	}
	return resp.Plants, nil
}
