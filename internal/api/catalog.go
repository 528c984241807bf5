package api

import (
	"context"
	"net/http"
	"strconv"

	"storefront/internal/models"
)

// ListProducts reads one page of the public catalog.
func (c *Client) ListProducts(ctx context.Context, q models.ProductQuery) ([]models.Product, error) {
	params := map[string]string{}
	if q.Page > 0 {
		params["page"] = strconv.FormatInt(q.Page, 10)
	}
	if q.Limit > 0 {
		params["limit"] = strconv.FormatInt(q.Limit, 10)
	}
	if q.Category != "" {
		params["category"] = q.Category
	}
	if q.Search != "" {
		params["search"] = q.Search
	}

	var out []models.Product
	if err := c.do(ctx, call{method: http.MethodGet, path: "/products", query: params, out: &out}); err != nil {
		return nil, err
	}
	if out == nil {
		return []models.Product{}, nil
	}
	return out, nil
}

// ListCampaignProducts reads the products currently marked as campaign items.
func (c *Client) ListCampaignProducts(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	if err := c.do(ctx, call{method: http.MethodGet, path: "/products/campaign", out: &out}); err != nil {
		return nil, err
	}
	if out == nil {
		return []models.Product{}, nil
	}
	return out, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	if err := c.do(ctx, call{method: http.MethodGet, path: "/categories", out: &out}); err != nil {
		return nil, err
	}
	if out == nil {
		return []models.Category{}, nil
	}
	return out, nil
}
