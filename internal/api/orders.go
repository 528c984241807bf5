package api

import (
	"context"
	"net/http"
	"net/url"

	"storefront/internal/models"
)

type addressesResponse struct {
	Addresses []models.Address `json:"addresses"`
}

func (c *Client) ListAddresses(ctx context.Context) ([]models.Address, error) {
	var out addressesResponse
	if err := c.do(ctx, call{method: http.MethodGet, path: "/user/addresses", token: c.token(), out: &out}); err != nil {
		return nil, err
	}
	if out.Addresses == nil {
		return []models.Address{}, nil
	}
	return out.Addresses, nil
}

type createOrderResponse struct {
	OrderID string `json:"orderId"`
	Message string `json:"message"`
}

// CreateOrder submits dto once. idempotencyKey is forwarded so the backend can
// recognise a user-triggered retry of the same checkout.
func (c *Client) CreateOrder(ctx context.Context, dto models.OrderSubmission, idempotencyKey string) (models.OrderRecord, error) {
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}

	var out createOrderResponse
	err := c.do(ctx, call{
		method:  http.MethodPost,
		path:    "/orders",
		token:   c.token(),
		body:    dto,
		out:     &out,
		headers: headers,
	})
	if err != nil {
		return models.OrderRecord{}, err
	}

	record := models.OrderRecord{
		ID:            out.OrderID,
		Items:         dto.Items,
		TotalPrice:    dto.TotalPrice,
		PaymentMethod: dto.PaymentMethod.ID,
		Status:        "pending",
	}
	if dto.Customer != nil {
		record.Customer = *dto.Customer
	}
	return record, nil
}

func (c *Client) GetOrderStatus(ctx context.Context, id string) (models.OrderRecord, error) {
	var out models.OrderRecord
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/orders/" + url.PathEscape(id),
		token:  c.token(),
		out:    &out,
	})
	if err != nil {
		return models.OrderRecord{}, err
	}
	if out.ID == "" {
		out.ID = id
	}
	return out, nil
}
