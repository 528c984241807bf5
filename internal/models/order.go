package models

import "time"

// OrderItem represents a single product entry within an order.
type OrderItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// OrderCustomer captures the delivery contact block the backend expects.
type OrderCustomer struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Note   string `json:"note,omitempty"`
}

// OrderPaymentMethod is the payment block of an order request.
type OrderPaymentMethod struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// OrderSubmission is assembled right before finalize and never persisted.
// ShippingAddressID is set only for delivery orders with a saved address.
type OrderSubmission struct {
	Items             []OrderItem        `json:"items"`
	TotalPrice        float64            `json:"totalPrice"`
	DeliveryType      DeliveryType       `json:"deliveryType"`
	ShippingAddressID string             `json:"shippingAddressId,omitempty"`
	Customer          *OrderCustomer     `json:"customer,omitempty"`
	PaymentMethod     OrderPaymentMethod `json:"paymentMethod"`
	Notes             string             `json:"notes,omitempty"`
}

// OrderRecord is an order as the backend reports it.
type OrderRecord struct {
	ID            string        `json:"id"`
	UserID        string        `json:"userId,omitempty"`
	Items         []OrderItem   `json:"items,omitempty"`
	TotalPrice    float64       `json:"totalPrice"`
	Customer      OrderCustomer `json:"customer"`
	PaymentMethod string        `json:"paymentMethod,omitempty"`
	Status        string        `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
}
