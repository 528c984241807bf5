package models

import "time"

type DeliveryType string

const (
	DeliveryPickup   DeliveryType = "pickup"
	DeliveryDelivery DeliveryType = "delivery"
)

func (d DeliveryType) Valid() bool {
	return d == DeliveryPickup || d == DeliveryDelivery
}

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
)

func (p PaymentMethod) Valid() bool {
	return p == PaymentCash || p == PaymentCard
}

// Label is the human readable name sent alongside the payment id.
func (p PaymentMethod) Label() string {
	switch p {
	case PaymentCash:
		return "Kapıda nakit"
	case PaymentCard:
		return "Kapıda kart"
	default:
		return ""
	}
}

// InlineAddress is an address typed during checkout instead of a saved one.
type InlineAddress struct {
	Title  string `json:"title" validate:"required"`
	Detail string `json:"detail" validate:"required"`
	Note   string `json:"note,omitempty"`
}

// CheckoutSelection is the persisted, time-limited record of in-progress
// checkout choices. SelectedAddressID is a weak reference used for lookup only.
type CheckoutSelection struct {
	DeliveryType      DeliveryType   `json:"deliveryType"`
	SelectedAddressID string         `json:"selectedAddressId,omitempty"`
	InlineAddress     *InlineAddress `json:"inlineAddress,omitempty"`
	PaymentMethod     PaymentMethod  `json:"paymentMethod,omitempty"`
	Notes             string         `json:"notes,omitempty"`
	OwnerID           string         `json:"ownerId,omitempty"`
	IdempotencyKey    string         `json:"idempotencyKey"`
	CreatedAt         int64          `json:"createdAt"`
}

// CreatedTime returns CreatedAt (epoch milliseconds) as a time.
func (s CheckoutSelection) CreatedTime() time.Time {
	return time.UnixMilli(s.CreatedAt)
}

// ExpiredAt reports whether the selection is past ttl at now.
func (s CheckoutSelection) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.CreatedTime()) >= ttl
}

// HasAddress reports whether a delivery selection has either address shape.
func (s CheckoutSelection) HasAddress() bool {
	return s.SelectedAddressID != "" || s.InlineAddress != nil
}
