package models

// LineItem is one product in the cart snapshot. SalePrice applies only while
// SaleEnabled is set and it undercuts Price.
type LineItem struct {
	ProductID   string  `json:"productId"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	SaleEnabled bool    `json:"saleEnabled,omitempty"`
	SalePrice   float64 `json:"salePrice,omitempty"`
	Quantity    int     `json:"quantity"`
	ImagePath   string  `json:"imagePath,omitempty"`
}
