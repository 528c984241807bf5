package models

// Product is a catalog entry as listed by GET /products.
type Product struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Price       float64    `json:"price"`
	SaleEnabled bool       `json:"saleEnabled"`
	SalePrice   float64    `json:"salePrice"`
	IsOnSale    bool       `json:"isOnSale"`
	Category    StringList `json:"category"`
	Description string     `json:"description,omitempty"`
	Brand       string     `json:"brand,omitempty"`
	ImagePath   string     `json:"imagePath,omitempty"`
	Stock       int        `json:"stock"`
	InStock     bool       `json:"inStock"`
	IsCampaign  bool       `json:"isCampaign"`
}

// ProductQuery filters a catalog listing. Zero values are not sent.
type ProductQuery struct {
	Page     int64
	Limit    int64
	Category string
	Search   string
}
