package cart

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

func isOnSale(item models.LineItem) bool {
	return item.SaleEnabled && item.SalePrice > 0 && item.SalePrice < item.Price
}

// UnitPrice is what one unit of item costs after any sale.
func UnitPrice(item models.LineItem) decimal.Decimal {
	if isOnSale(item) {
		return decimal.NewFromFloat(item.SalePrice)
	}
	return decimal.NewFromFloat(item.Price)
}

// LineTotal is UnitPrice times quantity.
func LineTotal(item models.LineItem) decimal.Decimal {
	return UnitPrice(item).Mul(decimal.NewFromInt(int64(item.Quantity)))
}

// Subtotal sums LineTotal over items.
func Subtotal(items []models.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(LineTotal(item))
	}
	return total
}

func validateItem(item models.LineItem) error {
	if strings.TrimSpace(item.ProductID) == "" {
		return apperr.Validation("productId is required")
	}
	if item.Quantity <= 0 {
		return apperr.Validation("quantity must be greater than 0")
	}
	if item.Price <= 0 {
		return apperr.Validation("price must be greater than 0")
	}
	if err := validateSaleFields(item); err != nil {
		return apperr.Validation("%v", err)
	}
	return nil
}

func validateSaleFields(item models.LineItem) error {
	if !item.SaleEnabled {
		return nil
	}
	if item.SalePrice <= 0 {
		return fmt.Errorf("salePrice must be greater than 0")
	}
	if item.SalePrice >= item.Price {
		return fmt.Errorf("salePrice must be less than price")
	}
	return nil
}
