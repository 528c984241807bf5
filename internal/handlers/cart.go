package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/cart"
	"storefront/internal/models"
)

type cartItemRequest struct {
	ProductID   string  `json:"productId" binding:"required"`
	Name        string  `json:"name"`
	Price       float64 `json:"price" binding:"required"`
	SaleEnabled bool    `json:"saleEnabled"`
	SalePrice   float64 `json:"salePrice"`
	Quantity    int     `json:"quantity" binding:"required"`
	ImagePath   string  `json:"imagePath"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func cartResponse(c *gin.Context, items *cart.Cart) {
	lines, err := items.CurrentItems(c.Request.Context())
	if err != nil {
		respondWithErr(c, "cart", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items": lines,
		"count": items.Count(),
		"total": items.Total().InexactFloat64(),
	})
}

func GetCart(items *cart.Cart) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, "GET /cart")
		cartResponse(c, items)
	}
}

func AddCartItem(items *cart.Cart) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /cart/items"
		defer handlePanic(c, route)

		var req cartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}
		err := items.Add(models.LineItem{
			ProductID:   req.ProductID,
			Name:        req.Name,
			Price:       req.Price,
			SaleEnabled: req.SaleEnabled,
			SalePrice:   req.SalePrice,
			Quantity:    req.Quantity,
			ImagePath:   req.ImagePath,
		})
		if err != nil {
			respondWithErr(c, route, err)
			return
		}
		cartResponse(c, items)
	}
}

func UpdateCartItem(items *cart.Cart) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /cart/items/:productId"
		defer handlePanic(c, route)

		var req quantityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}
		if err := items.SetQuantity(c.Param("productId"), *req.Quantity); err != nil {
			respondWithErr(c, route, err)
			return
		}
		cartResponse(c, items)
	}
}

func RemoveCartItem(items *cart.Cart) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, "DELETE /cart/items/:productId")
		items.Remove(c.Param("productId"))
		cartResponse(c, items)
	}
}

func ClearCart(items *cart.Cart) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /cart"
		defer handlePanic(c, route)
		if err := items.Clear(c.Request.Context()); err != nil {
			respondWithErr(c, route, err)
			return
		}
		cartResponse(c, items)
	}
}
