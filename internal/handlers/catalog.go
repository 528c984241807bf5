package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/models"
)

// Catalog is the read-only product listing of the backend.
type Catalog interface {
	ListProducts(ctx context.Context, q models.ProductQuery) ([]models.Product, error)
	ListCampaignProducts(ctx context.Context) ([]models.Product, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
}

func GetProducts(catalog Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /catalog/products"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithErr(c, route, err)
			return
		}

		products, err := catalog.ListProducts(c.Request.Context(), models.ProductQuery{
			Page:     page,
			Limit:    limit,
			Category: strings.TrimSpace(c.Query("category")),
			Search:   strings.TrimSpace(c.Query("search")),
		})
		if err != nil {
			respondWithErr(c, route, err)
			return
		}
		c.JSON(http.StatusOK, products)
	}
}

func GetCampaignProducts(catalog Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /catalog/campaigns"
		defer handlePanic(c, route)

		products, err := catalog.ListCampaignProducts(c.Request.Context())
		if err != nil {
			respondWithErr(c, route, err)
			return
		}
		c.JSON(http.StatusOK, products)
	}
}

func GetCategories(catalog Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /catalog/categories"
		defer handlePanic(c, route)

		categories, err := catalog.ListCategories(c.Request.Context())
		if err != nil {
			respondWithErr(c, route, err)
			return
		}
		c.JSON(http.StatusOK, categories)
	}
}
