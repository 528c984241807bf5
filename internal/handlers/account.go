package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/checkout"
	"storefront/internal/middleware"
)

func GetAddresses(sessions Renewer, addresses checkout.AddressAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /addresses"
		defer handlePanic(c, route)

		list, err := addresses.ListAddresses(c.Request.Context())
		if err != nil {
			renewOnUnauthorized(c, sessions, route, err)
			respondWithErr(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"addresses": list})
	}
}

func GetOrder(sessions Renewer, flow *checkout.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/:id"
		defer handlePanic(c, route)

		record, err := flow.OrderStatus(c.Request.Context(), c.Param("id"))
		if err != nil {
			renewOnUnauthorized(c, sessions, route, err)
			respondWithErr(c, route, err)
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

func AdminMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, _ := middleware.CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"ok": true, "user": user})
	}
}

func Healthz() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
