package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront/internal/cart"
	"storefront/internal/checkout"
	"storefront/internal/guard"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/session"
)

// Gateway is everything the loopback API serves.
type Gateway struct {
	Sessions  *session.Manager
	Cart      *cart.Cart
	Checkout  *checkout.Orchestrator
	Addresses checkout.AddressAPI
	Catalog   Catalog
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Routes registers the gateway on r.
func Routes(r *gin.Engine, g Gateway) {
	r.GET("/healthz", Healthz())
	if g.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	checker := guard.New(g.Sessions, g.Logger)
	auth := middleware.RequireSession(checker)

	s := r.Group("/session")
	{
		s.GET("", GetSession(g.Sessions))
		s.POST("/login", Login(g.Sessions))
		s.POST("/admin-login", AdminLogin(g.Sessions))
		s.POST("/register", Register(g.Sessions))
		s.POST("/logout", Logout(g.Sessions))
		s.POST("/verify", Verify(g.Sessions))
	}

	if g.Catalog != nil {
		r.GET("/catalog/products", GetProducts(g.Catalog))
		r.GET("/catalog/campaigns", GetCampaignProducts(g.Catalog))
		r.GET("/catalog/categories", GetCategories(g.Catalog))
	}

	r.GET("/cart", GetCart(g.Cart))
	r.POST("/cart/items", AddCartItem(g.Cart))
	r.PUT("/cart/items/:productId", UpdateCartItem(g.Cart))
	r.DELETE("/cart/items/:productId", RemoveCartItem(g.Cart))
	r.DELETE("/cart", ClearCart(g.Cart))

	co := r.Group("/checkout")
	{
		co.GET("", GetCheckout(g.Checkout))
		co.POST("/begin", BeginCheckout(g.Checkout))
		co.DELETE("", CancelCheckout(g.Checkout))
		co.PUT("/address", auth, UpdateCheckoutAddress(g.Checkout))
		co.PUT("/inline-address", auth, UseInlineAddress(g.Checkout))
		co.PUT("/payment", auth, SelectPayment(g.Checkout))
		co.PUT("/notes", auth, SetCheckoutNotes(g.Checkout))
		co.GET("/review", auth, ReviewCheckout(g.Checkout))
		co.POST("/finalize", auth, FinalizeCheckout(g.Sessions, g.Checkout))
	}

	r.GET("/addresses", auth, GetAddresses(g.Sessions, g.Addresses))
	r.GET("/orders/:id", auth, GetOrder(g.Sessions, g.Checkout))

	admin := r.Group("/admin/api")
	admin.Use(middleware.AdminAuth(checker))
	{
		admin.GET("/me", AdminMe())
	}
}
