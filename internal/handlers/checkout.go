package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/checkout"
	"storefront/internal/models"
)

type beginCheckoutRequest struct {
	DeliveryType string `json:"deliveryType" binding:"required"`
	AddressID    string `json:"addressId"`
}

type addressRequest struct {
	AddressID string `json:"addressId" binding:"required"`
}

type inlineAddressRequest struct {
	Title  string `json:"title" binding:"required"`
	Detail string `json:"detail" binding:"required"`
	Note   string `json:"note"`
}

type paymentRequest struct {
	Method string `json:"method" binding:"required"`
}

type notesRequest struct {
	Notes string `json:"notes"`
}

type checkoutResponse struct {
	State     checkout.State            `json:"state"`
	Active    bool                      `json:"active"`
	Selection *models.CheckoutSelection `json:"selection,omitempty"`
	LastOrder *models.OrderRecord       `json:"lastOrder,omitempty"`
	Error     string                    `json:"error,omitempty"`
}

func checkoutView(flow *checkout.Orchestrator) checkoutResponse {
	resp := checkoutResponse{}
	if sel, ok := flow.Selection(); ok {
		resp.Active = true
		resp.Selection = &sel
	}
	resp.State = flow.State()
	if order, ok := flow.LastOrder(); ok {
		resp.LastOrder = &order
	}
	if err := flow.LastError(); err != nil && resp.State == checkout.Failed {
		resp.Error = err.Error()
	}
	return resp
}

func GetCheckout(flow *checkout.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, "GET /checkout")
		c.JSON(http.StatusOK, checkoutView(flow))
	}
}

func BeginCheckout(flow *checkout.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /checkout/begin"
		defer handlePanic(c, route)

		var req beginCheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}
		if _, err := flow.BeginCheckout(c.Request.Context(), models.DeliveryType(req.DeliveryType), req.AddressID); err != nil {
			respondWithErr(c, route, err)
			return
		}
		c.JSON(http.StatusCreated, checkoutView(flow))
	}
}

// bindAndMutate binds req and applies mutate, answering with the checkout
// view.
func bindAndMutate[T any](route string, mutate func(c *gin.Context, req T) error, flow *checkout.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, route)

		var req T
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}
		if err := mutate(c, req); err != nil {
			respondWithErr(c, route, err)
			return
		}
		c.JSON(http.StatusOK, checkoutView(flow))
	}
}

func UpdateCheckoutAddress(flow *checkout.Orchestrator) gin.HandlerFunc {
	return bindAndMutate("PUT /checkout/address", func(c *gin.Context, req addressRequest) error {
		_, err := flow.UpdateAddress(c.Request.Context(), req.AddressID)
		return err
	}, flow)
}

func UseInlineAddress(flow *checkout.Orchestrator) gin.HandlerFunc {
	return bindAndMutate("PUT /checkout/inline-address", func(c *gin.Context, req inlineAddressRequest) error {
		_, err := flow.UseInlineAddress(c.Request.Context(), models.InlineAddress{Title: req.Title, Detail: req.Detail, Note: req.Note})
		return err
	}, flow)
}

func SelectPayment(flow *checkout.Orchestrator) gin.HandlerFunc {
	return bindAndMutate("PUT /checkout/payment", func(c *gin.Context, req paymentRequest) error {
		_, err := flow.SelectPayment(c.Request.Context(), models.PaymentMethod(req.Method))
		return err
	}, flow)
}

func SetCheckoutNotes(flow *checkout.Orchestrator) gin.HandlerFunc {
	return bindAndMutate("PUT /checkout/notes", func(c *gin.Context, req notesRequest) error {
		_, err := flow.SetNotes(c.Request.Context(), req.Notes)
		return err
	}, flow)
}

func ReviewCheckout(flow *checkout.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /checkout/review"
		defer handlePanic(c, route)

		dto, err := flow.Review(c.Request.Context())
		if err != nil {
			respondWithErr(c, route, err)
			return
		}
		resp := gin.H{"order": dto, "state": flow.State()}
		if addr, ok, err := flow.SelectedAddress(c.Request.Context()); err == nil && ok {
			resp["address"] = addr
		}
		c.JSON(http.StatusOK, resp)
	}
}

// FinalizeCheckout submits the order. A rejected token triggers a renewal but
// the order is left for the user to resubmit.
func FinalizeCheckout(sessions Renewer, flow *checkout.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /checkout/finalize"
		defer handlePanic(c, route)

		record, err := flow.Finalize(c.Request.Context())
		if err != nil {
			renewOnUnauthorized(c, sessions, route, err)
			respondWithErr(c, route, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"orderId": record.ID,
			"order":   record,
			"message": "order created",
		})
	}
}

func CancelCheckout(flow *checkout.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, "DELETE /checkout")
		flow.Cancel(c.Request.Context())
		c.JSON(http.StatusOK, checkoutView(flow))
	}
}
