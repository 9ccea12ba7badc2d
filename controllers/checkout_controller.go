package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/yashrajoria/checkout-service/common/errors"
	"github.com/yashrajoria/checkout-service/middleware"
	"github.com/yashrajoria/checkout-service/models"
	"github.com/yashrajoria/checkout-service/services"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"

	orderPlacedMessage   = "Orders placed successfully"
	intentDeletedMessage = "Payment intent deleted successfully"
)

type messageResponse struct {
	Message string `json:"message"`
}

type placeOrderResponse struct {
	Message string `json:"message"`
	*models.PlaceOrderOutcome
}

// CheckoutController serves the /stripe checkout endpoints.
type CheckoutController struct {
	payments services.PaymentIntentService
	checkout services.CheckoutService
	taxes    services.TaxService
}

func NewCheckoutController(payments services.PaymentIntentService, checkout services.CheckoutService, taxes services.TaxService) *CheckoutController {
	return &CheckoutController{payments: payments, checkout: checkout, taxes: taxes}
}

// SetupPaymentIntent handles POST /stripe/payment-intent/setup
func (cc *CheckoutController) SetupPaymentIntent(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	rec, appErr := cc.payments.EnsureSetupIntent(c.Request.Context(), user)
	if appErr != nil {
		apperrors.Respond(c, appErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": rec})
}

// RemovePaymentIntent handles DELETE /stripe/payment-intent/:setupIntentId/remove
func (cc *CheckoutController) RemovePaymentIntent(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	if appErr := cc.payments.Cancel(c.Request.Context(), user, c.Param("setupIntentId")); appErr != nil {
		apperrors.Respond(c, appErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": messageResponse{Message: intentDeletedMessage}})
}

// ListPaymentMethods handles GET /stripe/user/payment-method
func (cc *CheckoutController) ListPaymentMethods(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	methods, appErr := cc.payments.ListSavedMethods(c.Request.Context(), user)
	if appErr != nil {
		apperrors.Respond(c, appErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": methods})
}

// CalculateTaxes handles POST /stripe/taxes/calculate
func (cc *CheckoutController) CalculateTaxes(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.CalculateTaxesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, apperrors.Validation(err))
		return
	}

	breakdown, appErr := cc.taxes.CalculateCartTaxes(c.Request.Context(), user, req.AddressID)
	if appErr != nil {
		apperrors.Respond(c, appErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": breakdown})
}

// PlaceOrder handles POST /stripe/place-order
func (cc *CheckoutController) PlaceOrder(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, apperrors.Validation(err))
		return
	}

	outcome, appErr := cc.checkout.PlaceOrder(c.Request.Context(), user, &req, c.GetHeader(IdempotencyKeyHeader))
	if appErr != nil {
		apperrors.Respond(c, appErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": placeOrderResponse{Message: orderPlacedMessage, PlaceOrderOutcome: outcome}})
}

func requireUser(c *gin.Context) (*models.User, bool) {
	user, ok := middleware.GetUser(c)
	if !ok {
		apperrors.Respond(c, apperrors.Unauthenticated(nil))
		return nil, false
	}
	return user, true
}
