package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/checkout-service/controllers"
)

// RegisterCheckoutRoutes sets up the checkout, webhook and internal routes.
func RegisterCheckoutRoutes(
	r *gin.Engine,
	auth gin.HandlerFunc,
	internal gin.HandlerFunc,
	cc *controllers.CheckoutController,
	wc *controllers.WebhookController,
	rc *controllers.RatesController,
) {
	stripe := r.Group("/stripe")

	// Stripe webhook (no auth, signature checked by the controller)
	stripe.POST("/webhook", wc.HandleStripeWebhook)

	protected := stripe.Group("")
	protected.Use(auth)
	protected.POST("/payment-intent/setup", cc.SetupPaymentIntent)
	protected.DELETE("/payment-intent/:setupIntentId/remove", cc.RemovePaymentIntent)
	protected.GET("/user/payment-method", cc.ListPaymentMethods)
	protected.POST("/taxes/calculate", cc.CalculateTaxes)
	protected.POST("/place-order", cc.PlaceOrder)

	ops := r.Group("/internal")
	ops.Use(internal)
	ops.POST("/rates/refresh", rc.Refresh)
}

// RegisterHealthRoute exposes the liveness probe.
func RegisterHealthRoute(r *gin.Engine, service string) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": service})
	})
}
