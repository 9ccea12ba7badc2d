package routes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/yashrajoria/checkout-service/controllers"
	"github.com/yashrajoria/checkout-service/providers"
	"go.uber.org/zap"
)

type rejectingParser struct{}

func (rejectingParser) ParseWebhook([]byte, string) (*providers.WebhookEvent, error) {
	return nil, errors.New("bad signature")
}

type noopWebhooks struct{}

func (noopWebhooks) HandleEvent(context.Context, *providers.WebhookEvent) error { return nil }

func deny(status int) gin.HandlerFunc {
	return func(c *gin.Context) { c.AbortWithStatus(status) }
}

func TestRegisterCheckoutRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterHealthRoute(r, "checkout-service")
	RegisterCheckoutRoutes(
		r,
		deny(http.StatusUnauthorized),
		deny(http.StatusForbidden),
		controllers.NewCheckoutController(nil, nil, nil),
		controllers.NewWebhookController(rejectingParser{}, noopWebhooks{}, zap.NewNop()),
		controllers.NewRatesController(nil),
	)

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodPost, "/stripe/webhook", http.StatusBadRequest},
		{http.MethodPost, "/stripe/payment-intent/setup", http.StatusUnauthorized},
		{http.MethodPost, "/stripe/place-order", http.StatusUnauthorized},
		{http.MethodPost, "/stripe/taxes/calculate", http.StatusUnauthorized},
		{http.MethodDelete, "/stripe/payment-intent/seti_1/remove", http.StatusUnauthorized},
		{http.MethodGet, "/stripe/user/payment-method", http.StatusUnauthorized},
		{http.MethodPost, "/internal/rates/refresh", http.StatusForbidden},
		{http.MethodGet, "/stripe/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
