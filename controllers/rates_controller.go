package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/yashrajoria/checkout-service/common/errors"
	"github.com/yashrajoria/checkout-service/services"
)

type RatesController struct {
	refresher services.RateRefresher
}

func NewRatesController(refresher services.RateRefresher) *RatesController {
	return &RatesController{refresher: refresher}
}

// Refresh handles POST /internal/rates/refresh
func (rc *RatesController) Refresh(c *gin.Context) {
	refreshed, failed, err := rc.refresher.RefreshStale(c.Request.Context())
	if err != nil {
		apperrors.Respond(c, apperrors.Internal(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"refreshed": refreshed, "failed": failed}})
}
