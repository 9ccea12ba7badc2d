package middleware

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/checkout-service/common/auth"
	apperrors "github.com/yashrajoria/checkout-service/common/errors"
	"github.com/yashrajoria/checkout-service/models"
	"github.com/yashrajoria/checkout-service/repository"
	"go.uber.org/zap"
)

const UserContextKey = "user"

var errMissingToken = errors.New("missing bearer token")

// AuthMiddleware resolves the bearer token (or the "token" cookie set by the
// gateway) to a stored user and puts it in the context.
func AuthMiddleware(validator *auth.TokenValidator, users repository.UserRepository, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			apperrors.Respond(c, apperrors.Unauthenticated(errMissingToken))
			return
		}

		userID, err := validator.Subject(token)
		if err != nil {
			apperrors.Respond(c, apperrors.Unauthenticated(err))
			return
		}

		user, err := users.FindByID(c.Request.Context(), userID)
		if errors.Is(err, repository.ErrNotFound) {
			apperrors.Respond(c, apperrors.Unauthenticated(err))
			return
		}
		if err != nil {
			logger.Error("Failed to load user", zap.String("user_id", userID), zap.Error(err))
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}

		c.Set(UserContextKey, user)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
		return ""
	}
	if v, err := c.Cookie("token"); err == nil {
		return v
	}
	return ""
}

// GetUser returns the user stored by AuthMiddleware.
func GetUser(c *gin.Context) (*models.User, bool) {
	val, exists := c.Get(UserContextKey)
	if !exists {
		return nil, false
	}
	user, ok := val.(*models.User)
	return user, ok && user != nil
}

// APIKeyMiddleware guards internal endpoints with the x-api-key header.
func APIKeyMiddleware(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("x-api-key")
		if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			apperrors.Respond(c, apperrors.Unauthenticated(errors.New("invalid api key")))
			return
		}
		c.Next()
	}
}
