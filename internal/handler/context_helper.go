package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/interpreter-booking-api/internal/middleware"
	"github.com/noah-isme/interpreter-booking-api/internal/models"
	appErrors "github.com/noah-isme/interpreter-booking-api/pkg/errors"
	"github.com/noah-isme/interpreter-booking-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext builds the engine actor from the token claims, writing a
// 401 when the route was reached without them.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return models.Actor{
		UserID:    claims.UserID,
		Role:      claims.Role,
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}, true
}
