package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/certilog/certilog-api/internal/middleware"
	"github.com/certilog/certilog-api/internal/models"
)

// claimsFromContext reads the JWT claims the auth middleware stored. A nil
// result is safe downstream: JWTClaims.Actor handles it and routes that need
// claims sit behind the middleware anyway.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}
