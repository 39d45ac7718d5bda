package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/cdm-registrar/registrar-api/internal/middleware"
	"github.com/cdm-registrar/registrar-api/internal/models"
)

// claimsFromContext returns the authenticated user's claims, or nil when the
// route was reached without passing the JWT middleware.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}
