package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/seduc-go/academia-api/internal/middleware"
	"github.com/seduc-go/academia-api/internal/models"
)

// claimsFromContext pulls the authenticated operator's claims set by
// the JWT middleware. Nil means the route ran without authentication.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}
