package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/checklanehq/checklane/internal/billing/domain"
	"github.com/gin-gonic/gin"
)

// ResendSetupToken
// POST /admin/setup-tokens/:id/resend
func (s *Server) ResendSetupToken(c *gin.Context) {
	tokenID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, billingdomain.ErrTokenNotFound)
		return
	}

	if err := s.setupTokens.Resend(c.Request.Context(), tokenID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"resent": true})
}
