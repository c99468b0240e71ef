package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PostWebhook
// POST /webhooks/:provider
//
// The raw body is read before any decoding so signature verification runs
// over the exact bytes the platform signed.
func (s *Server) PostWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	provider := c.Param("provider")
	if err := s.webhookSvc.IngestWebhook(c.Request.Context(), provider, payload, c.Request.Header); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
