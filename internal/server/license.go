package server

import (
	"github.com/bwmarrin/snowflake"
	tenantdomain "github.com/checklanehq/checklane/internal/tenant/domain"
	"github.com/gin-gonic/gin"
)

// GetLicenseUsage
// GET /api/tenants/:id/license
func (s *Server) GetLicenseUsage(c *gin.Context) {
	tenantID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, tenantdomain.ErrInvalidTenantID)
		return
	}

	usage, err := s.licenseSvc.Usage(c.Request.Context(), tenantID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, usage)
}
