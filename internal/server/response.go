package server

import (
	"errors"
	"net/http"

	billingdomain "github.com/checklanehq/checklane/internal/billing/domain"
	tenantdomain "github.com/checklanehq/checklane/internal/tenant/domain"
	"github.com/gin-gonic/gin"
)

func respondData(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// AbortWithError maps domain errors to HTTP statuses. Unknown errors become an
// opaque 500 so internals never leak to callers.
func AbortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, billingdomain.ErrProviderNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, billingdomain.ErrInvalidSignature),
		errors.Is(err, billingdomain.ErrInvalidPayload),
		errors.Is(err, billingdomain.ErrInvalidEvent):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, billingdomain.ErrTokenNotFound),
		errors.Is(err, tenantdomain.ErrTenantNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, billingdomain.ErrTokenNotRedeemable):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, tenantdomain.ErrInvalidTenantID):
		status, message = http.StatusBadRequest, err.Error()
	}

	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
