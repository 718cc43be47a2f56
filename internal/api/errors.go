package api

import (
	"net/http"

	"retail-order-service/internal/service"
	"retail-order-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindValidation, service.KindConflict:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// respondError maps a service error to its status and a {message, code} body.
// Causes of unexpected errors are logged, never returned.
func respondError(c *gin.Context, err error) {
	se := service.AsError(err)
	status := statusFor(se.Kind)

	if status == http.StatusInternalServerError && se.Err != nil {
		_ = c.Error(se.Err)
		util.GetLogger().Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(se.Err))
	}

	c.JSON(status, gin.H{
		"message": se.Message,
		"code":    se.Code,
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"message": message,
		"code":    service.CodeInvalidInput,
	})
}
