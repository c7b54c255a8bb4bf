package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/valora-identity/internal/http/middleware"
	"github.com/smallbiznis/valora-identity/internal/service"
)

const msgInvalidPayload = "Invalid request payload."

func respondError(c *gin.Context, err error) {
	if svcErr, ok := service.AsError(err); ok && svcErr.Kind != service.KindInternal {
		c.JSON(svcErr.Status(), gin.H{"message": svcErr.Message})
		return
	}
	_ = c.Error(err)
	zap.L().Error("request failed",
		zap.String("request_id", middleware.RequestID(c)),
		zap.String("method", c.Request.Method),
		zap.String("route", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"message": service.InternalErrorMessage})
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}

// bindJSON decodes the body into dst. An empty body leaves dst zero-valued so the
// service reports the missing fields.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		respondMessage(c, http.StatusBadRequest, msgInvalidPayload)
		return false
	}
	return true
}

func callerIdentity(c *gin.Context) (service.Identity, bool) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "No token, authorization denied."})
		return service.Identity{}, false
	}
	return identity, true
}
