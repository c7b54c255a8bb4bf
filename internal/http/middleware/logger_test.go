package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/smallbiznis/valora-identity/internal/http/middleware"
	"github.com/smallbiznis/valora-identity/internal/service"
)

func TestRequestLoggerFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)

	r := gin.New()
	r.Use(middleware.RequestLogger(zap.New(core)))
	r.GET("/things/:id", func(c *gin.Context) {
		identity := service.Identity{UserID: 7, OrganizationID: 3}
		c.Request = c.Request.WithContext(middleware.WithIdentity(c.Request.Context(), identity))
		c.String(http.StatusNotFound, middleware.RequestID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/things/1", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, "req-1", rec.Header().Get(middleware.RequestIDHeader))
	require.Equal(t, "req-1", rec.Body.String())

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	require.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	require.Equal(t, "/things/:id", fields["route"])
	require.Equal(t, "3", fields["org_id"])
	require.Equal(t, "7", fields["user_id"])
}

func TestRequestLoggerAssignsID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)

	r := gin.New()
	r.Use(middleware.RequestLogger(zap.New(core)))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	require.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	require.Equal(t, "unmatched", entries[0].ContextMap()["route"])
}
