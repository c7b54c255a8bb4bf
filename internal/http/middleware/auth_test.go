package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/valora-identity/internal/adapter/cache"
	"github.com/smallbiznis/valora-identity/internal/http/middleware"
	"github.com/smallbiznis/valora-identity/internal/jwt"
	"github.com/smallbiznis/valora-identity/internal/repository/inmem"
	"github.com/smallbiznis/valora-identity/internal/service"
)

func newGuardedRouter(t *testing.T) (*gin.Engine, *jwt.Generator, *cache.MemoryRevocationStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	generator, err := jwt.NewGenerator([]byte("middleware-test-secret-0123456789abc"), "valora-identity")
	require.NoError(t, err)
	revocations := cache.NewMemoryRevocationStore()
	auth := &middleware.Auth{AuthService: service.NewAuthService(inmem.NewStore(), revocations, generator, zap.NewNop())}

	router := gin.New()
	router.GET("/whoami", auth.ValidateJWT, func(c *gin.Context) {
		identity, ok := middleware.GetIdentity(c)
		require.True(t, ok)
		fromCtx, ok := middleware.IdentityFromContext(c.Request.Context())
		require.True(t, ok)
		require.Equal(t, identity, fromCtx)
		c.JSON(http.StatusOK, gin.H{"id": identity.UserID, "organization": identity.OrganizationID})
	})
	return router, generator, revocations
}

func call(router *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestValidateJWTAcceptsBearer(t *testing.T) {
	router, generator, _ := newGuardedRouter(t)
	token, err := generator.GenerateAccessToken(42, 7)
	require.NoError(t, err)

	rec := call(router, "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"id":"42","organization":"7"}`, rec.Body.String())

	rec = call(router, "bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestValidateJWTRejects(t *testing.T) {
	router, generator, revocations := newGuardedRouter(t)

	for _, header := range []string{"", "Token abc", "Bearer", "Bearer   "} {
		rec := call(router, header)
		require.Equal(t, http.StatusUnauthorized, rec.Code, header)
		require.JSONEq(t, `{"message":"No token, authorization denied."}`, rec.Body.String())
	}

	rec := call(router, "Bearer garbage")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"message":"Token is not valid."}`, rec.Body.String())

	past, err := jwt.NewGenerator([]byte("middleware-test-secret-0123456789abc"), "valora-identity", jwt.WithClock(func() time.Time {
		return time.Now().Add(-3 * time.Hour)
	}))
	require.NoError(t, err)
	stale, err := past.GenerateAccessToken(42, 7)
	require.NoError(t, err)
	rec = call(router, "Bearer "+stale)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"message":"Token has expired."}`, rec.Body.String())

	token, err := generator.GenerateAccessToken(42, 7)
	require.NoError(t, err)
	claims, err := generator.ValidateAccessToken(token)
	require.NoError(t, err)
	require.NoError(t, revocations.Revoke(context.Background(), claims.TokenID, time.Hour))
	rec = call(router, "Bearer "+token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"message":"Token is not valid."}`, rec.Body.String())
}
