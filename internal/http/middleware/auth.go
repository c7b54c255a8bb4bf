package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/valora-identity/internal/service"
)

const identityKey = "identity"

const msgTokenMissing = "No token, authorization denied."

type identityContextKey struct{}

// Authenticator verifies bearer tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (service.Identity, error)
}

// Auth validates the Authorization header and attaches the caller identity.
type Auth struct {
	AuthService Authenticator
	Logger      *zap.Logger
}

// ValidateJWT ensures the request has a valid, unrevoked bearer token.
func (m *Auth) ValidateJWT(c *gin.Context) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msgTokenMissing})
		return
	}

	identity, err := m.AuthService.Authenticate(c.Request.Context(), strings.TrimSpace(parts[1]))
	if err != nil {
		message := "Token is not valid."
		if svcErr, ok := service.AsError(err); ok && svcErr.Kind == service.KindAuthentication {
			message = svcErr.Message
		} else {
			m.log().Error("authenticate request", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": message})
		return
	}

	c.Set(identityKey, identity)
	c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), identity))
	c.Next()
}

func (m *Auth) log() *zap.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return zap.L()
}

// GetIdentity exposes the authenticated caller to handlers.
func GetIdentity(c *gin.Context) (service.Identity, bool) {
	value, ok := c.Get(identityKey)
	if !ok {
		return IdentityFromContext(c.Request.Context())
	}
	identity, ok := value.(service.Identity)
	return identity, ok
}

// WithIdentity stores the caller identity on a request context.
func WithIdentity(ctx context.Context, identity service.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext reads the identity stored by WithIdentity.
func IdentityFromContext(ctx context.Context) (service.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(service.Identity)
	return identity, ok
}
