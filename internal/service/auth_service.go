package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/smallbiznis/valora-identity/internal/domain"
	"github.com/smallbiznis/valora-identity/internal/jwt"
	"github.com/smallbiznis/valora-identity/internal/metrics"
	pw "github.com/smallbiznis/valora-identity/internal/password"
	"github.com/smallbiznis/valora-identity/internal/repository"
)

// AuthService encapsulates login, token verification and logout.
type AuthService struct {
	instrument
	store       repository.Store
	revocations repository.RevocationStore
	jwt         *jwt.Generator
}

// NewAuthService wires dependencies.
func NewAuthService(store repository.Store, revocations repository.RevocationStore, generator *jwt.Generator, logger *zap.Logger) *AuthService {
	return &AuthService{
		instrument:  newInstrument(logger),
		store:       store,
		revocations: revocations,
		jwt:         generator,
	}
}

// Login authenticates a user within the named organization and issues an access token.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	email, orgName := req.Username, req.Organization
	if email == "" || req.Password == "" || orgName == "" {
		metrics.LoginAttemptsTotal.WithLabelValues(metrics.LoginInvalidRequest).Inc()
		return nil, newError(KindValidation, msgLoginFieldsRequired)
	}

	org, err := s.store.GetOrganizationByName(ctx, orgName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.LoginAttemptsTotal.WithLabelValues(metrics.LoginUnknownOrg).Inc()
			return nil, newError(KindNotFound, msgOrganizationNotFound)
		}
		metrics.LoginAttemptsTotal.WithLabelValues(metrics.LoginError).Inc()
		return nil, s.internal(span, "login", err)
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		metrics.LoginAttemptsTotal.WithLabelValues(metrics.LoginError).Inc()
		return nil, s.internal(span, "login", err)
	}
	if err != nil || !user.BelongsTo(org.ID) {
		metrics.LoginAttemptsTotal.WithLabelValues(metrics.LoginUnknownUser).Inc()
		s.audit("password.login.failure", "org_id", org.ID, "reason", metrics.LoginUnknownUser)
		return nil, newError(KindAuthentication, msgLoginUnknownUser)
	}

	valid, err := pw.Verify(req.Password, user.PasswordHash)
	if err != nil || !valid {
		span.RecordError(fmt.Errorf("invalid password"))
		metrics.LoginAttemptsTotal.WithLabelValues(metrics.LoginInvalidCredential).Inc()
		s.audit("password.login.failure", "org_id", org.ID, "user_id", user.ID, "reason", metrics.LoginInvalidCredential)
		return nil, newError(KindAuthentication, msgLoginInvalidPassword)
	}

	if pw.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user.ID, req.Password)
	}

	token, err := s.jwt.GenerateAccessToken(user.ID, org.ID)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues(metrics.LoginError).Inc()
		return nil, s.internal(span, "login", err)
	}

	metrics.LoginAttemptsTotal.WithLabelValues(metrics.LoginSuccess).Inc()
	s.audit("password.login.success", "org_id", org.ID, "user_id", user.ID)
	return &LoginResult{Token: token, User: newUserSummary(user)}, nil
}

// Authenticate verifies a bearer token and checks it has not been revoked.
func (s *AuthService) Authenticate(ctx context.Context, token string) (Identity, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Authenticate")
	defer span.End()

	claims, err := s.jwt.ValidateAccessToken(token)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, newError(KindAuthentication, msgTokenExpired)
		}
		return Identity{}, newError(KindAuthentication, msgTokenInvalid)
	}

	if s.revocations != nil {
		revoked, err := s.revocations.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			span.RecordError(err)
			s.log().Warn("revocation lookup failed", zap.Error(err))
			return Identity{}, newError(KindAuthentication, msgTokenInvalid)
		}
		if revoked {
			return Identity{}, newError(KindAuthentication, msgTokenInvalid)
		}
	}

	return Identity{
		UserID:         claims.ID,
		OrganizationID: claims.Organization,
		TokenID:        claims.TokenID,
		ExpiresAt:      claims.ExpiresAt,
	}, nil
}

// Logout revokes the caller's token for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, caller Identity) error {
	ctx, span := s.startSpan(ctx, "AuthService.Logout")
	defer span.End()

	if s.revocations == nil {
		return s.internal(span, "logout", fmt.Errorf("revocation store not configured"))
	}
	if err := s.revocations.Revoke(ctx, caller.TokenID, time.Until(caller.ExpiresAt)); err != nil {
		return s.internal(span, "logout", err)
	}
	s.audit("logout", "org_id", caller.OrganizationID, "user_id", caller.UserID)
	return nil
}

// Me returns the caller's own user record.
func (s *AuthService) Me(ctx context.Context, caller Identity) (*UserView, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Me")
	defer span.End()

	user, err := s.store.GetUser(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindNotFound, msgUserNotFound)
		}
		return nil, s.internal(span, "me", err)
	}
	view := newUserView(user)
	return &view, nil
}

// rehash upgrades a legacy digest after a successful login. Failures only cost
// the upgrade, never the login.
func (s *AuthService) rehash(ctx context.Context, userID domain.ID, password string) {
	digest, err := pw.Hash(password)
	if err == nil {
		err = s.store.SetUserPassword(ctx, userID, digest)
	}
	if err != nil {
		s.log().Warn("password rehash failed", zap.String("user_id", userID.String()), zap.Error(err))
		return
	}
	s.audit("password.rehashed", "user_id", userID)
}
