package service_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/smallbiznis/valora-identity/internal/domain"
	"github.com/smallbiznis/valora-identity/internal/jwt"
	"github.com/smallbiznis/valora-identity/internal/password"
	"github.com/smallbiznis/valora-identity/internal/service"
)

func TestLoginIssuesVerifiableToken(t *testing.T) {
	f := newFixture(t)
	f.seedOrganization(t, 1, "Acme")
	f.seedUser(t, 10, 1, "user@acme.test", "password")

	result, err := f.auth.Login(context.Background(), service.LoginRequest{
		Username:     "user@acme.test",
		Password:     "password",
		Organization: "Acme",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	require.Equal(t, domain.ID(10), result.User.ID)
	require.Equal(t, "user@acme.test", result.User.Email)
	require.Equal(t, "First10", result.User.FirstName)

	claims, err := f.generator.ValidateAccessToken(result.Token)
	require.NoError(t, err)
	require.Equal(t, domain.ID(10), claims.ID)
	require.Equal(t, domain.ID(1), claims.Organization)
	require.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
}

func TestLoginFailures(t *testing.T) {
	f := newFixture(t)
	f.seedOrganization(t, 1, "Acme")
	f.seedOrganization(t, 2, "Other")
	f.seedUser(t, 10, 1, "user@acme.test", "password")
	f.seedUser(t, 20, 2, "other@other.test", "password")
	ctx := context.Background()

	cases := []struct {
		name    string
		req     service.LoginRequest
		kind    service.ErrorKind
		status  int
		message string
	}{
		{"missing password", service.LoginRequest{Username: "user@acme.test", Organization: "Acme"}, service.KindValidation, http.StatusBadRequest, "Username, password, and organization are required."},
		{"missing organization", service.LoginRequest{Username: "user@acme.test", Password: "password"}, service.KindValidation, http.StatusBadRequest, "Username, password, and organization are required."},
		{"unknown organization", service.LoginRequest{Username: "user@acme.test", Password: "password", Organization: "Nope"}, service.KindNotFound, http.StatusNotFound, "Organization not found."},
		{"unknown user", service.LoginRequest{Username: "ghost@acme.test", Password: "password", Organization: "Acme"}, service.KindAuthentication, http.StatusUnauthorized, "Authentication failed. User not found in this organization."},
		{"user of another organization", service.LoginRequest{Username: "other@other.test", Password: "password", Organization: "Acme"}, service.KindAuthentication, http.StatusUnauthorized, "Authentication failed. User not found in this organization."},
		{"email in another case", service.LoginRequest{Username: "USER@acme.test", Password: "password", Organization: "Acme"}, service.KindAuthentication, http.StatusUnauthorized, "Authentication failed. User not found in this organization."},
		{"padded organization", service.LoginRequest{Username: "user@acme.test", Password: "password", Organization: "  Acme  "}, service.KindNotFound, http.StatusNotFound, "Organization not found."},
		{"wrong password", service.LoginRequest{Username: "user@acme.test", Password: "nope", Organization: "Acme"}, service.KindAuthentication, http.StatusUnauthorized, "Authentication failed. Invalid credentials."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.auth.Login(ctx, tc.req)
			requireServiceError(t, err, tc.kind, tc.status, tc.message)
		})
	}
}

func TestLoginUpgradesLegacyDigest(t *testing.T) {
	f := newFixture(t)
	f.seedOrganization(t, 1, "Acme")
	legacy, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)
	orgID := domain.ID(1)
	_, err = f.store.CreateUser(context.Background(), domain.User{ID: 10, Email: "old@acme.test", PasswordHash: string(legacy), OrganizationID: &orgID})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = f.auth.Login(ctx, service.LoginRequest{Username: "old@acme.test", Password: "password", Organization: "Acme"})
	require.NoError(t, err)

	user, err := f.store.GetUser(ctx, 10)
	require.NoError(t, err)
	require.False(t, password.NeedsRehash(user.PasswordHash))
	ok, err := password.Verify("password", user.PasswordHash)
	require.NoError(t, err)
	require.True(t, ok)

	digest := user.PasswordHash
	_, err = f.auth.Login(ctx, service.LoginRequest{Username: "old@acme.test", Password: "password", Organization: "Acme"})
	require.NoError(t, err)
	user, err = f.store.GetUser(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, digest, user.PasswordHash)
}

func TestLoginSucceedsWhenRehashFails(t *testing.T) {
	f := newFixture(t)
	f.seedOrganization(t, 1, "Acme")
	legacy, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)
	orgID := domain.ID(1)
	_, err = f.store.CreateUser(context.Background(), domain.User{ID: 10, Email: "old@acme.test", PasswordHash: string(legacy), OrganizationID: &orgID})
	require.NoError(t, err)
	f.failOn("users.set_password")

	result, err := f.auth.Login(context.Background(), service.LoginRequest{Username: "old@acme.test", Password: "password", Organization: "Acme"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
}

func TestLoginStoreFailureIsInternal(t *testing.T) {
	f := newFixture(t)
	f.seedOrganization(t, 1, "Acme")
	f.failOn("organizations.get_by_name")

	_, err := f.auth.Login(context.Background(), service.LoginRequest{Username: "a@b.c", Password: "x", Organization: "Acme"})
	requireServiceError(t, err, service.KindInternal, http.StatusInternalServerError, service.InternalErrorMessage)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, err := f.generator.GenerateAccessToken(10, 1)
	require.NoError(t, err)

	identity, err := f.auth.Authenticate(ctx, token)
	require.NoError(t, err)
	require.Equal(t, domain.ID(10), identity.UserID)
	require.Equal(t, domain.ID(1), identity.OrganizationID)
	require.NotEmpty(t, identity.TokenID)

	_, err = f.auth.Authenticate(ctx, "not-a-token")
	requireServiceError(t, err, service.KindAuthentication, http.StatusUnauthorized, "Token is not valid.")

	past, err := jwt.NewGenerator([]byte(testSecret), "valora-identity", jwt.WithClock(func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	}))
	require.NoError(t, err)
	stale, err := past.GenerateAccessToken(10, 1)
	require.NoError(t, err)
	_, err = f.auth.Authenticate(ctx, stale)
	requireServiceError(t, err, service.KindAuthentication, http.StatusUnauthorized, "Token has expired.")
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, err := f.generator.GenerateAccessToken(10, 1)
	require.NoError(t, err)
	identity, err := f.auth.Authenticate(ctx, token)
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx, identity))

	_, err = f.auth.Authenticate(ctx, token)
	requireServiceError(t, err, service.KindAuthentication, http.StatusUnauthorized, "Token is not valid.")

	other, err := f.generator.GenerateAccessToken(10, 1)
	require.NoError(t, err)
	_, err = f.auth.Authenticate(ctx, other)
	require.NoError(t, err)
}

type brokenRevocations struct{}

func (brokenRevocations) Revoke(context.Context, string, time.Duration) error {
	return errors.New("redis down")
}

func (brokenRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestAuthenticateFailsClosedOnRevocationError(t *testing.T) {
	f := newFixture(t)
	auth := service.NewAuthService(f.store, brokenRevocations{}, f.generator, zap.NewNop())

	token, err := f.generator.GenerateAccessToken(10, 1)
	require.NoError(t, err)

	_, err = auth.Authenticate(context.Background(), token)
	requireServiceError(t, err, service.KindAuthentication, http.StatusUnauthorized, "Token is not valid.")

	err = auth.Logout(context.Background(), f.identity(10, 1))
	requireServiceError(t, err, service.KindInternal, http.StatusInternalServerError, service.InternalErrorMessage)
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	f.seedOrganization(t, 1, "Acme")
	f.seedUser(t, 10, 1, "user@acme.test", "password")
	ctx := context.Background()

	view, err := f.auth.Me(ctx, f.identity(10, 1))
	require.NoError(t, err)
	require.Equal(t, "user@acme.test", view.Email)
	require.Equal(t, domain.ID(1), *view.Association.Organization)

	_, err = f.auth.Me(ctx, f.identity(99, 1))
	requireServiceError(t, err, service.KindNotFound, http.StatusNotFound, "User not found.")
}
