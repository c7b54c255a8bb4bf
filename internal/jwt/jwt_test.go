package jwt_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/valora-identity/internal/domain"
	customjwt "github.com/smallbiznis/valora-identity/internal/jwt"
)

const (
	testSecret    = "jwt-test-secret-0123456789abcdefgh"
	foreignSecret = "jwt-foreign-secret-0123456789abcdef"
)

func newGenerator(t *testing.T, secret string, now func() time.Time) *customjwt.Generator {
	t.Helper()
	generator, err := customjwt.NewGenerator([]byte(secret), "valora-identity", customjwt.WithClock(now))
	require.NoError(t, err)
	return generator
}

func TestGeneratorRoundTrip(t *testing.T) {
	issued := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	generator := newGenerator(t, testSecret, func() time.Time { return issued })

	token, err := generator.GenerateAccessToken(domain.ID(99), domain.ID(7))
	require.NoError(t, err)
	require.Len(t, strings.Split(token, "."), 3)

	claims, err := generator.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, domain.ID(99), claims.ID)
	require.Equal(t, domain.ID(7), claims.Organization)
	require.NotEmpty(t, claims.TokenID)
	require.Equal(t, issued.Add(customjwt.AccessTokenTTL), claims.ExpiresAt.UTC())
}

func TestGeneratorUniqueTokenIDs(t *testing.T) {
	generator := newGenerator(t, testSecret, time.Now)

	a, err := generator.GenerateAccessToken(1, 2)
	require.NoError(t, err)
	b, err := generator.GenerateAccessToken(1, 2)
	require.NoError(t, err)

	ca, err := generator.ValidateAccessToken(a)
	require.NoError(t, err)
	cb, err := generator.ValidateAccessToken(b)
	require.NoError(t, err)
	require.NotEqual(t, ca.TokenID, cb.TokenID)
}

func TestValidateExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	generator := newGenerator(t, testSecret, func() time.Time { return clock() })

	token, err := generator.GenerateAccessToken(1, 2)
	require.NoError(t, err)

	clock = func() time.Time { return now.Add(customjwt.AccessTokenTTL + time.Second) }
	_, err = generator.ValidateAccessToken(token)
	require.ErrorIs(t, err, customjwt.ErrTokenExpired)
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	issuer := newGenerator(t, testSecret, time.Now)
	verifier := newGenerator(t, foreignSecret, time.Now)

	token, err := issuer.GenerateAccessToken(1, 2)
	require.NoError(t, err)

	_, err = verifier.ValidateAccessToken(token)
	require.ErrorIs(t, err, customjwt.ErrTokenInvalid)
}

func TestValidateRejectsTampering(t *testing.T) {
	generator := newGenerator(t, testSecret, time.Now)
	token, err := generator.GenerateAccessToken(1, 2)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	other, err := generator.GenerateAccessToken(3, 4)
	require.NoError(t, err)
	parts[1] = strings.Split(other, ".")[1]

	_, err = generator.ValidateAccessToken(strings.Join(parts, "."))
	require.ErrorIs(t, err, customjwt.ErrTokenInvalid)

	for _, garbage := range []string{"", "abc", "a.b.c"} {
		_, err = generator.ValidateAccessToken(garbage)
		require.ErrorIs(t, err, customjwt.ErrTokenInvalid, garbage)
	}
}

func TestNewGeneratorRequiresSecret(t *testing.T) {
	_, err := customjwt.NewGenerator(nil, "x")
	require.Error(t, err)
}

func TestNewGeneratorRejectsShortSecret(t *testing.T) {
	_, err := customjwt.NewGenerator([]byte("a-typical-env-secret"), "x")
	require.ErrorContains(t, err, "at least 32 bytes")

	generator, err := customjwt.NewGenerator([]byte(strings.Repeat("k", customjwt.MinSecretLength)), "x")
	require.NoError(t, err)
	_, err = generator.GenerateAccessToken(1, 2)
	require.NoError(t, err)
}
