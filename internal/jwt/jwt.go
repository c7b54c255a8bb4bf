package jwt

import (
	"errors"
	"fmt"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"

	"github.com/smallbiznis/valora-identity/internal/domain"
)

// AccessTokenTTL is the fixed validity window of issued access tokens.
const AccessTokenTTL = time.Hour

const signingAlgorithm = gojose.HS256

// MinSecretLength is the shortest HS256 key go-jose accepts for signing.
const MinSecretLength = 32

var (
	// ErrTokenInvalid covers malformed tokens, bad signatures and unexpected claims.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired is returned once the token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

// AccessTokenClaims represent the identity payload of an access token.
type AccessTokenClaims struct {
	ID           domain.ID `json:"id"`
	Organization domain.ID `json:"organization"`
}

// Claims is the verified content of an access token.
type Claims struct {
	AccessTokenClaims
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Generator is responsible for signing and validating JWTs with a process-wide secret.
type Generator struct {
	secret []byte
	issuer string
	signer gojose.Signer
	now    func() time.Time
}

// Option customises a Generator.
type Option func(*Generator)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// NewGenerator constructs a JWT generator. The secret is copied and never changes afterwards.
func NewGenerator(secret []byte, issuer string, opts ...Option) (*Generator, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes, got %d", MinSecretLength, len(secret))
	}
	key := append([]byte(nil), secret...)

	signer, err := gojose.NewSigner(gojose.SigningKey{Algorithm: signingAlgorithm, Key: key}, (&gojose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return nil, fmt.Errorf("new signer: %w", err)
	}

	g := &Generator{secret: key, issuer: issuer, signer: signer, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// GenerateAccessToken produces a signed JWT for the user and organization.
func (g *Generator) GenerateAccessToken(userID, orgID domain.ID) (string, error) {
	now := g.now().UTC()
	stdClaims := gojwt.Claims{
		ID:        uuid.NewString(),
		Subject:   userID.String(),
		Issuer:    g.issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		NotBefore: gojwt.NewNumericDate(now),
		Expiry:    gojwt.NewNumericDate(now.Add(AccessTokenTTL)),
	}
	custom := AccessTokenClaims{ID: userID, Organization: orgID}

	token, err := gojwt.Signed(g.signer).Claims(stdClaims).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize jwt: %w", err)
	}
	return token, nil
}

// ValidateAccessToken ensures the token is valid and returns its claims.
func (g *Generator) ValidateAccessToken(token string) (*Claims, error) {
	parsed, err := gojwt.ParseSigned(token, []gojose.SignatureAlgorithm{signingAlgorithm})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", ErrTokenInvalid)
	}

	var std gojwt.Claims
	var custom AccessTokenClaims
	if err := parsed.Claims(g.secret, &std, &custom); err != nil {
		return nil, fmt.Errorf("verify token: %w", ErrTokenInvalid)
	}

	if err := std.ValidateWithLeeway(gojwt.Expected{Issuer: g.issuer, Time: g.now()}, 0); err != nil {
		if errors.Is(err, gojwt.ErrExpired) {
			return nil, fmt.Errorf("validate claims: %w", ErrTokenExpired)
		}
		return nil, fmt.Errorf("validate claims: %w", ErrTokenInvalid)
	}

	if custom.ID <= 0 || custom.Organization <= 0 || std.Subject != custom.ID.String() {
		return nil, fmt.Errorf("validate payload: %w", ErrTokenInvalid)
	}

	claims := &Claims{AccessTokenClaims: custom, TokenID: std.ID}
	if std.IssuedAt != nil {
		claims.IssuedAt = std.IssuedAt.Time()
	}
	if std.Expiry != nil {
		claims.ExpiresAt = std.Expiry.Time()
	}
	return claims, nil
}
