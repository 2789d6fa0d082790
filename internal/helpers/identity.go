package helpers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joshua-takyi/rondpoint/internal/models"
)

// IdentityProvider verifies a bearer token and says who it belongs to.
type IdentityProvider interface {
	Verify(ctx context.Context, token string) (*models.Identity, error)
}

// JWKSVerifier checks asymmetric tokens against a JSON Web Key Set.
type JWKSVerifier struct {
	jwks     *keyfunc.JWKS
	audience string
}

// NewJWKSVerifier fetches the key set at jwksURL and keeps refreshing it in
// the background until Close is called.
func NewJWKSVerifier(ctx context.Context, jwksURL, audience string, logger *slog.Logger) (*JWKSVerifier, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Warn("jwks refresh failed", "url", jwksURL, "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load jwks from %s: %w", jwksURL, err)
	}
	return &JWKSVerifier{jwks: jwks, audience: audience}, nil
}

// NewJWKSVerifierFromKeys wraps an already built key set.
func NewJWKSVerifierFromKeys(jwks *keyfunc.JWKS, audience string) *JWKSVerifier {
	return &JWKSVerifier{jwks: jwks, audience: audience}
}

func (v *JWKSVerifier) Verify(ctx context.Context, token string) (*models.Identity, error) {
	return parseClaims(token, v.jwks.Keyfunc, v.audience, "RS256", "ES256", "EdDSA")
}

func (v *JWKSVerifier) Close() {
	v.jwks.EndBackground()
}

// HMACVerifier checks tokens signed with the project's shared JWT secret.
type HMACVerifier struct {
	secret   []byte
	audience string
}

func NewHMACVerifier(secret, audience string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret), audience: audience}
}

func (v *HMACVerifier) Verify(ctx context.Context, token string) (*models.Identity, error) {
	return parseClaims(token, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, v.audience, "HS256")
}

func parseClaims(token string, keyFunc jwt.Keyfunc, audience string, methods ...string) (*models.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	claims := &CustomClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, keyFunc, opts...)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %v: %w", err, models.ErrUnauthenticated)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid or expired token: %w", models.ErrUnauthenticated)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject: %w", models.ErrUnauthenticated)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("token has no email: %w", models.ErrUnauthenticated)
	}
	return claims.Identity(), nil
}
