// Package auth verifies the bearer tokens issued by the main
// application API and exposes the caller identity to handlers via the
// request context.
package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain"
)

// Identity is the authenticated caller extracted from a bearer token
type Identity struct {
	UserID string
	Email  string
	Admin  bool
}

// Claims are the token claims issued by the application API
type Claims struct {
	Email string `json:"email"`
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HMAC-signed bearer tokens
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates a token verifier
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses and validates a bearer token and returns the caller
// identity. Any parse or validation failure maps to AUTH_INVALID.
func (v *Verifier) Verify(tokenString string) (*Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeAuthInvalid, "invalid token", err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeAuthInvalid, "invalid token")
	}

	return &Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Admin:  claims.Scope == "admin",
	}, nil
}

type contextKey struct{}

// WithIdentity attaches the caller identity to the context
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IdentityFromContext returns the caller identity, if any
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*Identity)
	return id, ok
}
