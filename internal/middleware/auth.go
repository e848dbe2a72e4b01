package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/auth"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain/ports"
)

// Authenticator validates bearer tokens and attaches the caller
// identity to the request context
type Authenticator struct {
	verifier *auth.Verifier
	logger   ports.Logger
}

// NewAuthenticator creates auth middleware around a token verifier
func NewAuthenticator(verifier *auth.Verifier, logger ports.Logger) *Authenticator {
	return &Authenticator{verifier: verifier, logger: logger}
}

// RequireAuth rejects requests without a valid bearer token
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeAuthError(w, http.StatusUnauthorized, domain.ErrorCodeAuthMissing, "authentication required")
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeAuthError(w, http.StatusUnauthorized, domain.ErrorCodeAuthInvalid, "malformed authorization header")
			return
		}

		identity, err := a.verifier.Verify(token)
		if err != nil {
			a.logger.Debug("Token verification failed", ports.Err(err))
			writeAuthError(w, http.StatusUnauthorized, domain.ErrorCodeAuthInvalid, "invalid authentication")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
	})
}

// RequireAdmin rejects authenticated callers without the admin scope.
// Must run after RequireAuth.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, domain.ErrorCodeAuthMissing, "authentication required")
			return
		}
		if !identity.Admin {
			writeAuthError(w, http.StatusForbidden, domain.ErrorCodeFeatureForbidden, "admin scope required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeAuthError(w http.ResponseWriter, status int, code domain.ErrorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":  string(code),
		"error": message,
	})
}
