package entitlement

import (
	"encoding/json"
	"net/http"

	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/auth"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain"
)

// RequireFeature returns middleware that short-circuits requests from
// callers without the named feature. Must run after authentication.
func (g *Gate) RequireFeature(feature domain.FeatureKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"code":  string(domain.ErrorCodeAuthMissing),
					"error": "authentication required",
				})
				return
			}

			if !g.HasAccess(r.Context(), identity.UserID, identity.Email, feature) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":        "this feature requires a premium subscription",
					"feature":      string(feature),
					"requiredPlan": "premium",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
