package entitlement

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/auth"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain"
)

func TestRequireFeature(t *testing.T) {
	gate := NewGate(&fakeSubs{sub: paidSub()}, &fakeBypass{}, nopLogger{})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	protected := gate.RequireFeature(domain.FeatureUnlimitedChat)(next)

	t.Run("unauthenticated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("entitled", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/chat", nil)
		req = req.WithContext(auth.WithIdentity(req.Context(),
			&auth.Identity{UserID: "user-1", Email: "u@example.com"}))
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("free tier denied", func(t *testing.T) {
		freeGate := NewGate(&fakeSubs{}, &fakeBypass{}, nopLogger{})
		req := httptest.NewRequest(http.MethodGet, "/chat", nil)
		req = req.WithContext(auth.WithIdentity(req.Context(),
			&auth.Identity{UserID: "user-2", Email: "free@example.com"}))
		rec := httptest.NewRecorder()
		freeGate.RequireFeature(domain.FeatureUnlimitedChat)(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "premium")
	})
}
