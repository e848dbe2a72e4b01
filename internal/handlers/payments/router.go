package payments

import (
	"github.com/go-chi/chi/v5"

	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/middleware"
)

// Routes builds the router for the payment and admin surface
func (h *Handler) Routes(authn *middleware.Authenticator) chi.Router {
	r := chi.NewRouter()

	// Public: the catalog, the idempotent verify endpoint (the reference
	// is the capability), and the signed webhook.
	r.Get("/payments/plans", h.ListPlans)
	r.Post("/payments/verify", h.Verify)
	r.Post("/payments/webhook", h.Webhook)

	r.Group(func(r chi.Router) {
		r.Use(authn.RequireAuth)
		r.Post("/payments/initialize", h.Initialize)
		r.Post("/payments/subscription/cancel", h.Cancel)
		r.Get("/payments/subscription/status", h.Status)
		r.Get("/payments/check-access/{feature}", h.CheckAccess)
		r.Get("/payments/history", h.History)
	})

	r.Group(func(r chi.Router) {
		r.Use(authn.RequireAuth, authn.RequireAdmin)
		r.Get("/admin/bypass", h.ListBypass)
		r.Post("/admin/bypass", h.AddBypass)
		r.Delete("/admin/bypass/{email}", h.RemoveBypass)
	})

	return r
}
