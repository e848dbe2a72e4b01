// Package payments exposes the subscription subsystem over HTTP.
package payments

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/auth"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/catalog"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain/ports"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/services/checkout"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/services/entitlement"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/services/subscription"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/services/verification"
)

const maxBodyBytes = 1 << 20

// Handler serves the payment and entitlement routes
type Handler struct {
	catalog       *catalog.Catalog
	orchestrator  *checkout.Orchestrator
	verifier      *verification.Service
	subscriptions *subscription.Service
	gate          *entitlement.Gate
	bypass        *entitlement.BypassService
	webhook       WebhookVerifier
	logger        ports.Logger
}

// WebhookVerifier validates and parses processor webhook deliveries
type WebhookVerifier interface {
	Verify(body []byte, signature string) (event string, reference string, err error)
}

// NewHandler creates the payments HTTP handler
func NewHandler(
	cat *catalog.Catalog,
	orchestrator *checkout.Orchestrator,
	verifier *verification.Service,
	subscriptions *subscription.Service,
	gate *entitlement.Gate,
	bypass *entitlement.BypassService,
	webhook WebhookVerifier,
	logger ports.Logger,
) *Handler {
	return &Handler{
		catalog:       cat,
		orchestrator:  orchestrator,
		verifier:      verifier,
		subscriptions: subscriptions,
		gate:          gate,
		bypass:        bypass,
		webhook:       webhook,
		logger:        logger,
	}
}

// ListPlans serves the plan catalog. Public.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"plans":   h.catalog.List(),
	})
}

type initializeRequest struct {
	Email    string            `json:"email"`
	PlanID   domain.PlanType   `json:"plan_id"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Initialize starts a checkout for the authenticated caller
func (h *Handler) Initialize(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, domain.ErrAuthMissing)
		return
	}

	var req initializeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	// The token, not the body, decides whose subscription this is.
	email := req.Email
	if email == "" {
		email = identity.Email
	}

	result, err := h.orchestrator.InitiateCheckout(r.Context(), domain.CheckoutRequest{
		Email:    email,
		PlanID:   req.PlanID,
		UserID:   identity.UserID,
		Metadata: req.Metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":           true,
		"reference":         result.Reference,
		"authorization_url": result.CheckoutURL,
		"access_code":       result.AccessCode,
		"test_mode":         result.TestMode,
	})
}

type verifyRequest struct {
	Reference string `json:"reference"`
}

// Verify confirms a payment by reference and activates the
// subscription. Public: possession of the reference is the capability,
// and the operation is idempotent.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.verifier.VerifyAndActivate(r.Context(), req.Reference)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"subscription": result.Subscription,
		"payment":      result.Payment,
	})
}

// Cancel cancels the caller's active subscription
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, domain.ErrAuthMissing)
		return
	}

	sub, err := h.subscriptions.Cancel(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"message":      "subscription cancelled, access continues until the period ends",
		"subscription": sub,
	})
}

// Status returns the caller's subscription summary
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, domain.ErrAuthMissing)
		return
	}

	summary, err := h.subscriptions.Status(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// CheckAccess evaluates one feature for the caller
func (h *Handler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, domain.ErrAuthMissing)
		return
	}

	feature := domain.FeatureKey(chi.URLParam(r, "feature"))
	decision, err := h.gate.Check(r.Context(), identity.UserID, identity.Email, feature)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

// History lists the caller's payment ledger entries
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, domain.ErrAuthMissing)
		return
	}

	limit := int64(50)
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 32); err == nil {
			limit = parsed
		}
	}

	history, err := h.subscriptions.History(r.Context(), identity.UserID, int32(limit))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"payments": history,
	})
}

// Webhook handles processor event deliveries. Signature failures are
// rejected; successfully parsed charge events feed the same idempotent
// verification path the success-page poll uses.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, domain.NewDomainError(domain.ErrorCodeInvalidInput, "unreadable webhook body"))
		return
	}

	event, reference, err := h.webhook.Verify(body, r.Header.Get("X-Paystack-Signature"))
	if err != nil {
		h.logger.Warn("Webhook rejected", ports.Err(err))
		writeError(w, err)
		return
	}

	if event != "charge.success" {
		// Acknowledged but irrelevant; the processor should not redeliver.
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
		return
	}

	if _, err := h.verifier.VerifyAndActivate(r.Context(), reference); err != nil {
		// Idempotent path: an already-activated reference is fine.
		if !domain.IsDomainError(err, domain.ErrorCodeIdempotencyConflict) {
			h.logger.Error("Webhook verification failed",
				ports.String("reference", reference),
				ports.Err(err))
			writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// ListBypass lists bypass entries. Admin only.
func (h *Handler) ListBypass(w http.ResponseWriter, r *http.Request) {
	entries, err := h.bypass.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"entries": entries,
	})
}

type bypassRequest struct {
	Email string `json:"email"`
}

// AddBypass adds an email to the bypass list. Admin only.
func (h *Handler) AddBypass(w http.ResponseWriter, r *http.Request) {
	var req bypassRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	added, err := h.bypass.Add(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if !added {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]interface{}{
		"success": true,
		"added":   added,
	})
}

// RemoveBypass removes an email from the bypass list. Admin only.
func (h *Handler) RemoveBypass(w http.ResponseWriter, r *http.Request) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		writeError(w, domain.NewDomainError(domain.ErrorCodeInvalidInput, "invalid email parameter"))
		return
	}

	removed, err := h.bypass.Remove(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"removed": removed,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, out interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return domain.WrapError(domain.ErrorCodeInvalidInput, "invalid JSON body", err)
	}
	return nil
}
