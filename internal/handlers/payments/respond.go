package payments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps domain error codes to HTTP status codes and renders a
// stable JSON error envelope. Internal detail never leaks: unknown
// errors render a generic message.
func writeError(w http.ResponseWriter, err error) {
	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"code":    string(domain.ErrorCodeInternalError),
			"error":   "internal server error",
		})
		return
	}

	writeJSON(w, statusFor(domainErr.Code), map[string]interface{}{
		"success": false,
		"code":    string(domainErr.Code),
		"error":   domainErr.Message,
	})
}

func statusFor(code domain.ErrorCode) int {
	switch code {
	case domain.ErrorCodeInvalidInput:
		return http.StatusBadRequest
	case domain.ErrorCodeAuthMissing, domain.ErrorCodeAuthInvalid:
		return http.StatusUnauthorized
	case domain.ErrorCodeFeatureForbidden:
		return http.StatusForbidden
	case domain.ErrorCodeSubscriptionNotFound, domain.ErrorCodeReferenceNotFound:
		return http.StatusNotFound
	case domain.ErrorCodePaymentNotSuccessful, domain.ErrorCodeProcessorRejected:
		return http.StatusPaymentRequired
	case domain.ErrorCodeIdempotencyConflict, domain.ErrorCodeSubscriptionInactive:
		return http.StatusConflict
	case domain.ErrorCodeProcessorNetwork, domain.ErrorCodeBackendUnavailable:
		return http.StatusServiceUnavailable
	case domain.ErrorCodeProcessorMalformed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
