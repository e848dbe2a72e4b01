package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"

	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain"
)

// SignatureHeader is the header carrying the processor's HMAC signature
const SignatureHeader = "X-Paystack-Signature"

// VerifySignature checks the HMAC-SHA512 signature the processor sends
// with every webhook delivery. Comparison is constant-time.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// WebhookEvent is the envelope of a processor webhook delivery
type WebhookEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ChargeEventData is the payload of charge.* events
type ChargeEventData struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// ParseWebhook decodes a webhook body into its event envelope
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// WebhookVerifier bundles signature verification and event parsing
type WebhookVerifier struct {
	secret string
}

// NewWebhookVerifier creates a verifier for the given signing secret
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

// Verify checks the delivery signature and extracts the event name and
// transaction reference. An invalid signature maps to AUTH_INVALID.
func (v *WebhookVerifier) Verify(body []byte, signature string) (string, string, error) {
	if !VerifySignature(v.secret, body, signature) {
		return "", "", domain.NewDomainError(domain.ErrorCodeAuthInvalid, "invalid webhook signature")
	}

	event, err := ParseWebhook(body)
	if err != nil {
		return "", "", domain.WrapError(domain.ErrorCodeInvalidInput, "undecodable webhook body", err)
	}

	var charge ChargeEventData
	if len(event.Data) > 0 {
		if err := json.Unmarshal(event.Data, &charge); err != nil {
			return "", "", domain.WrapError(domain.ErrorCodeInvalidInput, "undecodable webhook payload", err)
		}
	}

	return event.Event, charge.Reference, nil
}
