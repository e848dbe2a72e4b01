package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the state of a ledger entry
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSuccess   PaymentStatus = "success"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// Payment is an append-only ledger entry. Every success row pairs with
// exactly one subscription activated in the same transaction.
type Payment struct {
	ID                 string            `json:"id"`
	UserID             string            `json:"user_id"`
	SubscriptionID     *string           `json:"subscription_id,omitempty"`
	ProcessorReference string            `json:"processor_reference"`
	Amount             decimal.Decimal   `json:"amount"`
	Currency           string            `json:"currency"`
	Status             PaymentStatus     `json:"status"`
	PaymentMethod      string            `json:"payment_method"`
	Description        string            `json:"description"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}

// AttemptStatus tracks a checkout attempt through its lifecycle
type AttemptStatus string

const (
	AttemptStatusInitialized AttemptStatus = "initialized"
	AttemptStatusAuthorized  AttemptStatus = "authorized"
	AttemptStatusVerified    AttemptStatus = "verified"
	AttemptStatusFailed      AttemptStatus = "failed"
)

// CheckoutPath identifies which orchestrator path produced a result
type CheckoutPath string

const (
	PathBackend CheckoutPath = "backend"
	PathDirect  CheckoutPath = "direct"
	PathTest    CheckoutPath = "test"
)

// CheckoutRequest carries the caller's intent into the orchestrator
type CheckoutRequest struct {
	Email    string            `json:"email" validate:"required,email"`
	PlanID   PlanType          `json:"plan_id" validate:"required"`
	UserID   string            `json:"user_id" validate:"required"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CheckoutResult is the outcome of a successful initialization: the user
// is redirected to CheckoutURL and comes back with Reference.
type CheckoutResult struct {
	Reference   string       `json:"reference"`
	CheckoutURL string       `json:"checkout_url"`
	AccessCode  string       `json:"access_code,omitempty"`
	Path        CheckoutPath `json:"path"`
	TestMode    bool         `json:"test_mode"`
}
