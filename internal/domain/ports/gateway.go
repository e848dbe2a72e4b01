package ports

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain"
)

// HTTPClient abstracts *http.Client for testing
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// InitializeRequest carries everything the processor needs to open a
// checkout session
type InitializeRequest struct {
	Email       string
	Amount      decimal.Decimal
	Currency    string
	PlanCode    string
	Reference   string
	CallbackURL string
	Metadata    map[string]string
}

// InitializeResult is the processor's checkout handle
type InitializeResult struct {
	CheckoutURL string
	AccessCode  string
	Reference   string
}

// VerifyResult is the processor's authoritative view of a transaction
type VerifyResult struct {
	Reference string
	Success   bool
	Status    string
	Channel   string
	Amount    decimal.Decimal
	Currency  string
	PlanType  domain.PlanType
	Raw       map[string]interface{}
}

// ProcessorGateway wraps the external payment processor. Every call is
// side-effecting exactly once per invocation; retry policy lives in the
// orchestrator, never here.
type ProcessorGateway interface {
	InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeResult, error)
	VerifyTransaction(ctx context.Context, reference string) (*VerifyResult, error)
	CreateSubscription(ctx context.Context, customerEmail, planCode, authorizationCode string) (string, error)
	CancelSubscription(ctx context.Context, processorSubscriptionID string) error
}

// BackendInitializer is the preferred initialization path: the
// application backend holds the processor secret and performs the call
// server-side.
type BackendInitializer interface {
	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error)
}
