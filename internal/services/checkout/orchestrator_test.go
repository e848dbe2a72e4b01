package checkout

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/catalog"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain/ports"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...ports.Field)  {}
func (nopLogger) Error(string, ...ports.Field) {}
func (nopLogger) Warn(string, ...ports.Field)  {}
func (nopLogger) Debug(string, ...ports.Field) {}

type fakeBackend struct {
	calls  int
	result *ports.InitializeResult
	err    error
}

func (f *fakeBackend) Initialize(_ context.Context, req ports.InitializeRequest) (*ports.InitializeResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	if res.Reference == "" {
		res.Reference = req.Reference
	}
	return &res, nil
}

type fakeGateway struct {
	initCalls int
	initReqs  []ports.InitializeRequest
	result    *ports.InitializeResult
	err       error
}

func (f *fakeGateway) InitializeTransaction(_ context.Context, req ports.InitializeRequest) (*ports.InitializeResult, error) {
	f.initCalls++
	f.initReqs = append(f.initReqs, req)
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	if res.Reference == "" {
		res.Reference = req.Reference
	}
	return &res, nil
}

func (f *fakeGateway) VerifyTransaction(context.Context, string) (*ports.VerifyResult, error) {
	panic("not used")
}

func (f *fakeGateway) CreateSubscription(context.Context, string, string, string) (string, error) {
	panic("not used")
}

func (f *fakeGateway) CancelSubscription(context.Context, string) error {
	panic("not used")
}

type fakeLedger struct {
	created []*domain.Payment
	err     error
}

func (f *fakeLedger) Create(_ context.Context, _ pgx.Tx, p *domain.Payment) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, p)
	return nil
}

func (f *fakeLedger) GetSuccessByReference(context.Context, pgx.Tx, string) (*domain.Payment, error) {
	return nil, domain.NewDomainError(domain.ErrorCodeReferenceNotFound, "not found")
}

func (f *fakeLedger) GetByReference(context.Context, pgx.Tx, string) (*domain.Payment, error) {
	return nil, domain.NewDomainError(domain.ErrorCodeReferenceNotFound, "not found")
}

func (f *fakeLedger) ListByUser(context.Context, pgx.Tx, string, int32) ([]*domain.Payment, error) {
	return nil, nil
}

func validRequest() domain.CheckoutRequest {
	return domain.CheckoutRequest{
		Email:  "user@example.com",
		PlanID: domain.PlanMonthly,
		UserID: "user-1",
	}
}

func newOrchestrator(backend *fakeBackend, gateway *fakeGateway, ledger *fakeLedger, testMode bool) *Orchestrator {
	cat := catalog.New("USD", "PLN_m", "PLN_a")
	return NewOrchestrator(cat, backend, gateway, ledger, nopLogger{},
		"https://app.example.com/payment/callback", "USD", testMode)
}

func TestInitiateCheckoutBackendPath(t *testing.T) {
	backend := &fakeBackend{result: &ports.InitializeResult{CheckoutURL: "https://pay/1"}}
	gateway := &fakeGateway{}

	result, err := newOrchestrator(backend, gateway, &fakeLedger{}, false).
		InitiateCheckout(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.PathBackend, result.Path)
	assert.True(t, strings.HasPrefix(result.Reference, "HOPE_"))
	assert.False(t, result.TestMode)
	assert.Equal(t, 1, backend.calls)
	assert.Equal(t, 0, gateway.initCalls, "no fallback on success")
}

func TestInitiateCheckoutRejectionDoesNotFallBack(t *testing.T) {
	backend := &fakeBackend{err: domain.NewDomainError(domain.ErrorCodeProcessorRejected, "card declined")}
	gateway := &fakeGateway{result: &ports.InitializeResult{CheckoutURL: "https://pay/2"}}

	_, err := newOrchestrator(backend, gateway, &fakeLedger{}, true).
		InitiateCheckout(context.Background(), validRequest())
	require.Error(t, err)

	assert.Equal(t, domain.ErrorCodeProcessorRejected, domain.GetErrorCode(err))
	assert.Equal(t, 1, backend.calls, "a rejection is never retried")
	assert.Equal(t, 0, gateway.initCalls, "a rejection never reaches the fallback path")
}

func TestInitiateCheckoutUnavailableFallsBackOnce(t *testing.T) {
	backend := &fakeBackend{err: domain.NewDomainError(domain.ErrorCodeBackendUnavailable, "down")}
	gateway := &fakeGateway{result: &ports.InitializeResult{CheckoutURL: "https://pay/3"}}

	result, err := newOrchestrator(backend, gateway, &fakeLedger{}, false).
		InitiateCheckout(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.PathDirect, result.Path)
	assert.Equal(t, backendAttempts, backend.calls, "bounded same-path retry before falling back")
	assert.Equal(t, 1, gateway.initCalls, "fallback fires exactly once")

	// The fallback carries the same checkout intent.
	req := gateway.initReqs[0]
	assert.Equal(t, "user@example.com", req.Email)
	assert.Equal(t, "PLN_m", req.PlanCode)
	assert.Equal(t, "monthly", req.Metadata["planType"])
	assert.Equal(t, "user-1", req.Metadata["userId"])
}

func TestInitiateCheckoutAllPathsDownNoTestMode(t *testing.T) {
	backend := &fakeBackend{err: domain.NewDomainError(domain.ErrorCodeBackendUnavailable, "down")}
	gateway := &fakeGateway{err: domain.NewDomainError(domain.ErrorCodeProcessorNetwork, "down")}
	ledger := &fakeLedger{}

	_, err := newOrchestrator(backend, gateway, ledger, false).
		InitiateCheckout(context.Background(), validRequest())
	require.Error(t, err)

	assert.Equal(t, domain.ErrorCodeBackendUnavailable, domain.GetErrorCode(err))
	assert.Empty(t, ledger.created, "the simulated path stays unreachable without the explicit flag")
}

func TestInitiateCheckoutTestModePath(t *testing.T) {
	backend := &fakeBackend{err: domain.NewDomainError(domain.ErrorCodeBackendUnavailable, "down")}
	gateway := &fakeGateway{err: domain.NewDomainError(domain.ErrorCodeProcessorNetwork, "down")}
	ledger := &fakeLedger{}

	result, err := newOrchestrator(backend, gateway, ledger, true).
		InitiateCheckout(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.PathTest, result.Path)
	assert.True(t, result.TestMode, "simulated results are visibly labeled")
	assert.True(t, strings.HasPrefix(result.Reference, "HOPE_"))

	require.Len(t, ledger.created, 1)
	pending := ledger.created[0]
	assert.Equal(t, domain.PaymentStatusPending, pending.Status)
	assert.Equal(t, result.Reference, pending.ProcessorReference)
	assert.Equal(t, "true", pending.Metadata["test"])
	assert.Equal(t, "monthly", pending.Metadata["planType"])
}

func TestInitiateCheckoutValidation(t *testing.T) {
	orch := newOrchestrator(&fakeBackend{}, &fakeGateway{}, &fakeLedger{}, false)

	tests := []struct {
		name   string
		mutate func(*domain.CheckoutRequest)
	}{
		{"missing email", func(r *domain.CheckoutRequest) { r.Email = "" }},
		{"malformed email", func(r *domain.CheckoutRequest) { r.Email = "not-an-email" }},
		{"missing user", func(r *domain.CheckoutRequest) { r.UserID = "" }},
		{"missing plan", func(r *domain.CheckoutRequest) { r.PlanID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			_, err := orch.InitiateCheckout(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, domain.ErrorCodeInvalidInput, domain.GetErrorCode(err))
		})
	}
}

func TestInitiateCheckoutFreePlan(t *testing.T) {
	backend := &fakeBackend{}
	req := validRequest()
	req.PlanID = domain.PlanFree

	_, err := newOrchestrator(backend, &fakeGateway{}, &fakeLedger{}, false).
		InitiateCheckout(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeInvalidInput, domain.GetErrorCode(err))
	assert.Equal(t, 0, backend.calls)
}

func TestMintReference(t *testing.T) {
	a := mintReference()
	b := mintReference()

	assert.True(t, strings.HasPrefix(a, "HOPE_"))
	assert.Len(t, a, len("HOPE_")+22)
	assert.NotEqual(t, a, b)
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "user@***", maskEmail("user@example.com"))
	assert.Equal(t, "***", maskEmail("no-at-sign"))
}
