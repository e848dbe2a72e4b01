// Package checkout orchestrates payment initialization across the
// available paths: the application backend first, the processor gateway
// directly as a server-side fallback, and a simulated path that exists
// only when test payments are explicitly enabled.
package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/catalog"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain/ports"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/pkg/observability"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/pkg/resilience"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/pkg/timeutil"
)

const (
	referencePrefix = "HOPE_"
	// backendAttempts bounds same-path retries on the primary path.
	backendAttempts = 2
)

// Orchestrator drives checkout initialization. All collaborators are
// injected at construction.
type Orchestrator struct {
	catalog     *catalog.Catalog
	backend     ports.BackendInitializer
	gateway     ports.ProcessorGateway
	payments    ports.PaymentRepository
	validate    *validator.Validate
	logger      ports.Logger
	callbackURL string
	currency    string
	// testPayments is set from explicit configuration only. It is never
	// derived from the environment name.
	testPayments bool
}

// NewOrchestrator creates a checkout orchestrator
func NewOrchestrator(
	cat *catalog.Catalog,
	backend ports.BackendInitializer,
	gateway ports.ProcessorGateway,
	payments ports.PaymentRepository,
	logger ports.Logger,
	callbackURL string,
	currency string,
	testPayments bool,
) *Orchestrator {
	return &Orchestrator{
		catalog:      cat,
		backend:      backend,
		gateway:      gateway,
		payments:     payments,
		validate:     validator.New(),
		logger:       logger,
		callbackURL:  callbackURL,
		currency:     currency,
		testPayments: testPayments,
	}
}

// InitiateCheckout validates the request and walks the initialization
// paths in order. A processor rejection is final: it propagates without
// trying another path. Only unavailability (backend down, processor
// unreachable, malformed response) moves to the next path.
func (o *Orchestrator) InitiateCheckout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutResult, error) {
	if err := o.validate.Struct(req); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeInvalidInput, "invalid checkout request", err)
	}

	plan, err := o.catalog.Get(req.PlanID)
	if err != nil {
		return nil, err
	}
	if plan.IsFree() {
		return nil, domain.NewDomainError(domain.ErrorCodeInvalidInput, "free plan requires no checkout")
	}

	maskedEmail := maskEmail(req.Email)

	// Primary path: the application backend performs the processor call.
	// One bounded retry absorbs transient network blips; a rejection
	// stops immediately.
	initReq := o.buildInitializeRequest(req, plan)
	var result *ports.InitializeResult
	err = resilience.Retry(ctx, backendAttempts, resilience.DefaultExponentialBackoff(), domain.IsRecoverable,
		func(ctx context.Context) error {
			var callErr error
			result, callErr = o.backend.Initialize(ctx, initReq)
			return callErr
		})
	if err == nil {
		o.logger.Info("Checkout initialized via backend",
			ports.String("reference", result.Reference),
			ports.String("email", maskedEmail),
			ports.String("plan", string(plan.ID)))
		observability.RecordCheckoutAttempt(string(domain.PathBackend), string(plan.ID), "success")
		return &domain.CheckoutResult{
			Reference:   result.Reference,
			CheckoutURL: result.CheckoutURL,
			AccessCode:  result.AccessCode,
			Path:        domain.PathBackend,
		}, nil
	}
	observability.RecordCheckoutAttempt(string(domain.PathBackend), string(plan.ID), "failure")
	if !domain.IsRecoverable(err) {
		return nil, err
	}
	o.logger.Warn("Backend initialization unavailable, falling back to direct gateway",
		ports.String("email", maskedEmail),
		ports.Err(err))

	// Fallback path: call the processor directly, still server-side. A
	// fresh reference keeps the two attempts distinguishable in the
	// processor dashboard.
	initReq = o.buildInitializeRequest(req, plan)
	result, err = o.gateway.InitializeTransaction(ctx, initReq)
	if err == nil {
		o.logger.Info("Checkout initialized via direct gateway",
			ports.String("reference", result.Reference),
			ports.String("email", maskedEmail),
			ports.String("plan", string(plan.ID)))
		observability.RecordCheckoutAttempt(string(domain.PathDirect), string(plan.ID), "success")
		return &domain.CheckoutResult{
			Reference:   result.Reference,
			CheckoutURL: result.CheckoutURL,
			AccessCode:  result.AccessCode,
			Path:        domain.PathDirect,
		}, nil
	}
	observability.RecordCheckoutAttempt(string(domain.PathDirect), string(plan.ID), "failure")
	if !domain.IsRecoverable(err) {
		return nil, err
	}

	if !o.testPayments {
		o.logger.Error("All checkout paths unavailable",
			ports.String("email", maskedEmail),
			ports.Err(err))
		return nil, domain.WrapError(domain.ErrorCodeBackendUnavailable, "no checkout path available", err)
	}

	// Simulated path, enabled only by explicit configuration and
	// rejected at startup in production. A pending ledger row records
	// the attempt so verification can resolve the sentinel reference
	// without a processor round trip.
	reference := mintReference()
	pending := &domain.Payment{
		ID:                 uuid.NewString(),
		UserID:             req.UserID,
		ProcessorReference: reference,
		Amount:             plan.Price,
		Currency:           o.currency,
		Status:             domain.PaymentStatusPending,
		PaymentMethod:      "test",
		Description:        fmt.Sprintf("Simulated %s plan checkout", plan.ID),
		Metadata: map[string]string{
			"planType": string(plan.ID),
			"test":     "true",
		},
		CreatedAt: timeutil.Now(),
	}
	if err := o.payments.Create(ctx, nil, pending); err != nil {
		observability.RecordCheckoutAttempt(string(domain.PathTest), string(plan.ID), "failure")
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "record simulated checkout", err)
	}
	o.logger.Warn("Checkout initialized via simulated test path",
		ports.String("reference", reference),
		ports.String("email", maskedEmail),
		ports.String("plan", string(plan.ID)))
	observability.RecordCheckoutAttempt(string(domain.PathTest), string(plan.ID), "success")
	return &domain.CheckoutResult{
		Reference:   reference,
		CheckoutURL: fmt.Sprintf("%s?reference=%s&test=1", o.callbackURL, reference),
		Path:        domain.PathTest,
		TestMode:    true,
	}, nil
}

// buildInitializeRequest assembles a processor request with a freshly
// minted reference
func (o *Orchestrator) buildInitializeRequest(req domain.CheckoutRequest, plan domain.Plan) ports.InitializeRequest {
	metadata := map[string]string{
		"planType": string(plan.ID),
		"userId":   req.UserID,
	}
	for k, v := range req.Metadata {
		if _, reserved := metadata[k]; !reserved {
			metadata[k] = v
		}
	}

	return ports.InitializeRequest{
		Email:       req.Email,
		Amount:      plan.Price,
		Currency:    o.currency,
		PlanCode:    plan.ProcessorPlanCode,
		Reference:   mintReference(),
		CallbackURL: o.callbackURL,
		Metadata:    metadata,
	}
}

// mintReference creates a unique checkout reference
func mintReference() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return referencePrefix + id[:22]
}

// maskEmail hides the domain part before logging
func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at < 0 {
		return "***"
	}
	return email[:at] + "@***"
}
