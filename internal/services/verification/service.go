// Package verification owns the correctness-critical path: confirming a
// payment with the processor and activating the paid subscription in a
// single transaction.
package verification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/catalog"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain/ports"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/pkg/observability"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/pkg/timeutil"
)

// Result pairs the activated subscription with its ledger entry
type Result struct {
	Subscription *domain.Subscription `json:"subscription"`
	Payment      *domain.Payment      `json:"payment"`
}

// Service verifies payment references and activates subscriptions
type Service struct {
	gateway  ports.ProcessorGateway
	db       ports.DBPort
	subs     ports.SubscriptionRepository
	payments ports.PaymentRepository
	catalog  *catalog.Catalog
	logger   ports.Logger
	// testPayments mirrors the orchestrator's explicit flag; simulated
	// references are only honored when it is set.
	testPayments bool
}

// NewService creates a verification service
func NewService(
	gateway ports.ProcessorGateway,
	db ports.DBPort,
	subs ports.SubscriptionRepository,
	payments ports.PaymentRepository,
	cat *catalog.Catalog,
	logger ports.Logger,
	testPayments bool,
) *Service {
	return &Service{
		gateway:      gateway,
		db:           db,
		subs:         subs,
		payments:     payments,
		catalog:      cat,
		logger:       logger,
		testPayments: testPayments,
	}
}

// VerifyAndActivate confirms the payment behind a checkout reference and
// activates the paid subscription. Safe to call more than once for the
// same reference: a success ledger row already present short-circuits to
// the existing records.
//
// Subscription activation and the success ledger row commit in one
// transaction. Neither exists without the other.
func (s *Service) VerifyAndActivate(ctx context.Context, reference string) (*Result, error) {
	if reference == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeInvalidInput, "reference is required")
	}

	// Idempotency: a success row means this reference already activated
	// a subscription.
	if existing, err := s.payments.GetSuccessByReference(ctx, nil, reference); err == nil {
		return s.existingResult(ctx, existing)
	} else if !domain.IsDomainError(err, domain.ErrorCodeReferenceNotFound) {
		return nil, err
	}

	verify, userID, err := s.resolve(ctx, reference)
	if err != nil {
		return nil, err
	}

	if !verify.Success {
		s.recordFailure(ctx, reference, userID, verify)
		observability.RecordVerification("failed")
		return nil, domain.NewDomainError(domain.ErrorCodePaymentNotSuccessful, "payment was not successful").
			WithDetail("reference", reference).
			WithDetail("processor_status", verify.Status)
	}

	plan, err := s.catalog.Get(verify.PlanType)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrorCodeProcessorMalformed, "verification metadata names an unknown plan").
			WithDetail("plan_type", string(verify.PlanType))
	}
	if userID == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeProcessorMalformed, "verification metadata is missing the user id").
			WithDetail("reference", reference)
	}

	now := timeutil.Now()
	subscription := &domain.Subscription{
		ID:        uuid.NewString(),
		UserID:    userID,
		PlanType:  plan.ID,
		Status:    domain.SubscriptionStatusActive,
		StartDate: now,
		EndDate:   plan.PeriodEnd(now),
		Features:  domain.PaidFeatures(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	subscriptionID := subscription.ID
	payment := &domain.Payment{
		ID:                 uuid.NewString(),
		UserID:             userID,
		SubscriptionID:     &subscriptionID,
		ProcessorReference: reference,
		Amount:             verify.Amount,
		Currency:           verify.Currency,
		Status:             domain.PaymentStatusSuccess,
		PaymentMethod:      verify.Channel,
		Description:        fmt.Sprintf("%s plan subscription", plan.ID),
		Metadata:           map[string]string{"planType": string(plan.ID)},
		CreatedAt:          now,
	}

	activate := func(ctx context.Context, tx pgx.Tx) error {
		// Conditional update, not read-then-write: a superseded row
		// cannot resurrect under concurrent verifications.
		if _, err := s.subs.SupersedeActive(ctx, tx, userID, domain.SubscriptionStatusExpired); err != nil {
			return err
		}
		if err := s.subs.Create(ctx, tx, subscription); err != nil {
			return err
		}
		return s.payments.Create(ctx, tx, payment)
	}

	err = s.db.WithTransaction(ctx, activate)
	if domain.IsDomainError(err, domain.ErrorCodeIdempotencyConflict) {
		// Same reference: a concurrent verification already committed,
		// and its records are the answer.
		if existing, readErr := s.payments.GetSuccessByReference(ctx, nil, reference); readErr == nil {
			return s.existingResult(ctx, existing)
		}
		// Different reference, same user: another checkout's activation
		// took the single active row between our supersede and insert.
		// One retry supersedes it and commits this payment too.
		err = s.db.WithTransaction(ctx, activate)
	}
	if err != nil {
		observability.RecordVerification("error")
		return nil, err
	}

	observability.RecordVerification("success")
	observability.RecordRevenue(string(plan.ID), payment.Currency, domain.ToMinorUnits(payment.Amount))
	s.logger.Info("Subscription activated",
		ports.String("reference", reference),
		ports.String("plan", string(plan.ID)),
		ports.String("subscription_id", subscription.ID))

	return &Result{Subscription: subscription, Payment: payment}, nil
}

// resolve obtains the authoritative payment outcome for a reference.
// Simulated checkouts resolve from their pending ledger row; everything
// else goes to the processor.
func (s *Service) resolve(ctx context.Context, reference string) (*ports.VerifyResult, string, error) {
	if s.testPayments {
		if pending, err := s.payments.GetByReference(ctx, nil, reference); err == nil &&
			pending.Status == domain.PaymentStatusPending && pending.Metadata["test"] == "true" {
			return &ports.VerifyResult{
				Reference: reference,
				Success:   true,
				Status:    "success",
				Channel:   "test",
				Amount:    pending.Amount,
				Currency:  pending.Currency,
				PlanType:  domain.PlanType(pending.Metadata["planType"]),
			}, pending.UserID, nil
		}
	}

	verify, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, "", err
	}

	userID := ""
	if v, ok := verify.Raw["userId"].(string); ok {
		userID = v
	}
	return verify, userID, nil
}

// existingResult loads the records a previous verification committed
func (s *Service) existingResult(ctx context.Context, payment *domain.Payment) (*Result, error) {
	result := &Result{Payment: payment}
	if payment.SubscriptionID != nil {
		sub, err := s.subs.GetByID(ctx, nil, *payment.SubscriptionID)
		if err != nil {
			return nil, err
		}
		result.Subscription = sub
	}
	return result, nil
}

// recordFailure appends an audit row for a non-successful verification.
// Best effort: the authoritative outcome is the error returned to the
// caller.
func (s *Service) recordFailure(ctx context.Context, reference, userID string, verify *ports.VerifyResult) {
	if userID == "" {
		userID = "unknown"
	}
	failed := &domain.Payment{
		ID:                 uuid.NewString(),
		UserID:             userID,
		ProcessorReference: reference,
		Amount:             verify.Amount,
		Currency:           verify.Currency,
		Status:             domain.PaymentStatusFailed,
		PaymentMethod:      verify.Channel,
		Description:        "Payment verification failed",
		Metadata:           map[string]string{"processorStatus": verify.Status},
		CreatedAt:          timeutil.Now(),
	}
	if err := s.payments.Create(ctx, nil, failed); err != nil {
		s.logger.Warn("Failed to record failed payment",
			ports.String("reference", reference),
			ports.Err(err))
	}
}
