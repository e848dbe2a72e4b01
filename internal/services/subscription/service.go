// Package subscription is the record store service over persisted
// subscriptions: lookups, cancellation, and the status summary the app
// renders.
package subscription

import (
	"context"
	"math"

	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/catalog"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain/ports"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/pkg/observability"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/pkg/timeutil"
)

// StatusSummary is the caller-facing view of a user's subscription
type StatusSummary struct {
	Subscription  *domain.Subscription `json:"subscription"`
	PlanName      string               `json:"plan_name"`
	PlanFeatures  []string             `json:"plan_features"`
	IsActive      bool                 `json:"is_active"`
	DaysRemaining int                  `json:"days_remaining"`
}

// Service manages persisted subscription records
type Service struct {
	subs     ports.SubscriptionRepository
	payments ports.PaymentRepository
	gateway  ports.ProcessorGateway
	catalog  *catalog.Catalog
	logger   ports.Logger
}

// NewService creates a subscription record service
func NewService(
	subs ports.SubscriptionRepository,
	payments ports.PaymentRepository,
	gateway ports.ProcessorGateway,
	cat *catalog.Catalog,
	logger ports.Logger,
) *Service {
	return &Service{
		subs:     subs,
		payments: payments,
		gateway:  gateway,
		catalog:  cat,
		logger:   logger,
	}
}

// GetActive returns the user's active subscription record
func (s *Service) GetActive(ctx context.Context, userID string) (*domain.Subscription, error) {
	if userID == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeInvalidInput, "user id is required")
	}
	return s.subs.GetActiveByUser(ctx, nil, userID)
}

// Status returns the subscription summary for a user, synthesizing a
// free-plan record when no subscription exists
func (s *Service) Status(ctx context.Context, userID string) (*StatusSummary, error) {
	sub, err := s.subs.GetActiveByUser(ctx, nil, userID)
	if err != nil {
		if !domain.IsNotFoundError(err) {
			return nil, err
		}
		sub = domain.FreePlanRecord(userID)
	}

	summary := &StatusSummary{
		Subscription: sub,
		PlanName:     string(sub.PlanType),
		IsActive:     sub.IsActive(),
	}

	if plan, err := s.catalog.Get(sub.PlanType); err == nil {
		summary.PlanName = plan.Name
		summary.PlanFeatures = plan.Features
	}

	if sub.IsActive() {
		remaining := sub.EndDate.Sub(timeutil.Now()).Hours() / 24
		summary.DaysRemaining = int(math.Ceil(remaining))
	}

	return summary, nil
}

// Cancel marks the user's active subscription cancelled. When the
// processor bills the subscription, its recurring billing is disabled
// too, but a processor failure there does not block the local
// cancellation: local state is the source of truth for entitlement and
// the processor's view may lag.
//
// The end date is left unchanged. The user paid for the period and keeps
// access until it runs out.
func (s *Service) Cancel(ctx context.Context, userID string) (*domain.Subscription, error) {
	sub, err := s.subs.GetActiveByUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if sub.Status == domain.SubscriptionStatusCancelled {
		return nil, domain.NewDomainError(domain.ErrorCodeSubscriptionInactive, "subscription is already cancelled")
	}

	processorCancelled := "skipped"
	if sub.IsRecurring() {
		processorCancelled = "success"
		if err := s.gateway.CancelSubscription(ctx, *sub.ProcessorSubscriptionID); err != nil {
			processorCancelled = "failed"
			s.logger.Warn("Processor subscription cancel failed, cancelling locally anyway",
				ports.String("user_id", userID),
				ports.String("processor_subscription_id", *sub.ProcessorSubscriptionID),
				ports.Err(err))
		}
	}

	now := timeutil.Now()
	sub.Status = domain.SubscriptionStatusCancelled
	sub.CancelledAt = &now
	sub.UpdatedAt = now
	sub.NextBillingDate = nil

	if err := s.subs.Update(ctx, nil, sub); err != nil {
		return nil, err
	}

	observability.RecordCancellation(processorCancelled)
	s.logger.Info("Subscription cancelled",
		ports.String("user_id", userID),
		ports.String("subscription_id", sub.ID))

	return sub, nil
}

// History returns the user's payment ledger entries, newest first
func (s *Service) History(ctx context.Context, userID string, limit int32) ([]*domain.Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.payments.ListByUser(ctx, nil, userID, limit)
}
