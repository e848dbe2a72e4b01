// Package entitlement decides whether a user may use a gated feature.
// The gate is pure over its inputs: no caching lives here, so a
// cancellation is visible on the next check.
package entitlement

import (
	"context"

	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain/ports"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/pkg/observability"
)

// Decision explains an access check outcome
type Decision struct {
	HasAccess    bool                 `json:"hasAccess"`
	Bypass       bool                 `json:"bypass,omitempty"`
	Subscription *domain.Subscription `json:"subscription,omitempty"`
}

// Gate evaluates feature access
type Gate struct {
	subs   ports.SubscriptionRepository
	bypass ports.BypassRepository
	logger ports.Logger
}

// NewGate creates an entitlement gate
func NewGate(subs ports.SubscriptionRepository, bypass ports.BypassRepository, logger ports.Logger) *Gate {
	return &Gate{subs: subs, bypass: bypass, logger: logger}
}

// Check evaluates access for one feature. The bypass list is consulted
// first and a hit grants access without touching the subscription store.
// Without a bypass entry, entitlement comes only from a subscription
// inside its paid period: no subscription, expired, or superseded all
// deny every feature key. Unknown feature keys are never granted. Any
// store failure after a bypass miss denies access; entitlement never
// degrades open.
func (g *Gate) Check(ctx context.Context, userID, email string, feature domain.FeatureKey) (*Decision, error) {
	if email != "" {
		onList, err := g.bypass.Contains(ctx, email)
		if err != nil {
			g.logger.Warn("Bypass list lookup failed",
				ports.String("user_id", userID),
				ports.Err(err))
		} else if onList {
			observability.RecordEntitlementCheck(string(feature), "bypass")
			return &Decision{HasAccess: true, Bypass: true}, nil
		}
	}

	sub, err := g.subs.GetActiveByUser(ctx, nil, userID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			observability.RecordEntitlementCheck(string(feature), "denied")
			return &Decision{HasAccess: false}, nil
		}
		observability.RecordEntitlementCheck(string(feature), "error")
		return nil, err
	}

	if !sub.IsActive() {
		observability.RecordEntitlementCheck(string(feature), "denied")
		return &Decision{HasAccess: false, Subscription: sub}, nil
	}

	granted := sub.Features.Has(feature)
	observability.RecordEntitlementCheck(string(feature), decisionLabel(granted))
	return &Decision{HasAccess: granted, Subscription: sub}, nil
}

// HasAccess is the boolean form of Check. Errors deny.
func (g *Gate) HasAccess(ctx context.Context, userID, email string, feature domain.FeatureKey) bool {
	decision, err := g.Check(ctx, userID, email, feature)
	if err != nil {
		return false
	}
	return decision.HasAccess
}

func decisionLabel(granted bool) string {
	if granted {
		return "granted"
	}
	return "denied"
}
