// Package catalog holds the static plan catalog. Plans are defined once
// at startup and never mutated at runtime.
package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain"
)

// Catalog resolves purchasable plans by id
type Catalog struct {
	plans []domain.Plan
	byID  map[domain.PlanType]domain.Plan
}

// New builds the catalog. Processor plan codes come from configuration
// because they differ per processor account.
func New(currency, monthlyPlanCode, annualPlanCode string) *Catalog {
	plans := []domain.Plan{
		{
			ID:              domain.PlanFree,
			Name:            "Free",
			Price:           decimal.Zero,
			Currency:        currency,
			BillingInterval: domain.IntervalMonthly,
			Features: []string{
				"5 AI therapy chats per month",
				"Basic mood tracking",
				"Guided breathing exercises",
				"Crisis support resources",
			},
		},
		{
			ID:                domain.PlanMonthly,
			Name:              "Premium Monthly",
			Price:             decimal.NewFromFloat(7.99),
			Currency:          currency,
			BillingInterval:   domain.IntervalMonthly,
			ProcessorPlanCode: monthlyPlanCode,
			Features: []string{
				"Unlimited AI therapy chats",
				"Full meditation library",
				"Advanced mood analytics",
				"Rescue pair matching",
				"Priority support",
				"Data export",
			},
		},
		{
			ID:                domain.PlanAnnual,
			Name:              "Premium Annual",
			Price:             decimal.NewFromFloat(89.99),
			Currency:          currency,
			BillingInterval:   domain.IntervalAnnual,
			ProcessorPlanCode: annualPlanCode,
			Features: []string{
				"Everything in Premium Monthly",
				"Two months free",
				"Custom themes",
				"Early access to new CBT tools",
			},
		},
	}

	byID := make(map[domain.PlanType]domain.Plan, len(plans))
	for _, p := range plans {
		byID[p.ID] = p
	}

	return &Catalog{plans: plans, byID: byID}
}

// List returns all plans in display order
func (c *Catalog) List() []domain.Plan {
	out := make([]domain.Plan, len(c.plans))
	copy(out, c.plans)
	return out
}

// Get resolves a plan by id
func (c *Catalog) Get(id domain.PlanType) (domain.Plan, error) {
	plan, ok := c.byID[id]
	if !ok {
		return domain.Plan{}, domain.NewDomainError(domain.ErrorCodeInvalidInput, "unknown plan").WithDetail("plan_id", string(id))
	}
	return plan, nil
}
