package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlanType identifies a purchasable plan in the catalog
type PlanType string

const (
	PlanFree    PlanType = "free"
	PlanMonthly PlanType = "monthly"
	PlanAnnual  PlanType = "annual"
)

// BillingInterval defines how often a plan renews
type BillingInterval string

const (
	IntervalMonthly BillingInterval = "monthly"
	IntervalAnnual  BillingInterval = "annual"
)

// Plan is an immutable catalog entry describing a purchasable plan
type Plan struct {
	ID                PlanType        `json:"id"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	Currency          string          `json:"currency"`
	BillingInterval   BillingInterval `json:"billing_interval"`
	ProcessorPlanCode string          `json:"processor_plan_code,omitempty"`
	Features          []string        `json:"features"`
}

// IsFree returns true for the zero-price plan
func (p Plan) IsFree() bool {
	return p.ID == PlanFree
}

// PeriodEnd returns the end of a billing period starting at the given time
func (p Plan) PeriodEnd(start time.Time) time.Time {
	switch p.BillingInterval {
	case IntervalAnnual:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 1, 0)
	}
}

// ToMinorUnits converts a major-unit amount to the processor's integer
// minor currency unit. Rounding to the nearest unit avoids the float
// drift that truncation would introduce for amounts like 7.99.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
