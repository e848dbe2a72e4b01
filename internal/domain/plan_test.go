package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   int64
	}{
		{"monthly price", "7.99", 799},
		{"annual price", "89.99", 8999},
		{"whole amount", "10", 1000},
		{"zero", "0", 0},
		{"rounds half up", "0.005", 1},
		{"no float drift", "19.99", 1999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, err := decimal.NewFromString(tt.amount)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, ToMinorUnits(amount))
		})
	}
}

func TestPlanPeriodEnd(t *testing.T) {
	start := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

	monthly := Plan{ID: PlanMonthly, BillingInterval: IntervalMonthly}
	assert.Equal(t, time.Date(2025, 4, 15, 10, 0, 0, 0, time.UTC), monthly.PeriodEnd(start))

	annual := Plan{ID: PlanAnnual, BillingInterval: IntervalAnnual}
	assert.Equal(t, time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC), annual.PeriodEnd(start))
}
