package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain"
)

func TestCatalogList(t *testing.T) {
	cat := New("USD", "PLN_monthly", "PLN_annual")

	plans := cat.List()
	require.Len(t, plans, 3)
	assert.Equal(t, domain.PlanFree, plans[0].ID)
	assert.Equal(t, domain.PlanMonthly, plans[1].ID)
	assert.Equal(t, domain.PlanAnnual, plans[2].ID)

	// The returned slice is a copy; mutating it must not corrupt the catalog.
	plans[0].Name = "mutated"
	assert.Equal(t, "Free", cat.List()[0].Name)
}

func TestCatalogGet(t *testing.T) {
	cat := New("USD", "PLN_monthly", "PLN_annual")

	monthly, err := cat.Get(domain.PlanMonthly)
	require.NoError(t, err)
	assert.True(t, monthly.Price.Equal(decimal.NewFromFloat(7.99)))
	assert.Equal(t, "PLN_monthly", monthly.ProcessorPlanCode)

	annual, err := cat.Get(domain.PlanAnnual)
	require.NoError(t, err)
	assert.True(t, annual.Price.Equal(decimal.NewFromFloat(89.99)))

	free, err := cat.Get(domain.PlanFree)
	require.NoError(t, err)
	assert.True(t, free.IsFree())
}

func TestCatalogGetUnknown(t *testing.T) {
	cat := New("USD", "PLN_monthly", "PLN_annual")

	_, err := cat.Get("lifetime")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeInvalidInput, domain.GetErrorCode(err))
}
