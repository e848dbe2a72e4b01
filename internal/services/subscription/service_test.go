package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

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

type fakeSubs struct {
	active  *domain.Subscription
	getErr  error
	updated *domain.Subscription
}

func (f *fakeSubs) Create(ctx context.Context, tx pgx.Tx, sub *domain.Subscription) error {
	panic("not used")
}

func (f *fakeSubs) GetActiveByUser(ctx context.Context, tx pgx.Tx, userID string) (*domain.Subscription, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.active == nil {
		return nil, domain.ErrSubscriptionNotFound
	}
	return f.active, nil
}

func (f *fakeSubs) GetByID(ctx context.Context, tx pgx.Tx, id string) (*domain.Subscription, error) {
	panic("not used")
}

func (f *fakeSubs) SupersedeActive(ctx context.Context, tx pgx.Tx, userID string, to domain.SubscriptionStatus) (int64, error) {
	panic("not used")
}

func (f *fakeSubs) Update(ctx context.Context, tx pgx.Tx, sub *domain.Subscription) error {
	f.updated = sub
	return nil
}

type fakePayments struct {
	history   []*domain.Payment
	lastLimit int32
}

func (f *fakePayments) Create(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	panic("not used")
}

func (f *fakePayments) GetSuccessByReference(ctx context.Context, tx pgx.Tx, reference string) (*domain.Payment, error) {
	panic("not used")
}

func (f *fakePayments) GetByReference(ctx context.Context, tx pgx.Tx, reference string) (*domain.Payment, error) {
	panic("not used")
}

func (f *fakePayments) ListByUser(ctx context.Context, tx pgx.Tx, userID string, limit int32) ([]*domain.Payment, error) {
	f.lastLimit = limit
	return f.history, nil
}

type fakeCancelGateway struct {
	cancelErr    error
	cancelledIDs []string
}

func (f *fakeCancelGateway) InitializeTransaction(context.Context, ports.InitializeRequest) (*ports.InitializeResult, error) {
	panic("not used")
}

func (f *fakeCancelGateway) VerifyTransaction(context.Context, string) (*ports.VerifyResult, error) {
	panic("not used")
}

func (f *fakeCancelGateway) CreateSubscription(context.Context, string, string, string) (string, error) {
	panic("not used")
}

func (f *fakeCancelGateway) CancelSubscription(ctx context.Context, id string) error {
	f.cancelledIDs = append(f.cancelledIDs, id)
	return f.cancelErr
}

func activeSub(userID string) *domain.Subscription {
	now := time.Now()
	return &domain.Subscription{
		ID:        "sub-1",
		UserID:    userID,
		PlanType:  domain.PlanMonthly,
		Status:    domain.SubscriptionStatusActive,
		StartDate: now.AddDate(0, 0, -10),
		EndDate:   now.AddDate(0, 0, 20),
		Features:  domain.PaidFeatures(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newService(subs *fakeSubs, payments *fakePayments, gateway *fakeCancelGateway) *Service {
	return NewService(subs, payments, gateway, catalog.New("USD", "PLN_m", "PLN_a"), nopLogger{})
}

func TestCancelKeepsEndDate(t *testing.T) {
	sub := activeSub("user-1")
	paidUntil := sub.EndDate
	subs := &fakeSubs{active: sub}
	gateway := &fakeCancelGateway{}

	cancelled, err := newService(subs, &fakePayments{}, gateway).Cancel(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, domain.SubscriptionStatusCancelled, cancelled.Status)
	assert.Equal(t, paidUntil, cancelled.EndDate, "paid period survives cancellation")
	require.NotNil(t, cancelled.CancelledAt)
	assert.Nil(t, cancelled.NextBillingDate)
	require.NotNil(t, subs.updated)
	assert.Empty(t, gateway.cancelledIDs, "no processor billing to disable")
}

func TestCancelDisablesRecurringBilling(t *testing.T) {
	sub := activeSub("user-1")
	processorID := "SUB_proc_123"
	sub.ProcessorSubscriptionID = &processorID
	next := time.Now().AddDate(0, 1, 0)
	sub.NextBillingDate = &next
	subs := &fakeSubs{active: sub}
	gateway := &fakeCancelGateway{}

	cancelled, err := newService(subs, &fakePayments{}, gateway).Cancel(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"SUB_proc_123"}, gateway.cancelledIDs)
	assert.Nil(t, cancelled.NextBillingDate)
}

func TestCancelToleratesProcessorFailure(t *testing.T) {
	sub := activeSub("user-1")
	processorID := "SUB_proc_123"
	sub.ProcessorSubscriptionID = &processorID
	subs := &fakeSubs{active: sub}
	gateway := &fakeCancelGateway{cancelErr: errors.New("processor timeout")}

	cancelled, err := newService(subs, &fakePayments{}, gateway).Cancel(context.Background(), "user-1")
	require.NoError(t, err, "local cancellation wins over a lagging processor")
	assert.Equal(t, domain.SubscriptionStatusCancelled, cancelled.Status)
	require.NotNil(t, subs.updated)
}

func TestCancelIsNotRepeatable(t *testing.T) {
	sub := activeSub("user-1")
	sub.Status = domain.SubscriptionStatusCancelled
	subs := &fakeSubs{active: sub}

	_, err := newService(subs, &fakePayments{}, &fakeCancelGateway{}).Cancel(context.Background(), "user-1")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeSubscriptionInactive, domain.GetErrorCode(err))
	assert.Nil(t, subs.updated)
}

func TestCancelWithoutActiveSubscription(t *testing.T) {
	_, err := newService(&fakeSubs{}, &fakePayments{}, &fakeCancelGateway{}).Cancel(context.Background(), "user-1")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeSubscriptionNotFound, domain.GetErrorCode(err))
}

func TestStatusActiveSubscription(t *testing.T) {
	sub := activeSub("user-1")
	subs := &fakeSubs{active: sub}

	summary, err := newService(subs, &fakePayments{}, &fakeCancelGateway{}).Status(context.Background(), "user-1")
	require.NoError(t, err)

	assert.True(t, summary.IsActive)
	assert.Equal(t, 20, summary.DaysRemaining)
	assert.NotEmpty(t, summary.PlanFeatures)
}

func TestStatusSynthesizesFreePlan(t *testing.T) {
	summary, err := newService(&fakeSubs{}, &fakePayments{}, &fakeCancelGateway{}).Status(context.Background(), "user-1")
	require.NoError(t, err)

	require.NotNil(t, summary.Subscription)
	assert.Equal(t, domain.PlanFree, summary.Subscription.PlanType)
	assert.False(t, summary.IsActive)
	assert.Equal(t, 0, summary.DaysRemaining)
	assert.False(t, summary.Subscription.Features.Has(domain.FeatureCrisisSupport))
	assert.False(t, summary.Subscription.Features.Has(domain.FeatureUnlimitedChat))
}

func TestStatusPropagatesStoreErrors(t *testing.T) {
	subs := &fakeSubs{getErr: domain.NewDomainError(domain.ErrorCodeInternalError, "connection refused")}

	_, err := newService(subs, &fakePayments{}, &fakeCancelGateway{}).Status(context.Background(), "user-1")
	require.Error(t, err, "a store outage is not the free plan")
}

func TestGetActiveRequiresUserID(t *testing.T) {
	_, err := newService(&fakeSubs{}, &fakePayments{}, &fakeCancelGateway{}).GetActive(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeInvalidInput, domain.GetErrorCode(err))
}

func TestHistoryClampsLimit(t *testing.T) {
	payments := &fakePayments{history: []*domain.Payment{{ID: "p1"}}}
	svc := newService(&fakeSubs{}, payments, &fakeCancelGateway{})

	got, err := svc.History(context.Background(), "user-1", 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(50), payments.lastLimit)

	_, err = svc.History(context.Background(), "user-1", 500)
	require.NoError(t, err)
	assert.Equal(t, int32(50), payments.lastLimit)

	_, err = svc.History(context.Background(), "user-1", 10)
	require.NoError(t, err)
	assert.Equal(t, int32(10), payments.lastLimit)
}
