package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
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

// fakeStore backs both repositories and the transaction executor with
// in-memory state. Writes inside WithTransaction stage until commit, so
// a mid-transaction fault leaves nothing behind.
type fakeStore struct {
	subs     map[string]*domain.Subscription // by id
	payments []*domain.Payment

	stagedSubs     []*domain.Subscription
	stagedPayments []*domain.Payment
	inTx           bool

	failPaymentCreateInTx bool
	subCreateConflicts    int
	subCreates            int
}

func newFakeStore() *fakeStore {
	return &fakeStore{subs: make(map[string]*domain.Subscription)}
}

func (f *fakeStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	f.inTx = true
	f.stagedSubs = nil
	f.stagedPayments = nil
	err := fn(ctx, nil)
	f.inTx = false
	if err != nil {
		return err
	}
	for _, s := range f.stagedSubs {
		f.subs[s.ID] = s
	}
	f.payments = append(f.payments, f.stagedPayments...)
	return nil
}

// SubscriptionRepository

func (f *fakeStore) Create(ctx context.Context, tx pgx.Tx, sub *domain.Subscription) error {
	f.subCreates++
	if f.subCreateConflicts > 0 {
		f.subCreateConflicts--
		return domain.NewDomainError(domain.ErrorCodeIdempotencyConflict, "user already has an active subscription")
	}
	if f.inTx {
		f.stagedSubs = append(f.stagedSubs, sub)
	} else {
		f.subs[sub.ID] = sub
	}
	return nil
}

func (f *fakeStore) GetActiveByUser(ctx context.Context, tx pgx.Tx, userID string) (*domain.Subscription, error) {
	for _, s := range f.subs {
		if s.UserID == userID && s.Status == domain.SubscriptionStatusActive {
			return s, nil
		}
	}
	return nil, domain.NewDomainError(domain.ErrorCodeSubscriptionNotFound, "not found")
}

func (f *fakeStore) GetByID(ctx context.Context, tx pgx.Tx, id string) (*domain.Subscription, error) {
	if s, ok := f.subs[id]; ok {
		return s, nil
	}
	return nil, domain.NewDomainError(domain.ErrorCodeSubscriptionNotFound, "not found")
}

func (f *fakeStore) SupersedeActive(ctx context.Context, tx pgx.Tx, userID string, to domain.SubscriptionStatus) (int64, error) {
	var n int64
	for _, s := range f.subs {
		if s.UserID == userID &&
			(s.Status == domain.SubscriptionStatusActive || s.Status == domain.SubscriptionStatusCancelled) {
			s.Status = to
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) Update(ctx context.Context, tx pgx.Tx, sub *domain.Subscription) error {
	f.subs[sub.ID] = sub
	return nil
}

// PaymentRepository

func (f *fakeStore) CreatePayment(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	if f.inTx && f.failPaymentCreateInTx {
		return errors.New("connection reset mid-transaction")
	}
	if p.Status == domain.PaymentStatusSuccess {
		for _, existing := range f.allPayments() {
			if existing.ProcessorReference == p.ProcessorReference && existing.Status == domain.PaymentStatusSuccess {
				return domain.NewDomainError(domain.ErrorCodeIdempotencyConflict, "duplicate success row")
			}
		}
	}
	if f.inTx {
		f.stagedPayments = append(f.stagedPayments, p)
	} else {
		f.payments = append(f.payments, p)
	}
	return nil
}

func (f *fakeStore) allPayments() []*domain.Payment {
	all := make([]*domain.Payment, 0, len(f.payments)+len(f.stagedPayments))
	all = append(all, f.payments...)
	return append(all, f.stagedPayments...)
}

func (f *fakeStore) GetSuccessByReference(ctx context.Context, tx pgx.Tx, reference string) (*domain.Payment, error) {
	for _, p := range f.payments {
		if p.ProcessorReference == reference && p.Status == domain.PaymentStatusSuccess {
			return p, nil
		}
	}
	return nil, domain.NewDomainError(domain.ErrorCodeReferenceNotFound, "not found")
}

func (f *fakeStore) GetByReference(ctx context.Context, tx pgx.Tx, reference string) (*domain.Payment, error) {
	for i := len(f.payments) - 1; i >= 0; i-- {
		if f.payments[i].ProcessorReference == reference {
			return f.payments[i], nil
		}
	}
	return nil, domain.NewDomainError(domain.ErrorCodeReferenceNotFound, "not found")
}

func (f *fakeStore) ListByUser(ctx context.Context, tx pgx.Tx, userID string, limit int32) ([]*domain.Payment, error) {
	var out []*domain.Payment
	for _, p := range f.payments {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

// paymentRepoAdapter exposes fakeStore as ports.PaymentRepository
// without clashing with the subscription Create method.
type paymentRepoAdapter struct{ *fakeStore }

func (a paymentRepoAdapter) Create(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	return a.CreatePayment(ctx, tx, p)
}

type fakeVerifyGateway struct {
	result *ports.VerifyResult
	err    error
	calls  int
}

func (f *fakeVerifyGateway) VerifyTransaction(context.Context, string) (*ports.VerifyResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeVerifyGateway) InitializeTransaction(context.Context, ports.InitializeRequest) (*ports.InitializeResult, error) {
	panic("not used")
}

func (f *fakeVerifyGateway) CreateSubscription(context.Context, string, string, string) (string, error) {
	panic("not used")
}

func (f *fakeVerifyGateway) CancelSubscription(context.Context, string) error {
	panic("not used")
}

func successVerify(reference string) *ports.VerifyResult {
	return &ports.VerifyResult{
		Reference: reference,
		Success:   true,
		Status:    "success",
		Channel:   "card",
		Amount:    decimal.NewFromFloat(7.99),
		Currency:  "USD",
		PlanType:  domain.PlanMonthly,
		Raw:       map[string]interface{}{"userId": "user-1", "planType": "monthly"},
	}
}

func newService(store *fakeStore, gateway *fakeVerifyGateway, testMode bool) *Service {
	cat := catalog.New("USD", "PLN_m", "PLN_a")
	return NewService(gateway, store, store, paymentRepoAdapter{store}, cat, nopLogger{}, testMode)
}

func TestVerifyAndActivate(t *testing.T) {
	store := newFakeStore()
	gateway := &fakeVerifyGateway{result: successVerify("HOPE_ok")}

	result, err := newService(store, gateway, false).VerifyAndActivate(context.Background(), "HOPE_ok")
	require.NoError(t, err)

	sub := result.Subscription
	require.NotNil(t, sub)
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, domain.PlanMonthly, sub.PlanType)
	assert.True(t, sub.Features.Has(domain.FeatureUnlimitedChat))
	// Monthly period: endDate one month after start.
	assert.WithinDuration(t, sub.StartDate.AddDate(0, 1, 0), sub.EndDate, time.Second)

	payment := result.Payment
	require.NotNil(t, payment)
	assert.Equal(t, domain.PaymentStatusSuccess, payment.Status)
	require.NotNil(t, payment.SubscriptionID)
	assert.Equal(t, sub.ID, *payment.SubscriptionID)
}

func TestVerifyAndActivateIdempotent(t *testing.T) {
	store := newFakeStore()
	gateway := &fakeVerifyGateway{result: successVerify("HOPE_dup")}
	svc := newService(store, gateway, false)

	first, err := svc.VerifyAndActivate(context.Background(), "HOPE_dup")
	require.NoError(t, err)

	second, err := svc.VerifyAndActivate(context.Background(), "HOPE_dup")
	require.NoError(t, err)

	assert.Equal(t, first.Payment.ID, second.Payment.ID, "no new ledger row")
	assert.Equal(t, first.Subscription.ID, second.Subscription.ID, "no new subscription")
	assert.Equal(t, 1, gateway.calls, "the second call never reaches the processor")
	assert.Equal(t, 1, store.subCreates)
}

func TestVerifyAndActivateNotSuccessful(t *testing.T) {
	store := newFakeStore()
	gateway := &fakeVerifyGateway{result: &ports.VerifyResult{
		Reference: "HOPE_fail",
		Success:   false,
		Status:    "abandoned",
		Amount:    decimal.NewFromFloat(7.99),
		Currency:  "USD",
		Raw:       map[string]interface{}{"userId": "user-1"},
	}}

	_, err := newService(store, gateway, false).VerifyAndActivate(context.Background(), "HOPE_fail")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodePaymentNotSuccessful, domain.GetErrorCode(err))

	// An audit row lands in the ledger; the subscription table is untouched.
	require.Len(t, store.payments, 1)
	assert.Equal(t, domain.PaymentStatusFailed, store.payments[0].Status)
	assert.Empty(t, store.subs)
}

func TestVerifyAndActivatePairingInvariant(t *testing.T) {
	store := newFakeStore()
	store.failPaymentCreateInTx = true
	gateway := &fakeVerifyGateway{result: successVerify("HOPE_crash")}

	_, err := newService(store, gateway, false).VerifyAndActivate(context.Background(), "HOPE_crash")
	require.Error(t, err)

	// The fault hit between subscription create and payment create.
	// Neither record commits.
	assert.Empty(t, store.subs, "no subscription without its success payment")
	assert.Empty(t, store.payments, "no payment without its subscription")
}

func TestVerifyAndActivateSupersedesPriorActive(t *testing.T) {
	store := newFakeStore()
	store.subs["old"] = &domain.Subscription{
		ID:      "old",
		UserID:  "user-1",
		Status:  domain.SubscriptionStatusActive,
		EndDate: time.Now().Add(240 * time.Hour),
	}
	gateway := &fakeVerifyGateway{result: successVerify("HOPE_upgrade")}

	result, err := newService(store, gateway, false).VerifyAndActivate(context.Background(), "HOPE_upgrade")
	require.NoError(t, err)

	assert.Equal(t, domain.SubscriptionStatusExpired, store.subs["old"].Status, "prior active row transitions, not deleted")
	assert.Equal(t, domain.SubscriptionStatusActive, store.subs[result.Subscription.ID].Status)
}

func TestVerifyAndActivateRetriesActiveRowRace(t *testing.T) {
	// A verification for a different reference, same user, grabs the
	// single active row between our supersede and insert. The conflict
	// must come back classified and the retry must commit this payment.
	store := newFakeStore()
	store.subCreateConflicts = 1
	gateway := &fakeVerifyGateway{result: successVerify("HOPE_race")}

	result, err := newService(store, gateway, false).VerifyAndActivate(context.Background(), "HOPE_race")
	require.NoError(t, err)

	assert.Equal(t, 2, store.subCreates, "one losing insert, one retry")
	assert.Equal(t, domain.SubscriptionStatusActive, result.Subscription.Status)
	require.Len(t, store.payments, 1)
	assert.Equal(t, domain.PaymentStatusSuccess, store.payments[0].Status)
}

func TestVerifyAndActivatePersistentConflictSurfaces(t *testing.T) {
	store := newFakeStore()
	store.subCreateConflicts = 2
	gateway := &fakeVerifyGateway{result: successVerify("HOPE_stuck")}

	_, err := newService(store, gateway, false).VerifyAndActivate(context.Background(), "HOPE_stuck")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeIdempotencyConflict, domain.GetErrorCode(err), "error stays classified for the caller")
}

func TestVerifyAndActivateGatewayErrorPropagates(t *testing.T) {
	store := newFakeStore()
	gateway := &fakeVerifyGateway{err: domain.NewDomainError(domain.ErrorCodeProcessorNetwork, "down")}

	_, err := newService(store, gateway, false).VerifyAndActivate(context.Background(), "HOPE_net")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeProcessorNetwork, domain.GetErrorCode(err))
	assert.Empty(t, store.payments)
	assert.Empty(t, store.subs)
}

func TestVerifyAndActivateTestModeReference(t *testing.T) {
	store := newFakeStore()
	store.payments = append(store.payments, &domain.Payment{
		ID:                 "pending-1",
		UserID:             "user-1",
		ProcessorReference: "HOPE_testref",
		Amount:             decimal.NewFromFloat(7.99),
		Currency:           "USD",
		Status:             domain.PaymentStatusPending,
		Metadata:           map[string]string{"planType": "monthly", "test": "true"},
		CreatedAt:          time.Now(),
	})
	gateway := &fakeVerifyGateway{err: domain.NewDomainError(domain.ErrorCodeProcessorRejected, "unknown reference")}

	result, err := newService(store, gateway, true).VerifyAndActivate(context.Background(), "HOPE_testref")
	require.NoError(t, err)

	assert.Equal(t, 0, gateway.calls, "simulated references never reach the processor")
	assert.Equal(t, domain.PlanMonthly, result.Subscription.PlanType)
	assert.Equal(t, "test", result.Payment.PaymentMethod)
}

func TestVerifyAndActivateTestReferenceIgnoredWhenDisabled(t *testing.T) {
	store := newFakeStore()
	store.payments = append(store.payments, &domain.Payment{
		ID:                 "pending-2",
		UserID:             "user-1",
		ProcessorReference: "HOPE_stale",
		Status:             domain.PaymentStatusPending,
		Amount:             decimal.NewFromFloat(7.99),
		Metadata:           map[string]string{"planType": "monthly", "test": "true"},
	})
	gateway := &fakeVerifyGateway{err: domain.NewDomainError(domain.ErrorCodeProcessorRejected, "unknown reference")}

	_, err := newService(store, gateway, false).VerifyAndActivate(context.Background(), "HOPE_stale")
	require.Error(t, err)
	assert.Equal(t, 1, gateway.calls, "with the flag off, only the processor decides")
}

func TestVerifyAndActivateEmptyReference(t *testing.T) {
	_, err := newService(newFakeStore(), &fakeVerifyGateway{}, false).VerifyAndActivate(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeInvalidInput, domain.GetErrorCode(err))
}
