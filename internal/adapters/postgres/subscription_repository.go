package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain"
)

// SubscriptionRepository implements ports.SubscriptionRepository with pgx
type SubscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

func (r *SubscriptionRepository) q(tx pgx.Tx) dbtx {
	if tx != nil {
		return tx
	}
	return r.pool
}

const subscriptionColumns = `id, user_id, plan_type, status, start_date, end_date,
	next_billing_date, processor_subscription_id, features, created_at, updated_at, cancelled_at`

// Create inserts a new subscription row. Losing the one-active-per-user
// index race surfaces as IDEMPOTENCY_CONFLICT; the caller supersedes
// the winner and retries.
func (r *SubscriptionRepository) Create(ctx context.Context, tx pgx.Tx, sub *domain.Subscription) error {
	features, err := json.Marshal(sub.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}

	_, err = r.q(tx).Exec(ctx, `
		INSERT INTO subscriptions (id, user_id, plan_type, status, start_date, end_date,
			next_billing_date, processor_subscription_id, features, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sub.ID,
		sub.UserID,
		string(sub.PlanType),
		string(sub.Status),
		sub.StartDate,
		sub.EndDate,
		nullTime(sub.NextBillingDate),
		nullText(sub.ProcessorSubscriptionID),
		features,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.WrapError(domain.ErrorCodeIdempotencyConflict, "user already has an active subscription", err).
				WithDetail("user_id", sub.UserID)
		}
		return fmt.Errorf("create subscription: %w", err)
	}

	return nil
}

// GetActiveByUser returns the subscription currently governing the
// user's entitlement. Cancelled rows count until their paid period ends.
// Only the partial unique index guarantees a single active row, so an
// active row is preferred over a cancelled remainder.
func (r *SubscriptionRepository) GetActiveByUser(ctx context.Context, tx pgx.Tx, userID string) (*domain.Subscription, error) {
	row := r.q(tx).QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = $1
		  AND (status = 'active' OR (status = 'cancelled' AND end_date > now()))
		ORDER BY (status = 'active') DESC, end_date DESC
		LIMIT 1`,
		userID,
	)

	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewDomainError(domain.ErrorCodeSubscriptionNotFound, "no active subscription").
				WithDetail("user_id", userID)
		}
		return nil, fmt.Errorf("get active subscription: %w", err)
	}

	return sub, nil
}

// GetByID retrieves a subscription by its ID
func (r *SubscriptionRepository) GetByID(ctx context.Context, tx pgx.Tx, id string) (*domain.Subscription, error) {
	row := r.q(tx).QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE id = $1`,
		id,
	)

	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewDomainError(domain.ErrorCodeSubscriptionNotFound, "subscription not found").
				WithDetail("subscription_id", id)
		}
		return nil, fmt.Errorf("get subscription by id: %w", err)
	}

	return sub, nil
}

// SupersedeActive transitions any row still granting the user
// entitlement, including a cancelled remainder, to the given terminal
// status. The WHERE clause makes this a conditional update: a row
// already superseded by a concurrent writer is not resurrected.
func (r *SubscriptionRepository) SupersedeActive(ctx context.Context, tx pgx.Tx, userID string, to domain.SubscriptionStatus) (int64, error) {
	tag, err := r.q(tx).Exec(ctx, `
		UPDATE subscriptions
		SET status = $1, updated_at = now()
		WHERE user_id = $2 AND status IN ('active', 'cancelled')`,
		string(to),
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("supersede active subscription: %w", err)
	}

	return tag.RowsAffected(), nil
}

// Update persists mutable subscription fields
func (r *SubscriptionRepository) Update(ctx context.Context, tx pgx.Tx, sub *domain.Subscription) error {
	features, err := json.Marshal(sub.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}

	_, err = r.q(tx).Exec(ctx, `
		UPDATE subscriptions
		SET plan_type = $2, status = $3, end_date = $4, next_billing_date = $5,
			processor_subscription_id = $6, features = $7, updated_at = $8, cancelled_at = $9
		WHERE id = $1`,
		sub.ID,
		string(sub.PlanType),
		string(sub.Status),
		sub.EndDate,
		nullTime(sub.NextBillingDate),
		nullText(sub.ProcessorSubscriptionID),
		features,
		sub.UpdatedAt,
		nullTime(sub.CancelledAt),
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}

	return nil
}

// scanSubscription maps one row to the domain model
func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var (
		sub             domain.Subscription
		nextBilling     pgtype.Timestamptz
		processorSubID  pgtype.Text
		featuresBytes   []byte
		cancelledAt     pgtype.Timestamptz
		planType        string
		status          string
	)

	err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&planType,
		&status,
		&sub.StartDate,
		&sub.EndDate,
		&nextBilling,
		&processorSubID,
		&featuresBytes,
		&sub.CreatedAt,
		&sub.UpdatedAt,
		&cancelledAt,
	)
	if err != nil {
		return nil, err
	}

	sub.PlanType = domain.PlanType(planType)
	sub.Status = domain.SubscriptionStatus(status)

	if nextBilling.Valid {
		t := nextBilling.Time
		sub.NextBillingDate = &t
	}
	if processorSubID.Valid {
		s := processorSubID.String
		sub.ProcessorSubscriptionID = &s
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		sub.CancelledAt = &t
	}
	if len(featuresBytes) > 0 {
		if err := json.Unmarshal(featuresBytes, &sub.Features); err != nil {
			return nil, fmt.Errorf("unmarshal features: %w", err)
		}
	}

	return &sub, nil
}
