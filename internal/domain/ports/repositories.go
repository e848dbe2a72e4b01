package ports

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain"
)

// DBPort provides transactional execution over the store
type DBPort interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

// SubscriptionRepository persists subscription records. A nil tx runs the
// statement against the pool.
type SubscriptionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, sub *domain.Subscription) error
	GetActiveByUser(ctx context.Context, tx pgx.Tx, userID string) (*domain.Subscription, error)
	GetByID(ctx context.Context, tx pgx.Tx, id string) (*domain.Subscription, error)
	// SupersedeActive transitions the user's active row to the given
	// terminal status with a conditional update; returns the number of
	// rows transitioned.
	SupersedeActive(ctx context.Context, tx pgx.Tx, userID string, to domain.SubscriptionStatus) (int64, error)
	Update(ctx context.Context, tx pgx.Tx, sub *domain.Subscription) error
}

// PaymentRepository is the append-only payment ledger
type PaymentRepository interface {
	Create(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error
	GetSuccessByReference(ctx context.Context, tx pgx.Tx, reference string) (*domain.Payment, error)
	// GetByReference returns the newest ledger row for a reference
	// regardless of status.
	GetByReference(ctx context.Context, tx pgx.Tx, reference string) (*domain.Payment, error)
	ListByUser(ctx context.Context, tx pgx.Tx, userID string, limit int32) ([]*domain.Payment, error)
}

// BypassRepository persists the entitlement bypass allow-list
type BypassRepository interface {
	List(ctx context.Context) ([]domain.BypassEntry, error)
	Contains(ctx context.Context, email string) (bool, error)
	Add(ctx context.Context, email string) (bool, error)
	Remove(ctx context.Context, email string) (bool, error)
}
