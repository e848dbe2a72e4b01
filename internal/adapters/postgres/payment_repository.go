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

// uniqueViolation is the PostgreSQL error code raised when the partial
// unique index on (processor_reference) WHERE status='success' rejects a
// concurrent duplicate
const uniqueViolation = "23505"

// PaymentRepository implements ports.PaymentRepository with pgx. The
// ledger is append-only: rows are created, never updated or deleted.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new payment ledger repository
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) q(tx pgx.Tx) dbtx {
	if tx != nil {
		return tx
	}
	return r.pool
}

const paymentColumns = `id, user_id, subscription_id, processor_reference, amount,
	currency, status, payment_method, description, metadata, created_at`

// Create appends a ledger row. A duplicate success row for the same
// processor reference surfaces as IDEMPOTENCY_CONFLICT; the caller
// handles the race by re-reading.
func (r *PaymentRepository) Create(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error {
	metadata, err := json.Marshal(payment.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	amount, err := decimalToPgNumeric(payment.Amount)
	if err != nil {
		return err
	}

	_, err = r.q(tx).Exec(ctx, `
		INSERT INTO payments (id, user_id, subscription_id, processor_reference, amount,
			currency, status, payment_method, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		payment.ID,
		payment.UserID,
		nullText(payment.SubscriptionID),
		payment.ProcessorReference,
		amount,
		payment.Currency,
		string(payment.Status),
		payment.PaymentMethod,
		payment.Description,
		metadata,
		payment.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.WrapError(domain.ErrorCodeIdempotencyConflict, "payment already recorded", err).
				WithDetail("reference", payment.ProcessorReference)
		}
		return fmt.Errorf("create payment: %w", err)
	}

	return nil
}

// GetSuccessByReference returns the success ledger row for a reference,
// or REFERENCE_NOT_FOUND. This is the verification idempotency check.
func (r *PaymentRepository) GetSuccessByReference(ctx context.Context, tx pgx.Tx, reference string) (*domain.Payment, error) {
	row := r.q(tx).QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE processor_reference = $1 AND status = 'success'`,
		reference,
	)

	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewDomainError(domain.ErrorCodeReferenceNotFound, "no successful payment for reference").
				WithDetail("reference", reference)
		}
		return nil, fmt.Errorf("get payment by reference: %w", err)
	}

	return payment, nil
}

// GetByReference returns the newest ledger row for a reference
// regardless of status, or REFERENCE_NOT_FOUND
func (r *PaymentRepository) GetByReference(ctx context.Context, tx pgx.Tx, reference string) (*domain.Payment, error) {
	row := r.q(tx).QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE processor_reference = $1
		ORDER BY created_at DESC
		LIMIT 1`,
		reference,
	)

	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewDomainError(domain.ErrorCodeReferenceNotFound, "no payment for reference").
				WithDetail("reference", reference)
		}
		return nil, fmt.Errorf("get payment by reference: %w", err)
	}

	return payment, nil
}

// ListByUser returns the user's payment history, newest first
func (r *PaymentRepository) ListByUser(ctx context.Context, tx pgx.Tx, userID string, limit int32) ([]*domain.Payment, error) {
	rows, err := r.q(tx).Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list payments by user: %w", err)
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, payment)
	}

	return payments, rows.Err()
}

// scanPayment maps one row to the domain model
func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		payment        domain.Payment
		subscriptionID pgtype.Text
		amount         pgtype.Numeric
		status         string
		metadataBytes  []byte
	)

	err := row.Scan(
		&payment.ID,
		&payment.UserID,
		&subscriptionID,
		&payment.ProcessorReference,
		&amount,
		&payment.Currency,
		&status,
		&payment.PaymentMethod,
		&payment.Description,
		&metadataBytes,
		&payment.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	payment.Status = domain.PaymentStatus(status)

	if subscriptionID.Valid {
		s := subscriptionID.String
		payment.SubscriptionID = &s
	}

	payment.Amount, err = pgNumericToDecimal(amount)
	if err != nil {
		return nil, err
	}

	if len(metadataBytes) > 0 {
		if err := json.Unmarshal(metadataBytes, &payment.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	return &payment, nil
}
