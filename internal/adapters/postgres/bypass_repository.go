package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain"
)

// BypassRepository implements ports.BypassRepository with pgx. Entries
// are keyed by lowercased email.
type BypassRepository struct {
	pool *pgxpool.Pool
}

// NewBypassRepository creates a new bypass allow-list repository
func NewBypassRepository(pool *pgxpool.Pool) *BypassRepository {
	return &BypassRepository{pool: pool}
}

// List returns all bypass entries
func (r *BypassRepository) List(ctx context.Context) ([]domain.BypassEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT email, created_at
		FROM bypass_entries
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list bypass entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.BypassEntry
	for rows.Next() {
		var entry domain.BypassEntry
		if err := rows.Scan(&entry.Email, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bypass entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Contains reports whether the email is on the allow-list
func (r *BypassRepository) Contains(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM bypass_entries WHERE email = $1)`,
		normalize(email),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check bypass entry: %w", err)
	}
	return exists, nil
}

// Add inserts an entry; returns false when the email is already present
func (r *BypassRepository) Add(ctx context.Context, email string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO bypass_entries (email, created_at)
		VALUES ($1, now())
		ON CONFLICT (email) DO NOTHING`,
		normalize(email),
	)
	if err != nil {
		return false, fmt.Errorf("add bypass entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Remove deletes an entry; returns false when the email was absent
func (r *BypassRepository) Remove(ctx context.Context, email string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM bypass_entries WHERE email = $1`,
		normalize(email),
	)
	if err != nil {
		return false, fmt.Errorf("remove bypass entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
