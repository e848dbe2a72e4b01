package entitlement

import (
	"context"
	"strings"

	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/domain/ports"
)

// BypassService manages the entitlement bypass allow-list. Entries
// change only through these operations; there is no expiry.
type BypassService struct {
	repo   ports.BypassRepository
	logger ports.Logger
}

// NewBypassService creates a bypass list service
func NewBypassService(repo ports.BypassRepository, logger ports.Logger) *BypassService {
	return &BypassService{repo: repo, logger: logger}
}

// List returns all bypass entries
func (s *BypassService) List(ctx context.Context) ([]domain.BypassEntry, error) {
	return s.repo.List(ctx)
}

// Add inserts an email into the list. Returns false if already present.
func (s *BypassService) Add(ctx context.Context, email string) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return false, domain.NewDomainError(domain.ErrorCodeInvalidInput, "a valid email is required")
	}

	added, err := s.repo.Add(ctx, email)
	if err != nil {
		return false, err
	}
	if added {
		s.logger.Info("Bypass entry added", ports.String("email", maskEmail(email)))
	}
	return added, nil
}

// Remove deletes an email from the list. Returns false if absent.
func (s *BypassService) Remove(ctx context.Context, email string) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return false, domain.NewDomainError(domain.ErrorCodeInvalidInput, "email is required")
	}

	removed, err := s.repo.Remove(ctx, email)
	if err != nil {
		return false, err
	}
	if removed {
		s.logger.Info("Bypass entry removed", ports.String("email", maskEmail(email)))
	}
	return removed, nil
}

// maskEmail hides the domain part before logging
func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at < 0 {
		return "***"
	}
	return email[:at] + "@***"
}
