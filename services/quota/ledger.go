package quota

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/upb/internship-placement/models"
	"github.com/upb/internship-placement/repositories"
	"github.com/upb/internship-placement/services"
	"go.uber.org/zap"
)

// Ledger enforces the global per-student application cap.
// Counters only grow; nothing in the service gives a reservation back.
type Ledger struct {
	repo   repositories.QuotaRepository
	logger *zap.Logger
}

// NewLedger creates a ledger over the given repository
func NewLedger(repo repositories.QuotaRepository, logger *zap.Logger) *Ledger {
	return &Ledger{
		repo:   repo,
		logger: logger,
	}
}

// EnsureDefault seeds the cap on first start; an existing cap is left alone
func (l *Ledger) EnsureDefault(ctx context.Context, defaultCap int) error {
	if defaultCap < 1 {
		return services.ErrInvalidQuotaCap
	}
	if err := l.repo.EnsureCap(ctx, defaultCap); err != nil {
		return services.WrapInternal("failed to seed quota cap", err)
	}
	return nil
}

// Cap returns the current global cap
func (l *Ledger) Cap(ctx context.Context) (int, error) {
	cap, err := l.repo.GetCap(ctx)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return 0, services.WrapInternal("quota cap is not configured", err)
		}
		return 0, services.WrapInternal("failed to read quota cap", err)
	}
	return cap, nil
}

// SetCap replaces the global cap. Lowering it below a student's count blocks
// that student's future submissions without touching existing ones.
func (l *Ledger) SetCap(ctx context.Context, cap int) error {
	if cap < 1 {
		return services.ErrInvalidQuotaCap.Newf("%s", services.ErrInvalidQuotaCap.Message).
			WithDetail("max_applications_per_student", cap)
	}
	if err := l.repo.SetCap(ctx, cap); err != nil {
		return services.WrapInternal("failed to update quota cap", err)
	}
	return nil
}

// Count returns the submissions charged to the student, 0 if none
func (l *Ledger) Count(ctx context.Context, studentID uuid.UUID) (int, error) {
	count, err := l.repo.GetCount(ctx, studentID)
	if err != nil {
		return 0, services.WrapInternal("failed to read quota usage", err)
	}
	return count, nil
}

// Usage returns the student's count alongside the cap
func (l *Ledger) Usage(ctx context.Context, studentID uuid.UUID) (*models.QuotaUsage, error) {
	cap, err := l.Cap(ctx)
	if err != nil {
		return nil, err
	}
	count, err := l.Count(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return &models.QuotaUsage{StudentID: studentID, ApplicationsSent: count, Cap: cap}, nil
}

// Reserve charges one submission to the student, or fails with a quota_exceeded
// error carrying the cap and count observed right after the refusal.
func (l *Ledger) Reserve(ctx context.Context, studentID uuid.UUID) (int, error) {
	count, err := l.repo.Reserve(ctx, studentID)
	if err == nil {
		return count, nil
	}
	if !errors.Is(err, repositories.ErrQuotaExhausted) {
		return 0, services.WrapInternal("failed to reserve quota", err)
	}

	cap, capErr := l.repo.GetCap(ctx)
	current, countErr := l.repo.GetCount(ctx, studentID)
	if capErr != nil || countErr != nil {
		l.logger.Warn("failed to load quota details for refusal",
			zap.String("student_id", studentID.String()),
			zap.NamedError("cap_error", capErr),
			zap.NamedError("count_error", countErr))
	}

	l.logger.Info("quota reservation refused",
		zap.String("student_id", studentID.String()),
		zap.Int("cap", cap),
		zap.Int("count", current))

	return 0, services.ErrQuotaExceeded.Newf("application limit of %d reached", cap).
		WithDetail("max_applications_per_student", cap).
		WithDetail("applications_sent", current)
}
