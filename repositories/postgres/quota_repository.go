package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/upb/internship-placement/repositories"
	"go.uber.org/zap"
)

// QuotaRepository implements the repositories.QuotaRepository interface
type QuotaRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewQuotaRepository creates a new quota repository
func NewQuotaRepository(db *DB, logger *zap.Logger) repositories.QuotaRepository {
	return &QuotaRepository{
		db:     db,
		logger: logger,
	}
}

// GetCap returns the configured global cap
func (r *QuotaRepository) GetCap(ctx context.Context) (int, error) {
	query := `SELECT max_applications_per_student FROM quota_settings WHERE id = 1`

	executor := GetExecutor(ctx, r.db)
	var cap int
	if err := executor.QueryRowContext(ctx, query).Scan(&cap); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, repositories.ErrNotFound
		}
		return 0, fmt.Errorf("failed to get quota cap: %w", err)
	}
	return cap, nil
}

// SetCap replaces the global cap
func (r *QuotaRepository) SetCap(ctx context.Context, cap int) error {
	query := `
		INSERT INTO quota_settings (id, max_applications_per_student, updated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE
		SET max_applications_per_student = EXCLUDED.max_applications_per_student,
		    updated_at = EXCLUDED.updated_at
	`

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, query, cap, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to set quota cap: %w", err)
	}

	r.logger.Info("quota cap updated", zap.Int("max_applications_per_student", cap))
	return nil
}

// EnsureCap stores defaultCap only when no cap row exists
func (r *QuotaRepository) EnsureCap(ctx context.Context, defaultCap int) error {
	query := `
		INSERT INTO quota_settings (id, max_applications_per_student, updated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO NOTHING
	`

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, query, defaultCap, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to seed quota cap: %w", err)
	}
	return nil
}

// GetCount returns the submissions charged to a student
func (r *QuotaRepository) GetCount(ctx context.Context, studentID uuid.UUID) (int, error) {
	query := `SELECT applications_sent FROM student_quotas WHERE student_id = $1`

	executor := GetExecutor(ctx, r.db)
	var count int
	if err := executor.QueryRowContext(ctx, query, studentID).Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get quota usage: %w", err)
	}
	return count, nil
}

// Reserve increments the student's counter only while it is below the cap.
// The upsert takes the row lock, so concurrent reservations for one student serialize on it.
func (r *QuotaRepository) Reserve(ctx context.Context, studentID uuid.UUID) (int, error) {
	query := `
		INSERT INTO student_quotas (student_id, applications_sent, updated_at)
		SELECT $1, 1, $2
		WHERE EXISTS (SELECT 1 FROM quota_settings WHERE id = 1 AND max_applications_per_student >= 1)
		ON CONFLICT (student_id) DO UPDATE
		SET applications_sent = student_quotas.applications_sent + 1,
		    updated_at = EXCLUDED.updated_at
		WHERE student_quotas.applications_sent <
		      (SELECT max_applications_per_student FROM quota_settings WHERE id = 1)
		RETURNING applications_sent
	`

	executor := GetExecutor(ctx, r.db)
	var count int
	err := executor.QueryRowContext(ctx, query, studentID, time.Now().UTC()).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, repositories.ErrQuotaExhausted
		}
		return 0, fmt.Errorf("failed to reserve quota: %w", err)
	}

	r.logger.Debug("quota reserved",
		zap.String("student_id", studentID.String()),
		zap.Int("applications_sent", count))
	return count, nil
}
