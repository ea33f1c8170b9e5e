package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/internship-placement/models"
	"github.com/upb/internship-placement/repositories"
	"go.uber.org/zap"
)

// NotificationRepository implements the repositories.NotificationRepository interface
type NotificationRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *DB, logger *zap.Logger) repositories.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Append adds a notification to the student's list
func (r *NotificationRepository) Append(ctx context.Context, n *models.StudentNotification) error {
	query := `
		INSERT INTO student_notifications (id, student_id, application_id, message, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		n.ID,
		n.StudentID,
		n.ApplicationID,
		n.Message,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append notification: %w", err)
	}
	return nil
}

// ListByStudent returns the student's notifications in append order
func (r *NotificationRepository) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*models.StudentNotification, error) {
	query := `
		SELECT id, student_id, application_id, message, created_at
		FROM student_notifications
		WHERE student_id = $1
		ORDER BY seq ASC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]*models.StudentNotification, 0)
	for rows.Next() {
		n := &models.StudentNotification{}
		if err := rows.Scan(&n.ID, &n.StudentID, &n.ApplicationID, &n.Message, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", err)
	}

	return notifications, nil
}
