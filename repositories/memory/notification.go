package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/upb/internship-placement/models"
)

// NotificationRepository implements repositories.NotificationRepository in memory
type NotificationRepository struct {
	mu   sync.RWMutex
	byID map[uuid.UUID][]*models.StudentNotification
}

// NewNotificationRepository creates an empty notification store
func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{byID: make(map[uuid.UUID][]*models.StudentNotification)}
}

// Append adds a notification at the end of the student's list
func (r *NotificationRepository) Append(ctx context.Context, n *models.StudentNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *n
	r.byID[n.StudentID] = append(r.byID[n.StudentID], &cp)
	return nil
}

// ListByStudent returns copies of the student's notifications in append order
func (r *NotificationRepository) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*models.StudentNotification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.StudentNotification, 0, len(r.byID[studentID]))
	for _, n := range r.byID[studentID] {
		cp := *n
		out = append(out, &cp)
	}
	return out, nil
}
