package models

import (
	"time"

	"github.com/google/uuid"
)

// StudentNotification is one entry of a student's in-app notification list
type StudentNotification struct {
	ID            uuid.UUID `json:"id" db:"id"`
	StudentID     uuid.UUID `json:"student_id" db:"student_id"`
	ApplicationID uuid.UUID `json:"application_id" db:"application_id"`
	Message       string    `json:"message" db:"message"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the StudentNotification model
func (StudentNotification) TableName() string {
	return "student_notifications"
}

// NewStudentNotification creates a new StudentNotification instance
func NewStudentNotification(studentID, applicationID uuid.UUID, message string) *StudentNotification {
	return &StudentNotification{
		ID:            uuid.New(),
		StudentID:     studentID,
		ApplicationID: applicationID,
		Message:       message,
		CreatedAt:     time.Now().UTC(),
	}
}

// QuotaSettings holds the process-wide application cap
type QuotaSettings struct {
	MaxApplicationsPerStudent int       `json:"max_applications_per_student" db:"max_applications_per_student"`
	UpdatedAt                 time.Time `json:"updated_at" db:"updated_at"`
}

// QuotaUsage is a student's position against the global cap
type QuotaUsage struct {
	StudentID        uuid.UUID `json:"student_id"`
	ApplicationsSent int       `json:"applications_sent"`
	Cap              int       `json:"max_applications_per_student"`
}

// Remaining returns how many more submissions the cap allows
func (u QuotaUsage) Remaining() int {
	if u.ApplicationsSent >= u.Cap {
		return 0
	}
	return u.Cap - u.ApplicationsSent
}
