package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/upb/internship-placement/models"
)

var (
	// ErrNotFound is returned when the addressed record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when an insert hits the (student_id, internship_id) uniqueness constraint
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrStatusConflict is returned when a compare-and-set status update finds a different current status
	ErrStatusConflict = errors.New("status changed concurrently")

	// ErrQuotaExhausted is returned when a reservation would exceed the global cap
	ErrQuotaExhausted = errors.New("quota exhausted")
)

// TransactionManager manages database transactions following the GrantPulse pattern
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction.
	// Repositories called with the ctx passed to fn run inside the transaction.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// ApplicationRepository persists applications and owns the (student, internship) uniqueness invariant
type ApplicationRepository interface {
	// Insert stores a new application in a single conditional write.
	// Returns ErrDuplicateKey when the student already applied to the internship.
	Insert(ctx context.Context, app *models.Application) error

	// GetByID retrieves an application by ID, without CV bytes
	GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error)

	// UpdateStatus moves an application from one status to another.
	// Returns ErrNotFound for an unknown id and ErrStatusConflict when the current status is not from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.ApplicationStatus) (*models.Application, error)

	// FindByStudent retrieves all applications of a student
	FindByStudent(ctx context.Context, studentID uuid.UUID) ([]*models.Application, error)

	// FindByCompany retrieves all applications addressed to a company
	FindByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.Application, error)

	// FindByInternship retrieves all applications for an internship opening
	FindByInternship(ctx context.Context, internshipID uuid.UUID) ([]*models.Application, error)

	// GetCVBlob retrieves the CV attached to an application.
	// Returns ErrNotFound when the application has no attached CV.
	GetCVBlob(ctx context.Context, id uuid.UUID) (*models.CVAttachment, error)

	// AppendStatusChange records a committed transition
	AppendStatusChange(ctx context.Context, change *models.StatusChange) error

	// ListStatusHistory retrieves the transitions of an application, oldest first
	ListStatusHistory(ctx context.Context, id uuid.UUID) ([]*models.StatusChange, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) ApplicationRepository
}

// QuotaRepository stores the global cap and the per-student submission counters
type QuotaRepository interface {
	// GetCap returns the current global cap
	GetCap(ctx context.Context) (int, error)

	// SetCap replaces the global cap
	SetCap(ctx context.Context, cap int) error

	// EnsureCap stores defaultCap only when no cap has been configured yet
	EnsureCap(ctx context.Context, defaultCap int) error

	// GetCount returns the submissions charged to a student (0 if unseen)
	GetCount(ctx context.Context, studentID uuid.UUID) (int, error)

	// Reserve checks the student's count against the cap and increments it in one atomic step.
	// Returns the new count, or ErrQuotaExhausted.
	Reserve(ctx context.Context, studentID uuid.UUID) (int, error)
}

// NotificationRepository stores the append-only in-app notification list of each student
type NotificationRepository interface {
	// Append adds a notification to the end of the student's list
	Append(ctx context.Context, n *models.StudentNotification) error

	// ListByStudent returns the student's notifications, oldest first
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*models.StudentNotification, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Applications  ApplicationRepository
	Quotas        QuotaRepository
	Notifications NotificationRepository
}
