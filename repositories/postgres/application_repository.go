package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/upb/internship-placement/models"
	"github.com/upb/internship-placement/repositories"
	"go.uber.org/zap"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation
const uniqueViolation = "23505"

// applicationColumns never selects cv_data; list and lookup results carry only the has_cv flag
const applicationColumns = `id, student_id, company_id, internship_id, student_name, email,
		internship_title, company_name, skills, gpa, cover_letter, interest_level,
		use_profile_cv, cv_data IS NOT NULL, status, applied_date, created_at, updated_at`

// ApplicationRepository implements the repositories.ApplicationRepository interface
type ApplicationRepository struct {
	db     *DB
	tx     *Transaction
	logger *zap.Logger
}

// NewApplicationRepository creates a new application repository
func NewApplicationRepository(db *DB, logger *zap.Logger) repositories.ApplicationRepository {
	return &ApplicationRepository{
		db:     db,
		logger: logger,
	}
}

// Insert stores the application unless the (student_id, internship_id) pair already exists.
// The existence check and the write are the same statement.
func (r *ApplicationRepository) Insert(ctx context.Context, app *models.Application) error {
	query := `
		INSERT INTO applications (id, student_id, company_id, internship_id, student_name, email,
			internship_title, company_name, skills, gpa, cover_letter, interest_level,
			use_profile_cv, cv_data, cv_content_type, cv_file_name, status, applied_date,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (student_id, internship_id) DO NOTHING
		RETURNING id
	`

	var cvData, cvContentType, cvFileName interface{}
	if app.CV != nil {
		cvData = app.CV.Data
		cvContentType = app.CV.ContentType
		cvFileName = app.CV.FileName
	}

	executor := boundExecutor(ctx, r.db, r.tx)
	var id uuid.UUID
	err := executor.QueryRowContext(ctx, query,
		app.ID,
		app.StudentID,
		app.CompanyID,
		app.InternshipID,
		app.StudentName,
		app.Email,
		app.InternshipTitle,
		app.CompanyName,
		pq.Array(app.Skills),
		app.GPA,
		app.CoverLetter,
		app.InterestLevel,
		app.UseProfileCV,
		cvData,
		cvContentType,
		cvFileName,
		app.Status,
		app.AppliedDate,
		app.CreatedAt,
		app.UpdatedAt,
	).Scan(&id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repositories.ErrDuplicateKey
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return repositories.ErrDuplicateKey
		}
		return fmt.Errorf("failed to insert application: %w", err)
	}

	r.logger.Debug("application inserted",
		zap.String("id", id.String()),
		zap.String("student_id", app.StudentID.String()),
		zap.String("internship_id", app.InternshipID.String()))
	return nil
}

// GetByID retrieves an application by ID
func (r *ApplicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`

	executor := boundExecutor(ctx, r.db, r.tx)
	app, err := scanApplication(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}

	return app, nil
}

// UpdateStatus is a compare-and-set on the status column
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.ApplicationStatus) (*models.Application, error) {
	query := `
		UPDATE applications
		SET status = $3,
		    updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING ` + applicationColumns

	executor := boundExecutor(ctx, r.db, r.tx)
	app, err := scanApplication(executor.QueryRowContext(ctx, query, id, from, to, time.Now().UTC()))
	if err == nil {
		r.logger.Debug("application status updated",
			zap.String("id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)))
		return app, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update application status: %w", err)
	}

	// Nothing matched: either the id is unknown or the status moved on
	var current string
	err = executor.QueryRowContext(ctx, `SELECT status FROM applications WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load application status: %w", err)
	}
	return nil, fmt.Errorf("%w: current status is %s", repositories.ErrStatusConflict, current)
}

// FindByStudent retrieves all applications of a student
func (r *ApplicationRepository) FindByStudent(ctx context.Context, studentID uuid.UUID) ([]*models.Application, error) {
	return r.list(ctx, "student_id", studentID)
}

// FindByCompany retrieves all applications addressed to a company
func (r *ApplicationRepository) FindByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.Application, error) {
	return r.list(ctx, "company_id", companyID)
}

// FindByInternship retrieves all applications for an internship
func (r *ApplicationRepository) FindByInternship(ctx context.Context, internshipID uuid.UUID) ([]*models.Application, error) {
	return r.list(ctx, "internship_id", internshipID)
}

// list is shared by the Find* methods; column is always a package constant
func (r *ApplicationRepository) list(ctx context.Context, column string, id uuid.UUID) ([]*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE ` + column + ` = $1 ORDER BY applied_date DESC`

	executor := boundExecutor(ctx, r.db, r.tx)
	rows, err := executor.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query applications: %w", err)
	}
	defer rows.Close()

	apps := make([]*models.Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, app)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating application rows: %w", err)
	}

	return apps, nil
}

// GetCVBlob retrieves the CV attached to an application
func (r *ApplicationRepository) GetCVBlob(ctx context.Context, id uuid.UUID) (*models.CVAttachment, error) {
	query := `SELECT cv_data, cv_content_type, cv_file_name FROM applications WHERE id = $1`

	executor := boundExecutor(ctx, r.db, r.tx)
	var (
		data        []byte
		contentType sql.NullString
		fileName    sql.NullString
	)
	err := executor.QueryRowContext(ctx, query, id).Scan(&data, &contentType, &fileName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get application cv: %w", err)
	}
	if data == nil {
		return nil, repositories.ErrNotFound
	}

	return &models.CVAttachment{
		Data:        data,
		ContentType: contentType.String,
		FileName:    fileName.String,
	}, nil
}

// AppendStatusChange records a committed transition
func (r *ApplicationRepository) AppendStatusChange(ctx context.Context, change *models.StatusChange) error {
	query := `
		INSERT INTO application_status_history (id, application_id, from_status, to_status, changed_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	executor := boundExecutor(ctx, r.db, r.tx)
	_, err := executor.ExecContext(ctx, query,
		change.ID,
		change.ApplicationID,
		change.FromStatus,
		change.ToStatus,
		change.ChangedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert status change: %w", err)
	}
	return nil
}

// ListStatusHistory retrieves the transitions of an application, oldest first
func (r *ApplicationRepository) ListStatusHistory(ctx context.Context, id uuid.UUID) ([]*models.StatusChange, error) {
	query := `
		SELECT id, application_id, from_status, to_status, changed_at
		FROM application_status_history
		WHERE application_id = $1
		ORDER BY changed_at ASC
	`

	executor := boundExecutor(ctx, r.db, r.tx)
	rows, err := executor.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	changes := make([]*models.StatusChange, 0)
	for rows.Next() {
		c := &models.StatusChange{}
		if err := rows.Scan(&c.ID, &c.ApplicationID, &c.FromStatus, &c.ToStatus, &c.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status change: %w", err)
		}
		changes = append(changes, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status history rows: %w", err)
	}

	return changes, nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *ApplicationRepository) WithTx(tx repositories.Transaction) repositories.ApplicationRepository {
	pgTx, _ := tx.(*Transaction)
	return &ApplicationRepository{
		db:     r.db,
		tx:     pgTx,
		logger: r.logger,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner) (*models.Application, error) {
	app := &models.Application{}
	var skills pq.StringArray
	err := row.Scan(
		&app.ID,
		&app.StudentID,
		&app.CompanyID,
		&app.InternshipID,
		&app.StudentName,
		&app.Email,
		&app.InternshipTitle,
		&app.CompanyName,
		&skills,
		&app.GPA,
		&app.CoverLetter,
		&app.InterestLevel,
		&app.UseProfileCV,
		&app.HasCV,
		&app.Status,
		&app.AppliedDate,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	app.Skills = []string(skills)
	if app.Skills == nil {
		app.Skills = []string{}
	}
	return app, nil
}
