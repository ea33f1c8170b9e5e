package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/internship-placement/models"
	"github.com/upb/internship-placement/repositories"
	"go.uber.org/zap"
)

var applicationRowColumns = []string{
	"id", "student_id", "company_id", "internship_id", "student_name", "email",
	"internship_title", "company_name", "skills", "gpa", "cover_letter", "interest_level",
	"use_profile_cv", "has_cv", "status", "applied_date", "created_at", "updated_at",
}

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return Wrap(sqlDB, zap.NewNop()), mock
}

func anyArgs(n int) []driver.Value {
	args := make([]driver.Value, n)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	return args
}

func testApplication() *models.Application {
	return models.NewApplication(models.Snapshot{
		StudentID:       uuid.New(),
		CompanyID:       uuid.New(),
		InternshipID:    uuid.New(),
		StudentName:     "Ana Gomez",
		Email:           "ana@example.edu",
		InternshipTitle: "Backend Intern",
		CompanyName:     "Acme",
		Skills:          []string{"go", "sql"},
		GPA:             3.8,
		CoverLetter:     "Hello",
		InterestLevel:   80,
		UseProfileCV:    true,
	})
}

func applicationRow(app *models.Application, status models.ApplicationStatus) *sqlmock.Rows {
	return sqlmock.NewRows(applicationRowColumns).AddRow(
		app.ID.String(), app.StudentID.String(), app.CompanyID.String(), app.InternshipID.String(),
		app.StudentName, app.Email, app.InternshipTitle, app.CompanyName, "{go,sql}",
		app.GPA, app.CoverLetter, app.InterestLevel, app.UseProfileCV, app.HasCV,
		string(status), app.AppliedDate, app.CreatedAt, app.UpdatedAt,
	)
}

func TestApplicationRepository_Insert(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts new application", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewApplicationRepository(db, zap.NewNop())
		app := testApplication()

		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO applications")).
			WithArgs(anyArgs(20)...).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(app.ID.String()))

		require.NoError(t, repo.Insert(ctx, app))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("conflict returns duplicate key", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewApplicationRepository(db, zap.NewNop())

		mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (student_id, internship_id) DO NOTHING")).
			WithArgs(anyArgs(20)...).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		err := repo.Insert(ctx, testApplication())
		assert.ErrorIs(t, err, repositories.ErrDuplicateKey)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation returns duplicate key", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewApplicationRepository(db, zap.NewNop())

		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO applications")).
			WithArgs(anyArgs(20)...).
			WillReturnError(&pq.Error{Code: uniqueViolation})

		err := repo.Insert(ctx, testApplication())
		assert.ErrorIs(t, err, repositories.ErrDuplicateKey)
	})

	t.Run("other errors are wrapped", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewApplicationRepository(db, zap.NewNop())

		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO applications")).
			WithArgs(anyArgs(20)...).
			WillReturnError(errors.New("connection reset"))

		err := repo.Insert(ctx, testApplication())
		require.Error(t, err)
		assert.NotErrorIs(t, err, repositories.ErrDuplicateKey)
		assert.Contains(t, err.Error(), "failed to insert application")
	})
}

func TestApplicationRepository_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewApplicationRepository(db, zap.NewNop())
		app := testApplication()

		mock.ExpectQuery(regexp.QuoteMeta("FROM applications WHERE id = $1")).
			WithArgs(app.ID).
			WillReturnRows(applicationRow(app, models.StatusPending))

		got, err := repo.GetByID(ctx, app.ID)
		require.NoError(t, err)
		assert.Equal(t, app.ID, got.ID)
		assert.Equal(t, app.StudentName, got.StudentName)
		assert.Equal(t, []string{"go", "sql"}, got.Skills)
		assert.Equal(t, models.StatusPending, got.Status)
		assert.Nil(t, got.CV)
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewApplicationRepository(db, zap.NewNop())

		mock.ExpectQuery(regexp.QuoteMeta("FROM applications WHERE id = $1")).
			WillReturnRows(sqlmock.NewRows(applicationRowColumns))

		_, err := repo.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestApplicationRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("pending to accepted", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewApplicationRepository(db, zap.NewNop())
		app := testApplication()

		mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND status = $2")).
			WithArgs(app.ID, models.StatusPending, models.StatusAccepted, sqlmock.AnyArg()).
			WillReturnRows(applicationRow(app, models.StatusAccepted))

		got, err := repo.UpdateStatus(ctx, app.ID, models.StatusPending, models.StatusAccepted)
		require.NoError(t, err)
		assert.Equal(t, models.StatusAccepted, got.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("status moved on", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewApplicationRepository(db, zap.NewNop())
		id := uuid.New()

		mock.ExpectQuery(regexp.QuoteMeta("UPDATE applications")).
			WillReturnRows(sqlmock.NewRows(applicationRowColumns))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM applications WHERE id = $1")).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("rejected"))

		_, err := repo.UpdateStatus(ctx, id, models.StatusPending, models.StatusAccepted)
		assert.ErrorIs(t, err, repositories.ErrStatusConflict)
		assert.Contains(t, err.Error(), "rejected")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown id", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewApplicationRepository(db, zap.NewNop())

		mock.ExpectQuery(regexp.QuoteMeta("UPDATE applications")).
			WillReturnRows(sqlmock.NewRows(applicationRowColumns))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM applications")).
			WillReturnRows(sqlmock.NewRows([]string{"status"}))

		_, err := repo.UpdateStatus(ctx, uuid.New(), models.StatusPending, models.StatusRejected)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestApplicationRepository_FindByStudent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApplicationRepository(db, zap.NewNop())

	first := testApplication()
	second := testApplication()
	second.StudentID = first.StudentID

	rows := applicationRow(second, models.StatusPending)
	rows.AddRow(
		first.ID.String(), first.StudentID.String(), first.CompanyID.String(), first.InternshipID.String(),
		first.StudentName, first.Email, first.InternshipTitle, first.CompanyName, "{}",
		first.GPA, first.CoverLetter, first.InterestLevel, false, true,
		"accepted", first.AppliedDate, first.CreatedAt, first.UpdatedAt,
	)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE student_id = $1 ORDER BY applied_date DESC")).
		WithArgs(first.StudentID).
		WillReturnRows(rows)

	apps, err := repo.FindByStudent(context.Background(), first.StudentID)
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, second.ID, apps[0].ID)
	assert.Equal(t, first.ID, apps[1].ID)
	assert.True(t, apps[1].HasCV)
	assert.Empty(t, apps[1].Skills)
	assert.NotNil(t, apps[1].Skills)
}

func TestApplicationRepository_FindByCompanyAndInternship(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApplicationRepository(db, zap.NewNop())
	companyID := uuid.New()
	internshipID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE company_id = $1")).
		WithArgs(companyID).
		WillReturnRows(sqlmock.NewRows(applicationRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE internship_id = $1")).
		WithArgs(internshipID).
		WillReturnRows(sqlmock.NewRows(applicationRowColumns))

	byCompany, err := repo.FindByCompany(context.Background(), companyID)
	require.NoError(t, err)
	assert.Empty(t, byCompany)

	byInternship, err := repo.FindByInternship(context.Background(), internshipID)
	require.NoError(t, err)
	assert.Empty(t, byInternship)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_GetCVBlob(t *testing.T) {
	ctx := context.Background()
	query := regexp.QuoteMeta("SELECT cv_data, cv_content_type, cv_file_name FROM applications")

	t.Run("attached cv", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewApplicationRepository(db, zap.NewNop())

		mock.ExpectQuery(query).
			WillReturnRows(sqlmock.NewRows([]string{"cv_data", "cv_content_type", "cv_file_name"}).
				AddRow([]byte("%PDF-1.4"), "application/pdf", "cv.pdf"))

		cv, err := repo.GetCVBlob(ctx, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, []byte("%PDF-1.4"), cv.Data)
		assert.Equal(t, "application/pdf", cv.ContentType)
		assert.Equal(t, "cv.pdf", cv.FileName)
	})

	t.Run("profile cv only", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewApplicationRepository(db, zap.NewNop())

		mock.ExpectQuery(query).
			WillReturnRows(sqlmock.NewRows([]string{"cv_data", "cv_content_type", "cv_file_name"}).
				AddRow(nil, nil, nil))

		_, err := repo.GetCVBlob(ctx, uuid.New())
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})

	t.Run("unknown application", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewApplicationRepository(db, zap.NewNop())

		mock.ExpectQuery(query).
			WillReturnRows(sqlmock.NewRows([]string{"cv_data", "cv_content_type", "cv_file_name"}))

		_, err := repo.GetCVBlob(ctx, uuid.New())
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestApplicationRepository_StatusHistory(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApplicationRepository(db, zap.NewNop())
	appID := uuid.New()
	change := models.NewStatusChange(appID, models.StatusPending, models.StatusRejected)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO application_status_history")).
		WithArgs(change.ID, appID, models.StatusPending, models.StatusRejected, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM application_status_history")).
		WithArgs(appID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "application_id", "from_status", "to_status", "changed_at"}).
			AddRow(change.ID.String(), appID.String(), "pending", "rejected", time.Now()))

	require.NoError(t, repo.AppendStatusChange(context.Background(), change))

	history, err := repo.ListStatusHistory(context.Background(), appID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.StatusPending, history[0].FromStatus)
	assert.Equal(t, models.StatusRejected, history[0].ToStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_WithTx(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApplicationRepository(db, zap.NewNop())
	tm := NewTransactionManager(db, zap.NewNop())
	app := testApplication()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE applications")).
		WillReturnRows(applicationRow(app, models.StatusAccepted))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO application_status_history")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := tm.InTransaction(context.Background(), func(ctx context.Context, tx repositories.Transaction) error {
		txRepo := repo.WithTx(tx)
		if _, err := txRepo.UpdateStatus(ctx, app.ID, models.StatusPending, models.StatusAccepted); err != nil {
			return err
		}
		return txRepo.AppendStatusChange(ctx, models.NewStatusChange(app.ID, models.StatusPending, models.StatusAccepted))
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
