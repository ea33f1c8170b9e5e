// Package applications orchestrates submission and company decisions on
// internship applications.
package applications

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/upb/internship-placement/internal/observability"
	"github.com/upb/internship-placement/models"
	"github.com/upb/internship-placement/repositories"
	"github.com/upb/internship-placement/services"
	"github.com/upb/internship-placement/services/lifecycle"
	"github.com/upb/internship-placement/services/notification"
	"github.com/upb/internship-placement/services/quota"
	"github.com/upb/internship-placement/utils"
	"go.uber.org/zap"
)

// Submission outcomes reported to metrics
const (
	outcomeCreated   = "created"
	outcomeInvalid   = "invalid"
	outcomeDuplicate = "duplicate"
	outcomeQuota     = "quota_exceeded"
	outcomeError     = "error"
)

// Dispatcher queues decision notifications
type Dispatcher interface {
	Dispatch(event notification.Event) error
}

// CVUpload is a CV attached to one submission
type CVUpload struct {
	Data        []byte
	ContentType string
	FileName    string
}

// SubmitInput is everything a submission carries. Name, email, title, company,
// skills and GPA are the caller's snapshot of the live profiles.
type SubmitInput struct {
	StudentID       uuid.UUID `json:"student_id" validate:"notnil_uuid"`
	CompanyID       uuid.UUID `json:"company_id" validate:"notnil_uuid"`
	InternshipID    uuid.UUID `json:"internship_id" validate:"notnil_uuid"`
	StudentName     string    `json:"student_name" validate:"required"`
	Email           string    `json:"email" validate:"required,email"`
	InternshipTitle string    `json:"internship_title" validate:"required"`
	CompanyName     string    `json:"company_name" validate:"required"`
	Skills          []string  `json:"skills"`
	GPA             float64   `json:"gpa" validate:"gte=0,lte=4"`
	CoverLetter     string    `json:"cover_letter"`
	InterestLevel   int       `json:"interest_level" validate:"gte=0,lte=100"`
	UseProfileCV    bool      `json:"use_profile_cv"`
	CV              *CVUpload `json:"-"`
}

// Service is the single entry point composing the store, the quota ledger,
// the state machine and the notification dispatcher
type Service struct {
	apps          repositories.ApplicationRepository
	notifications repositories.NotificationRepository
	txManager     repositories.TransactionManager
	ledger        *quota.Ledger
	machine       *lifecycle.StateMachine
	dispatcher    Dispatcher
	metrics       *observability.Metrics
	logger        *zap.Logger
}

// NewService creates a new application service
func NewService(
	repos *repositories.Repositories,
	txManager repositories.TransactionManager,
	ledger *quota.Ledger,
	dispatcher Dispatcher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		apps:          repos.Applications,
		notifications: repos.Notifications,
		txManager:     txManager,
		ledger:        ledger,
		machine:       lifecycle.NewStateMachine(),
		dispatcher:    dispatcher,
		metrics:       metrics,
		logger:        logger,
	}
}

// Submit validates the input, charges the student's quota and stores a pending
// application. A reservation is kept even when the insert then loses a
// duplicate race.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*models.Application, error) {
	if err := utils.ValidateStruct(&in); err != nil {
		s.metrics.RecordSubmission(outcomeInvalid)
		return nil, services.NewValidationError("invalid application", utils.GetValidationFields(err))
	}

	// Fast path for an already existing pair, so a student at the cap still
	// hears "already applied". The conditional insert below stays authoritative.
	if exists, err := s.hasApplied(ctx, in.StudentID, in.InternshipID); err != nil {
		s.metrics.RecordSubmission(outcomeError)
		return nil, err
	} else if exists {
		s.metrics.RecordSubmission(outcomeDuplicate)
		return nil, duplicateError(in)
	}

	count, err := s.ledger.Reserve(ctx, in.StudentID)
	if err != nil {
		if services.IsQuotaExceededError(err) {
			s.metrics.RecordSubmission(outcomeQuota)
			s.metrics.RecordQuotaRejection()
		} else {
			s.metrics.RecordSubmission(outcomeError)
		}
		return nil, err
	}

	app := models.NewApplication(in.snapshot())
	if err := s.apps.Insert(ctx, app); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			s.logger.Info("duplicate application after quota reservation",
				zap.String("student_id", in.StudentID.String()),
				zap.String("internship_id", in.InternshipID.String()),
				zap.Int("applications_sent", count))
			s.metrics.RecordSubmission(outcomeDuplicate)
			return nil, duplicateError(in)
		}
		s.metrics.RecordSubmission(outcomeError)
		return nil, services.WrapInternal("failed to store application", err)
	}

	s.metrics.RecordSubmission(outcomeCreated)
	s.logger.Info("application submitted",
		zap.String("application_id", app.ID.String()),
		zap.String("student_id", app.StudentID.String()),
		zap.String("internship_id", app.InternshipID.String()),
		zap.Int("applications_sent", count))

	return app.WithoutCV(), nil
}

func (s *Service) hasApplied(ctx context.Context, studentID, internshipID uuid.UUID) (bool, error) {
	existing, err := s.apps.FindByStudent(ctx, studentID)
	if err != nil {
		return false, services.WrapInternal("failed to check existing applications", err)
	}
	for _, app := range existing {
		if app.InternshipID == internshipID {
			return true, nil
		}
	}
	return false, nil
}

func duplicateError(in SubmitInput) error {
	return services.ErrDuplicateApplication.Newf("%s", services.ErrDuplicateApplication.Message).
		WithDetail("student_id", in.StudentID.String()).
		WithDetail("internship_id", in.InternshipID.String())
}

func (in SubmitInput) snapshot() models.Snapshot {
	snap := models.Snapshot{
		StudentID:       in.StudentID,
		CompanyID:       in.CompanyID,
		InternshipID:    in.InternshipID,
		StudentName:     in.StudentName,
		Email:           in.Email,
		InternshipTitle: in.InternshipTitle,
		CompanyName:     in.CompanyName,
		Skills:          in.Skills,
		GPA:             in.GPA,
		CoverLetter:     in.CoverLetter,
		InterestLevel:   in.InterestLevel,
		UseProfileCV:    in.UseProfileCV,
	}
	if in.CV != nil {
		snap.CV = &models.CVAttachment{Data: in.CV.Data, ContentType: in.CV.ContentType, FileName: in.CV.FileName}
	}
	return snap
}

// Accept moves a pending application to accepted and notifies the student
func (s *Service) Accept(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	return s.decide(ctx, id, lifecycle.Accept)
}

// Reject moves a pending application to rejected and notifies the student
func (s *Service) Reject(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	return s.decide(ctx, id, lifecycle.Reject)
}

func (s *Service) decide(ctx context.Context, id uuid.UUID, t lifecycle.Transition) (*models.Application, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		s.metrics.RecordTransition(string(t), outcomeOf(err))
		return nil, err
	}

	target, err := s.machine.Next(current.Status, t)
	if err != nil {
		s.metrics.RecordTransition(string(t), outcomeOf(err))
		return nil, err
	}

	updated, err := services.WithTransactionResult(ctx, s.txManager,
		func(ctx context.Context, tx repositories.Transaction) (*models.Application, error) {
			apps := s.apps.WithTx(tx)

			app, err := apps.UpdateStatus(ctx, id, models.StatusPending, target)
			if err != nil {
				return nil, err
			}
			if err := apps.AppendStatusChange(ctx, models.NewStatusChange(id, models.StatusPending, target)); err != nil {
				return nil, err
			}
			return app, nil
		})
	if err != nil {
		err = s.mapTransitionError(id, t, err)
		s.metrics.RecordTransition(string(t), outcomeOf(err))
		return nil, err
	}

	s.metrics.RecordTransition(string(t), "ok")
	s.logger.Info("application decided",
		zap.String("application_id", id.String()),
		zap.String("status", string(target)))

	// the decision is committed; a notification problem must not undo it
	if s.dispatcher != nil {
		if err := s.dispatcher.Dispatch(notification.Event{Application: updated.Clone(), Outcome: target}); err != nil {
			s.logger.Warn("failed to queue decision notification",
				zap.String("application_id", id.String()),
				zap.Error(err))
		}
	}

	return updated, nil
}

func (s *Service) mapTransitionError(id uuid.UUID, t lifecycle.Transition, err error) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return services.ErrApplicationNotFound
	case errors.Is(err, repositories.ErrStatusConflict):
		return services.NewDomainError(services.ErrorTypeInvalidTransition,
			"application was decided concurrently", err).
			WithDetail("transition", string(t))
	case services.GetErrorType(err) != "":
		return err
	default:
		s.logger.Error("failed to update application status",
			zap.String("application_id", id.String()),
			zap.Error(err))
		return services.WrapInternal("failed to update application status", err)
	}
}

func outcomeOf(err error) string {
	if t := services.GetErrorType(err); t != "" {
		return string(t)
	}
	return outcomeError
}

// Get returns one application without CV bytes
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrApplicationNotFound
		}
		return nil, services.WrapInternal("failed to load application", err)
	}
	return app, nil
}

// ListByStudent returns a student's applications, newest first
func (s *Service) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*models.Application, error) {
	return s.list(s.apps.FindByStudent(ctx, studentID))
}

// ListByCompany returns the applications addressed to a company, newest first
func (s *Service) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.Application, error) {
	return s.list(s.apps.FindByCompany(ctx, companyID))
}

// ListByInternship returns the applications for one opening, newest first
func (s *Service) ListByInternship(ctx context.Context, internshipID uuid.UUID) ([]*models.Application, error) {
	return s.list(s.apps.FindByInternship(ctx, internshipID))
}

func (s *Service) list(apps []*models.Application, err error) ([]*models.Application, error) {
	if err != nil {
		return nil, services.WrapInternal("failed to list applications", err)
	}
	if apps == nil {
		apps = []*models.Application{}
	}
	sort.SliceStable(apps, func(i, j int) bool {
		return apps[i].AppliedDate.After(apps[j].AppliedDate)
	})
	return apps, nil
}

// GetCV returns the CV uploaded with an application
func (s *Service) GetCV(ctx context.Context, id uuid.UUID) (*models.CVAttachment, error) {
	cv, err := s.apps.GetCVBlob(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrCVNotFound
		}
		return nil, services.WrapInternal("failed to load CV", err)
	}
	return cv, nil
}

// History returns the committed transitions of an application, oldest first
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]*models.StatusChange, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	changes, err := s.apps.ListStatusHistory(ctx, id)
	if err != nil {
		return nil, services.WrapInternal("failed to load status history", err)
	}
	if changes == nil {
		changes = []*models.StatusChange{}
	}
	return changes, nil
}

// QuotaCap returns the global cap
func (s *Service) QuotaCap(ctx context.Context) (int, error) {
	return s.ledger.Cap(ctx)
}

// SetQuotaCap replaces the global cap
func (s *Service) SetQuotaCap(ctx context.Context, cap int) error {
	if err := s.ledger.SetCap(ctx, cap); err != nil {
		return err
	}
	s.logger.Info("quota cap updated", zap.Int("max_applications_per_student", cap))
	return nil
}

// QuotaUsage returns the student's submissions against the cap
func (s *Service) QuotaUsage(ctx context.Context, studentID uuid.UUID) (*models.QuotaUsage, error) {
	return s.ledger.Usage(ctx, studentID)
}

// Notifications returns the student's in-app notifications, oldest first
func (s *Service) Notifications(ctx context.Context, studentID uuid.UUID) ([]*models.StudentNotification, error) {
	list, err := s.notifications.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, services.WrapInternal("failed to list notifications", err)
	}
	if list == nil {
		list = []*models.StudentNotification{}
	}
	return list, nil
}
