package models

import (
	"time"

	"github.com/google/uuid"
)

// ApplicationStatus represents where an application is in its lifecycle
type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "pending"
	StatusAccepted ApplicationStatus = "accepted"
	StatusRejected ApplicationStatus = "rejected"
)

// Valid reports whether the status is one of the known values
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for statuses that allow no further transition
func (s ApplicationStatus) IsTerminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// CVAttachment is a CV uploaded specifically for one application.
// The bytes never leave the store in list results.
type CVAttachment struct {
	Data        []byte `json:"-" db:"cv_data"`
	ContentType string `json:"content_type" db:"cv_content_type"`
	FileName    string `json:"file_name,omitempty" db:"cv_file_name"`
}

// Application represents one student's bid for one internship opening.
// Name, email, title, company, skills and GPA are captured at submission
// and are never re-derived from the live profiles.
type Application struct {
	ID              uuid.UUID         `json:"id" db:"id"`
	StudentID       uuid.UUID         `json:"student_id" db:"student_id"`
	CompanyID       uuid.UUID         `json:"company_id" db:"company_id"`
	InternshipID    uuid.UUID         `json:"internship_id" db:"internship_id"`
	StudentName     string            `json:"student_name" db:"student_name"`
	Email           string            `json:"email" db:"email"`
	InternshipTitle string            `json:"internship_title" db:"internship_title"`
	CompanyName     string            `json:"company_name" db:"company_name"`
	Skills          []string          `json:"skills" db:"skills"`
	GPA             float64           `json:"gpa" db:"gpa"`
	CoverLetter     string            `json:"cover_letter" db:"cover_letter"`
	InterestLevel   int               `json:"interest_level" db:"interest_level"`
	UseProfileCV    bool              `json:"use_profile_cv" db:"use_profile_cv"`
	HasCV           bool              `json:"has_cv" db:"has_cv"`
	CV              *CVAttachment     `json:"-"`
	Status          ApplicationStatus `json:"status" db:"status"`
	AppliedDate     time.Time         `json:"applied_date" db:"applied_date"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Application model
func (Application) TableName() string {
	return "applications"
}

// Snapshot is the applicant and posting state copied onto an application at submission
type Snapshot struct {
	StudentID       uuid.UUID
	CompanyID       uuid.UUID
	InternshipID    uuid.UUID
	StudentName     string
	Email           string
	InternshipTitle string
	CompanyName     string
	Skills          []string
	GPA             float64
	CoverLetter     string
	InterestLevel   int
	UseProfileCV    bool
	CV              *CVAttachment
}

// NewApplication creates a pending Application from a submission snapshot
func NewApplication(s Snapshot) *Application {
	now := time.Now().UTC()

	skills := make([]string, len(s.Skills))
	copy(skills, s.Skills)

	app := &Application{
		ID:              uuid.New(),
		StudentID:       s.StudentID,
		CompanyID:       s.CompanyID,
		InternshipID:    s.InternshipID,
		StudentName:     s.StudentName,
		Email:           s.Email,
		InternshipTitle: s.InternshipTitle,
		CompanyName:     s.CompanyName,
		Skills:          skills,
		GPA:             s.GPA,
		CoverLetter:     s.CoverLetter,
		InterestLevel:   s.InterestLevel,
		UseProfileCV:    s.UseProfileCV,
		Status:          StatusPending,
		AppliedDate:     now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if s.CV != nil && len(s.CV.Data) > 0 {
		data := make([]byte, len(s.CV.Data))
		copy(data, s.CV.Data)
		app.CV = &CVAttachment{Data: data, ContentType: s.CV.ContentType, FileName: s.CV.FileName}
		app.HasCV = true
		app.UseProfileCV = false
	}

	return app
}

// WithoutCV returns a shallow copy without the attached CV bytes
func (a *Application) WithoutCV() *Application {
	cp := *a
	cp.CV = nil
	return &cp
}

// Clone returns a deep copy of the application, including skills and CV bytes
func (a *Application) Clone() *Application {
	cp := *a
	cp.Skills = append([]string(nil), a.Skills...)
	if a.CV != nil {
		cv := *a.CV
		cv.Data = append([]byte(nil), a.CV.Data...)
		cp.CV = &cv
	}
	return &cp
}

// StatusChange records one committed status transition
type StatusChange struct {
	ID            uuid.UUID         `json:"id" db:"id"`
	ApplicationID uuid.UUID         `json:"application_id" db:"application_id"`
	FromStatus    ApplicationStatus `json:"from_status" db:"from_status"`
	ToStatus      ApplicationStatus `json:"to_status" db:"to_status"`
	ChangedAt     time.Time         `json:"changed_at" db:"changed_at"`
}

// TableName returns the table name for the StatusChange model
func (StatusChange) TableName() string {
	return "application_status_history"
}

// NewStatusChange creates a new StatusChange instance
func NewStatusChange(applicationID uuid.UUID, from, to ApplicationStatus) *StatusChange {
	return &StatusChange{
		ID:            uuid.New(),
		ApplicationID: applicationID,
		FromStatus:    from,
		ToStatus:      to,
		ChangedAt:     time.Now().UTC(),
	}
}
