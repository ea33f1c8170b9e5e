// Package memory provides in-process repositories backed by mutex-guarded maps.
// They mirror the Postgres semantics: conditional insert, compare-and-set status
// updates and check-and-increment quota reservations.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/upb/internship-placement/models"
	"github.com/upb/internship-placement/repositories"
)

type pairKey struct {
	student    uuid.UUID
	internship uuid.UUID
}

// ApplicationRepository implements repositories.ApplicationRepository in memory
type ApplicationRepository struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*models.Application
	byPair  map[pairKey]uuid.UUID
	history map[uuid.UUID][]*models.StatusChange
}

// NewApplicationRepository creates an empty application repository
func NewApplicationRepository() *ApplicationRepository {
	return &ApplicationRepository{
		byID:    make(map[uuid.UUID]*models.Application),
		byPair:  make(map[pairKey]uuid.UUID),
		history: make(map[uuid.UUID][]*models.StatusChange),
	}
}

// Insert stores a copy of app unless the student already applied to the internship
func (r *ApplicationRepository) Insert(ctx context.Context, app *models.Application) error {
	key := pairKey{student: app.StudentID, internship: app.InternshipID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byPair[key]; exists {
		return repositories.ErrDuplicateKey
	}
	stored := app.Clone()
	stored.HasCV = stored.CV != nil
	r.byID[stored.ID] = stored
	r.byPair[key] = stored.ID
	return nil
}

// GetByID returns a copy of the application without CV bytes
func (r *ApplicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	app, ok := r.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return app.Clone().WithoutCV(), nil
}

// UpdateStatus moves the status only when it still equals from
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.ApplicationStatus) (*models.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	app, ok := r.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if app.Status != from {
		return nil, repositories.ErrStatusConflict
	}
	app.Status = to
	app.UpdatedAt = now()
	return app.Clone().WithoutCV(), nil
}

// FindByStudent returns the student's applications, newest first
func (r *ApplicationRepository) FindByStudent(ctx context.Context, studentID uuid.UUID) ([]*models.Application, error) {
	return r.filter(func(a *models.Application) bool { return a.StudentID == studentID }), nil
}

// FindByCompany returns the company's applications, newest first
func (r *ApplicationRepository) FindByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.Application, error) {
	return r.filter(func(a *models.Application) bool { return a.CompanyID == companyID }), nil
}

// FindByInternship returns the internship's applications, newest first
func (r *ApplicationRepository) FindByInternship(ctx context.Context, internshipID uuid.UUID) ([]*models.Application, error) {
	return r.filter(func(a *models.Application) bool { return a.InternshipID == internshipID }), nil
}

func (r *ApplicationRepository) filter(match func(*models.Application) bool) []*models.Application {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Application, 0)
	for _, app := range r.byID {
		if match(app) {
			out = append(out, app.Clone().WithoutCV())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AppliedDate.After(out[j].AppliedDate)
	})
	return out
}

// GetCVBlob returns a copy of the attached CV
func (r *ApplicationRepository) GetCVBlob(ctx context.Context, id uuid.UUID) (*models.CVAttachment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	app, ok := r.byID[id]
	if !ok || app.CV == nil {
		return nil, repositories.ErrNotFound
	}
	cv := *app.CV
	cv.Data = append([]byte(nil), app.CV.Data...)
	return &cv, nil
}

// AppendStatusChange records a transition
func (r *ApplicationRepository) AppendStatusChange(ctx context.Context, change *models.StatusChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *change
	r.history[change.ApplicationID] = append(r.history[change.ApplicationID], &c)
	return nil
}

// ListStatusHistory returns the recorded transitions, oldest first
func (r *ApplicationRepository) ListStatusHistory(ctx context.Context, id uuid.UUID) ([]*models.StatusChange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.StatusChange, 0, len(r.history[id]))
	for _, c := range r.history[id] {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

// WithTx returns the same repository; writes are applied immediately
func (r *ApplicationRepository) WithTx(tx repositories.Transaction) repositories.ApplicationRepository {
	return r
}
