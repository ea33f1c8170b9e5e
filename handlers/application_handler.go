package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upb/internship-placement/identity"
	"github.com/upb/internship-placement/middleware"
	"github.com/upb/internship-placement/models"
	"github.com/upb/internship-placement/services"
	"github.com/upb/internship-placement/services/applications"
	"github.com/upb/internship-placement/utils"
	"go.uber.org/zap"
)

// ApplicationService is the service surface used by the HTTP layer
type ApplicationService interface {
	Submit(ctx context.Context, in applications.SubmitInput) (*models.Application, error)
	Accept(ctx context.Context, id uuid.UUID) (*models.Application, error)
	Reject(ctx context.Context, id uuid.UUID) (*models.Application, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Application, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*models.Application, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.Application, error)
	ListByInternship(ctx context.Context, internshipID uuid.UUID) ([]*models.Application, error)
	GetCV(ctx context.Context, id uuid.UUID) (*models.CVAttachment, error)
	History(ctx context.Context, id uuid.UUID) ([]*models.StatusChange, error)
	QuotaCap(ctx context.Context) (int, error)
	SetQuotaCap(ctx context.Context, cap int) error
	QuotaUsage(ctx context.Context, studentID uuid.UUID) (*models.QuotaUsage, error)
	Notifications(ctx context.Context, studentID uuid.UUID) ([]*models.StudentNotification, error)
}

// ApplicationHandler handles application HTTP requests
type ApplicationHandler struct {
	service        ApplicationService
	logger         *zap.Logger
	maxUploadBytes int64
}

// NewApplicationHandler creates a new ApplicationHandler
func NewApplicationHandler(service ApplicationService, maxUploadBytes int64, logger *zap.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		service:        service,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// HandleSubmit handles POST /applications.
// The body is either JSON or multipart/form-data with a JSON "payload" part and an optional "cv" file.
func (h *ApplicationHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	in, err := h.decodeSubmission(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			_ = utils.WriteError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request exceeds %d bytes", h.maxUploadBytes), nil)
			return
		}
		HandleBadRequest(w, err.Error(), h.logger)
		return
	}

	claims := middleware.GetClaimsFromContext(r.Context())
	if claims != nil && claims.Role == identity.RoleStudent {
		if in.StudentID == uuid.Nil {
			in.StudentID = claims.Sub
		}
		if in.StudentID != claims.Sub {
			HandleServiceError(w, services.ErrForbidden.Newf("students can only apply for themselves"), h.logger)
			return
		}
	}

	app, err := h.service.Submit(r.Context(), in)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, app)
}

func (h *ApplicationHandler) decodeSubmission(r *http.Request) (applications.SubmitInput, error) {
	var in applications.SubmitInput

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		err := utils.DecodeJSON(r.Body, &in)
		return in, err
	}

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		return in, err
	}
	payload := r.FormValue("payload")
	if payload == "" {
		return in, errors.New("multipart field \"payload\" is required")
	}
	if err := utils.DecodeJSON(strings.NewReader(payload), &in); err != nil {
		return in, err
	}

	file, header, err := r.FormFile("cv")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil
	}
	if err != nil {
		return in, fmt.Errorf("invalid cv upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return in, fmt.Errorf("failed to read cv upload: %w", err)
	}
	if len(data) > 0 {
		in.CV = &applications.CVUpload{
			Data:        data,
			ContentType: header.Header.Get("Content-Type"),
			FileName:    header.Filename,
		}
	}
	return in, nil
}

// HandleGet handles GET /applications/{id}
func (h *ApplicationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	app, err := h.service.Get(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, app)
}

// HandleAccept handles POST /applications/{id}/accept
func (h *ApplicationHandler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Accept)
}

// HandleReject handles POST /applications/{id}/reject
func (h *ApplicationHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Reject)
}

func (h *ApplicationHandler) decide(w http.ResponseWriter, r *http.Request,
	decision func(context.Context, uuid.UUID) (*models.Application, error)) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	app, err := decision(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, app)
}

// HandleGetCV handles GET /applications/{id}/cv
func (h *ApplicationHandler) HandleGetCV(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	cv, err := h.service.GetCV(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteBlob(w, cv.ContentType, cv.FileName, cv.Data); err != nil {
		h.logger.Warn("failed to write cv", zap.String("application_id", id.String()), zap.Error(err))
	}
}

// HandleHistory handles GET /applications/{id}/history
func (h *ApplicationHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	history, err := h.service.History(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, history)
}

// HandleListByStudent handles GET /students/{id}/applications
func (h *ApplicationHandler) HandleListByStudent(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.ListByStudent)
}

// HandleListByCompany handles GET /companies/{id}/applications
func (h *ApplicationHandler) HandleListByCompany(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.ListByCompany)
}

// HandleListByInternship handles GET /internships/{id}/applications
func (h *ApplicationHandler) HandleListByInternship(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.ListByInternship)
}

func (h *ApplicationHandler) list(w http.ResponseWriter, r *http.Request,
	find func(context.Context, uuid.UUID) ([]*models.Application, error)) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	apps, err := find(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, apps)
}

// HandleStudentQuota handles GET /students/{id}/quota
func (h *ApplicationHandler) HandleStudentQuota(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	usage, err := h.service.QuotaUsage(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, quotaUsageResponse{
		StudentID:        usage.StudentID,
		ApplicationsSent: usage.ApplicationsSent,
		Cap:              usage.Cap,
		Remaining:        usage.Remaining(),
	})
}

type quotaUsageResponse struct {
	StudentID        uuid.UUID `json:"student_id"`
	ApplicationsSent int       `json:"applications_sent"`
	Cap              int       `json:"max_applications_per_student"`
	Remaining        int       `json:"remaining"`
}

// HandleStudentNotifications handles GET /students/{id}/notifications
func (h *ApplicationHandler) HandleStudentNotifications(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	list, err := h.service.Notifications(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, list)
}

// QuotaCapRequest is the body of PUT /admin/quota
type QuotaCapRequest struct {
	MaxApplicationsPerStudent *int `json:"max_applications_per_student"`
}

type quotaCapResponse struct {
	MaxApplicationsPerStudent int `json:"max_applications_per_student"`
}

// HandleGetQuotaCap handles GET /admin/quota
func (h *ApplicationHandler) HandleGetQuotaCap(w http.ResponseWriter, r *http.Request) {
	cap, err := h.service.QuotaCap(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, quotaCapResponse{MaxApplicationsPerStudent: cap})
}

// HandleSetQuotaCap handles PUT /admin/quota
func (h *ApplicationHandler) HandleSetQuotaCap(w http.ResponseWriter, r *http.Request) {
	var req QuotaCapRequest
	if err := utils.DecodeJSON(r.Body, &req); err != nil {
		HandleBadRequest(w, err.Error(), h.logger)
		return
	}
	if req.MaxApplicationsPerStudent == nil {
		HandleServiceError(w, services.NewValidationError("invalid quota cap",
			map[string]string{"max_applications_per_student": "max_applications_per_student is required"}), h.logger)
		return
	}

	if err := h.service.SetQuotaCap(r.Context(), *req.MaxApplicationsPerStudent); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, quotaCapResponse{MaxApplicationsPerStudent: *req.MaxApplicationsPerStudent})
}

// pathID parses a UUID URL parameter, writing a 400 when it is malformed
func (h *ApplicationHandler) pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := utils.ParseUUID(chi.URLParam(r, name))
	if err != nil {
		HandleBadRequest(w, err.Error(), h.logger)
		return uuid.Nil, false
	}
	return id, true
}
