package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/carebridge/carebridge-api/internal/models"
	appErrors "github.com/carebridge/carebridge-api/pkg/errors"
)

type appointmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
	List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error)
	Create(ctx context.Context, appt *models.Appointment) error
	Update(ctx context.Context, appt *models.Appointment) error
	CountBetween(ctx context.Context, from, to time.Time) (int, error)
}

// AppointmentService handles scheduled visits and treatments.
type AppointmentService struct {
	repo      appointmentRepository
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAppointmentService constructs the service.
func NewAppointmentService(repo appointmentRepository, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *AppointmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AppointmentService{repo: repo, audit: audit, validator: validate, logger: logger}
	svc.validator.RegisterValidation("appointment_status", func(fl validator.FieldLevel) bool {
		return models.AppointmentStatus(fl.Field().String()).Valid()
	})
	return svc
}

// AppointmentListRequest describes filters for listing appointments.
type AppointmentListRequest struct {
	PatientID string     `json:"patient_id"`
	Status    string     `json:"status"`
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	Page      int        `json:"page"`
	PageSize  int        `json:"page_size"`
}

// CreateAppointmentRequest describes the create payload.
type CreateAppointmentRequest struct {
	PatientID       string    `json:"patient_id" validate:"required"`
	Title           string    `json:"title" validate:"required"`
	Provider        string    `json:"provider" validate:"required"`
	Location        string    `json:"location" validate:"required"`
	ScheduledAt     time.Time `json:"scheduled_at" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,gt=0"`
	Notes           *string   `json:"notes"`
}

// UpdateAppointmentRequest describes the update payload.
type UpdateAppointmentRequest struct {
	Title           string    `json:"title" validate:"required"`
	Provider        string    `json:"provider" validate:"required"`
	Location        string    `json:"location" validate:"required"`
	ScheduledAt     time.Time `json:"scheduled_at" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,gt=0"`
	Status          string    `json:"status" validate:"required,appointment_status"`
	Notes           *string   `json:"notes"`
}

// List returns appointments with pagination.
func (s *AppointmentService) List(ctx context.Context, req AppointmentListRequest) ([]models.Appointment, *models.Pagination, error) {
	filter := models.AppointmentFilter{
		PatientID: req.PatientID,
		DateFrom:  req.DateFrom,
		DateTo:    req.DateTo,
		Page:      req.Page,
		PageSize:  req.PageSize,
	}
	if req.Status != "" {
		status := models.AppointmentStatus(req.Status)
		if !status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown appointment status")
		}
		filter.Status = &status
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	appts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointments")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return appts, pagination, nil
}

// Get returns a single appointment.
func (s *AppointmentService) Get(ctx context.Context, id string) (*models.Appointment, error) {
	appt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
	}
	return appt, nil
}

// Create schedules an appointment.
func (s *AppointmentService) Create(ctx context.Context, req CreateAppointmentRequest, actor *models.JWTClaims) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid appointment payload")
	}
	appt := &models.Appointment{
		PatientID:       req.PatientID,
		Title:           req.Title,
		Provider:        req.Provider,
		Location:        req.Location,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		Status:          models.AppointmentScheduled,
		Notes:           req.Notes,
	}
	if err := s.repo.Create(ctx, appt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create appointment")
	}
	s.writeAudit(ctx, actor, appt.ID, appt)
	return appt, nil
}

// Update edits or transitions an appointment.
func (s *AppointmentService) Update(ctx context.Context, id string, req UpdateAppointmentRequest, actor *models.JWTClaims) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid appointment payload")
	}
	appt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
	}
	appt.Title = req.Title
	appt.Provider = req.Provider
	appt.Location = req.Location
	appt.ScheduledAt = req.ScheduledAt
	appt.DurationMinutes = req.DurationMinutes
	appt.Status = models.AppointmentStatus(req.Status)
	appt.Notes = req.Notes
	if err := s.repo.Update(ctx, appt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update appointment")
	}
	s.writeAudit(ctx, actor, appt.ID, appt)
	return appt, nil
}

// CountBetween returns the number of appointments scheduled within [from, to).
func (s *AppointmentService) CountBetween(ctx context.Context, from, to time.Time) (int, error) {
	total, err := s.repo.CountBetween(ctx, from, to)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count appointments")
	}
	return total, nil
}

func (s *AppointmentService) writeAudit(ctx context.Context, actor *models.JWTClaims, resourceID string, value interface{}) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(value)
	log := &models.AuditLog{
		Action:     models.AuditActionAppointmentChange,
		Resource:   "appointment",
		ResourceID: &resourceID,
		NewValues:  payload,
	}
	if actor != nil {
		log.UserID = &actor.UserID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record appointment audit log", zap.Error(err))
	}
}
