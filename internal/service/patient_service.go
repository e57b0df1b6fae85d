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

type patientRepository interface {
	FindByID(ctx context.Context, id string) (*models.Patient, error)
	List(ctx context.Context, filter models.PatientFilter) ([]models.Patient, int, error)
	Create(ctx context.Context, patient *models.Patient) error
	Update(ctx context.Context, patient *models.Patient) error
	Deactivate(ctx context.Context, id string) error
	Counts(ctx context.Context) (int, int, error)
}

// PatientService handles resident records.
type PatientService struct {
	repo      patientRepository
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPatientService constructs the service.
func NewPatientService(repo patientRepository, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *PatientService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PatientService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// PatientListRequest describes filters for listing residents.
type PatientListRequest struct {
	Search    string `json:"search"`
	Active    *bool  `json:"active"`
	Page      int    `json:"page"`
	PageSize  int    `json:"page_size"`
	SortBy    string `json:"sort_by"`
	SortOrder string `json:"sort_order"`
}

// CreatePatientRequest describes the create payload.
type CreatePatientRequest struct {
	FirstName   string    `json:"first_name" validate:"required"`
	LastName    string    `json:"last_name" validate:"required"`
	DateOfBirth time.Time `json:"date_of_birth" validate:"required"`
	RoomNumber  string    `json:"room_number" validate:"required"`
	AdmittedAt  time.Time `json:"admitted_at" validate:"required"`
	Allergies   *string   `json:"allergies"`
	Notes       *string   `json:"notes"`
}

// UpdatePatientRequest describes the update payload.
type UpdatePatientRequest struct {
	FirstName  string  `json:"first_name" validate:"required"`
	LastName   string  `json:"last_name" validate:"required"`
	RoomNumber string  `json:"room_number" validate:"required"`
	Allergies  *string `json:"allergies"`
	Notes      *string `json:"notes"`
}

// Get returns a single resident.
func (s *PatientService) Get(ctx context.Context, id string) (*models.Patient, error) {
	patient, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "patient not found")
	}
	return patient, nil
}

// List returns residents with pagination.
func (s *PatientService) List(ctx context.Context, req PatientListRequest) ([]models.Patient, *models.Pagination, error) {
	filter := models.PatientFilter{
		Search:    req.Search,
		Active:    req.Active,
		Page:      req.Page,
		PageSize:  req.PageSize,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	patients, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list patients")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return patients, pagination, nil
}

// Create admits a new resident.
func (s *PatientService) Create(ctx context.Context, req CreatePatientRequest, actor *models.JWTClaims) (*models.Patient, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid patient payload")
	}
	patient := &models.Patient{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DateOfBirth: req.DateOfBirth,
		RoomNumber:  req.RoomNumber,
		AdmittedAt:  req.AdmittedAt,
		Active:      true,
		Allergies:   req.Allergies,
		Notes:       req.Notes,
	}
	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create patient")
	}
	s.writeAudit(ctx, actor, models.AuditActionPatientCreate, patient.ID, patient)
	return patient, nil
}

// Update edits a resident record.
func (s *PatientService) Update(ctx context.Context, id string, req UpdatePatientRequest, actor *models.JWTClaims) (*models.Patient, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid patient payload")
	}
	patient, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "patient not found")
	}
	patient.FirstName = req.FirstName
	patient.LastName = req.LastName
	patient.RoomNumber = req.RoomNumber
	patient.Allergies = req.Allergies
	patient.Notes = req.Notes
	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update patient")
	}
	s.writeAudit(ctx, actor, models.AuditActionPatientUpdate, patient.ID, patient)
	return patient, nil
}

// Deactivate marks a resident as discharged. Records are retained.
func (s *PatientService) Deactivate(ctx context.Context, id string, actor *models.JWTClaims) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "patient not found")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate patient")
	}
	s.writeAudit(ctx, actor, models.AuditActionPatientDeactivate, id, nil)
	return nil
}

// Counts returns total and active resident counts for the dashboard.
func (s *PatientService) Counts(ctx context.Context) (int, int, error) {
	total, active, err := s.repo.Counts(ctx)
	if err != nil {
		return 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count patients")
	}
	return total, active, nil
}

func (s *PatientService) writeAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, value interface{}) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		Action:     action,
		Resource:   "patient",
		ResourceID: &resourceID,
	}
	if actor != nil {
		log.UserID = &actor.UserID
	}
	if value != nil {
		payload, _ := json.Marshal(value)
		log.NewValues = payload
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record patient audit log", zap.Error(err))
	}
}
