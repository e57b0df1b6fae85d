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

type medicationRepository interface {
	FindByID(ctx context.Context, id string) (*models.Medication, error)
	List(ctx context.Context, filter models.MedicationFilter) ([]models.Medication, int, error)
	Create(ctx context.Context, med *models.Medication) error
	Update(ctx context.Context, med *models.Medication) error
	Discontinue(ctx context.Context, id string, endDate time.Time) error
}

// MedicationService handles medication orders.
type MedicationService struct {
	repo      medicationRepository
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMedicationService constructs the service.
func NewMedicationService(repo medicationRepository, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *MedicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MedicationService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// MedicationListRequest describes filters for listing orders.
type MedicationListRequest struct {
	PatientID string `json:"patient_id"`
	Active    *bool  `json:"active"`
	Page      int    `json:"page"`
	PageSize  int    `json:"page_size"`
}

// CreateMedicationRequest describes the create payload.
type CreateMedicationRequest struct {
	PatientID    string    `json:"patient_id" validate:"required"`
	Name         string    `json:"name" validate:"required"`
	Dosage       string    `json:"dosage" validate:"required"`
	Frequency    string    `json:"frequency" validate:"required"`
	Route        string    `json:"route" validate:"required"`
	PrescribedBy string    `json:"prescribed_by" validate:"required"`
	StartDate    time.Time `json:"start_date" validate:"required"`
	Notes        *string   `json:"notes"`
}

// UpdateMedicationRequest describes the update payload.
type UpdateMedicationRequest struct {
	Dosage    string  `json:"dosage" validate:"required"`
	Frequency string  `json:"frequency" validate:"required"`
	Route     string  `json:"route" validate:"required"`
	Notes     *string `json:"notes"`
}

// List returns medication orders with pagination.
func (s *MedicationService) List(ctx context.Context, req MedicationListRequest) ([]models.Medication, *models.Pagination, error) {
	filter := models.MedicationFilter{
		PatientID: req.PatientID,
		Active:    req.Active,
		Page:      req.Page,
		PageSize:  req.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	meds, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list medications")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return meds, pagination, nil
}

// Get returns a single order.
func (s *MedicationService) Get(ctx context.Context, id string) (*models.Medication, error) {
	med, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "medication not found")
	}
	return med, nil
}

// Create records a new medication order.
func (s *MedicationService) Create(ctx context.Context, req CreateMedicationRequest, actor *models.JWTClaims) (*models.Medication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid medication payload")
	}
	med := &models.Medication{
		PatientID:    req.PatientID,
		Name:         req.Name,
		Dosage:       req.Dosage,
		Frequency:    req.Frequency,
		Route:        req.Route,
		PrescribedBy: req.PrescribedBy,
		StartDate:    req.StartDate,
		Active:       true,
		Notes:        req.Notes,
	}
	if err := s.repo.Create(ctx, med); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create medication")
	}
	s.writeAudit(ctx, actor, med.ID, med)
	return med, nil
}

// Update edits an existing order's dosing details.
func (s *MedicationService) Update(ctx context.Context, id string, req UpdateMedicationRequest, actor *models.JWTClaims) (*models.Medication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid medication payload")
	}
	med, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "medication not found")
	}
	med.Dosage = req.Dosage
	med.Frequency = req.Frequency
	med.Route = req.Route
	med.Notes = req.Notes
	if err := s.repo.Update(ctx, med); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update medication")
	}
	s.writeAudit(ctx, actor, med.ID, med)
	return med, nil
}

// Discontinue ends an order as of endDate.
func (s *MedicationService) Discontinue(ctx context.Context, id string, endDate time.Time, actor *models.JWTClaims) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "medication not found")
	}
	if err := s.repo.Discontinue(ctx, id, endDate); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to discontinue medication")
	}
	s.writeAudit(ctx, actor, id, nil)
	return nil
}

func (s *MedicationService) writeAudit(ctx context.Context, actor *models.JWTClaims, resourceID string, value interface{}) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		Action:     models.AuditActionMedicationChange,
		Resource:   "medication",
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
		s.logger.Warn("failed to record medication audit log", zap.Error(err))
	}
}
