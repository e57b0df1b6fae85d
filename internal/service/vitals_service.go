package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/carebridge/carebridge-api/internal/models"
	appErrors "github.com/carebridge/carebridge-api/pkg/errors"
)

type vitalsRepository interface {
	List(ctx context.Context, filter models.VitalsFilter) ([]models.VitalSigns, int, error)
	Latest(ctx context.Context, patientID string) (*models.VitalSigns, error)
	Create(ctx context.Context, vs *models.VitalSigns) error
}

// VitalsService handles vital-sign observations. Vitals are recorded at any
// hour; only chart entries and periodic updates are window-gated.
type VitalsService struct {
	repo      vitalsRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewVitalsService constructs the service.
func NewVitalsService(repo vitalsRepository, validate *validator.Validate, logger *zap.Logger) *VitalsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VitalsService{repo: repo, validator: validate, logger: logger}
}

// VitalsListRequest describes filters for listing observations.
type VitalsListRequest struct {
	PatientID string     `json:"patient_id"`
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	Page      int        `json:"page"`
	PageSize  int        `json:"page_size"`
}

// CreateVitalsRequest describes the create payload.
type CreateVitalsRequest struct {
	PatientID        string  `json:"patient_id" validate:"required"`
	TemperatureC     float64 `json:"temperature_c" validate:"required,gte=30,lte=45"`
	SystolicBP       int     `json:"systolic_bp" validate:"required,gte=50,lte=260"`
	DiastolicBP      int     `json:"diastolic_bp" validate:"required,gte=30,lte=160"`
	HeartRate        int     `json:"heart_rate" validate:"required,gte=20,lte=250"`
	RespiratoryRate  int     `json:"respiratory_rate" validate:"required,gte=4,lte=60"`
	OxygenSaturation int     `json:"oxygen_saturation" validate:"required,gte=50,lte=100"`
	Notes            *string `json:"notes"`
}

// List returns observations with pagination.
func (s *VitalsService) List(ctx context.Context, req VitalsListRequest) ([]models.VitalSigns, *models.Pagination, error) {
	filter := models.VitalsFilter{
		PatientID: req.PatientID,
		DateFrom:  req.DateFrom,
		DateTo:    req.DateTo,
		Page:      req.Page,
		PageSize:  req.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	vitals, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list vitals")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return vitals, pagination, nil
}

// Latest returns the most recent observation for a resident.
func (s *VitalsService) Latest(ctx context.Context, patientID string) (*models.VitalSigns, error) {
	vs, err := s.repo.Latest(ctx, patientID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no vitals recorded for patient")
	}
	return vs, nil
}

// Create records an observation stamped with the server clock.
func (s *VitalsService) Create(ctx context.Context, req CreateVitalsRequest, actor *models.JWTClaims) (*models.VitalSigns, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid vitals payload")
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	vs := &models.VitalSigns{
		PatientID:        req.PatientID,
		RecordedBy:       actor.UserID,
		RecordedAt:       time.Now().UTC(),
		TemperatureC:     req.TemperatureC,
		SystolicBP:       req.SystolicBP,
		DiastolicBP:      req.DiastolicBP,
		HeartRate:        req.HeartRate,
		RespiratoryRate:  req.RespiratoryRate,
		OxygenSaturation: req.OxygenSaturation,
		Notes:            req.Notes,
	}
	if err := s.repo.Create(ctx, vs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create vitals")
	}
	return vs, nil
}
