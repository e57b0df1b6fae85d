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

type updateRepository interface {
	List(ctx context.Context, filter models.ResidentUpdateFilter) ([]models.ResidentUpdate, int, error)
	Create(ctx context.Context, update *models.ResidentUpdate) error
	CountLateSince(ctx context.Context, cutoff time.Time) (int, error)
}

// UpdateService handles weekly and monthly resident updates. The period picks
// the submission kind the window policy gates on.
type UpdateService struct {
	repo      updateRepository
	recorder  *SubmissionRecorder
	audit     auditLogger
	dashboard summaryInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUpdateService constructs the service. dashboard may be nil.
func NewUpdateService(repo updateRepository, recorder *SubmissionRecorder, audit auditLogger, dashboard summaryInvalidator, validate *validator.Validate, logger *zap.Logger) *UpdateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &UpdateService{repo: repo, recorder: recorder, audit: audit, dashboard: dashboard, validator: validate, logger: logger}
	svc.validator.RegisterValidation("update_period", func(fl validator.FieldLevel) bool {
		return models.UpdatePeriod(fl.Field().String()).Valid()
	})
	return svc
}

// UpdateListRequest describes filters for listing resident updates.
type UpdateListRequest struct {
	PatientID  string     `json:"patient_id"`
	RecordedBy string     `json:"recorded_by"`
	Period     string     `json:"period"`
	DateFrom   *time.Time `json:"date_from"`
	DateTo     *time.Time `json:"date_to"`
	LateOnly   bool       `json:"late_only"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
}

// CreateUpdateRequest describes the create payload. SubmittedAt is only
// honoured inside an override window.
type CreateUpdateRequest struct {
	PatientID     string     `json:"patient_id" validate:"required"`
	Period        string     `json:"period" validate:"required,update_period"`
	Summary       string     `json:"summary" validate:"required"`
	Concerns      *string    `json:"concerns"`
	SubmittedAt   *time.Time `json:"submitted_at"`
	Justification string     `json:"justification"`
}

// List returns resident updates with pagination.
func (s *UpdateService) List(ctx context.Context, req UpdateListRequest) ([]models.ResidentUpdate, *models.Pagination, error) {
	filter := models.ResidentUpdateFilter{
		PatientID:  req.PatientID,
		RecordedBy: req.RecordedBy,
		DateFrom:   req.DateFrom,
		DateTo:     req.DateTo,
		LateOnly:   req.LateOnly,
		Page:       req.Page,
		PageSize:   req.PageSize,
	}
	if req.Period != "" {
		period := models.UpdatePeriod(req.Period)
		if !period.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown update period")
		}
		filter.Period = &period
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	updates, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list resident updates")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return updates, pagination, nil
}

// Create records a resident update through the submission window policy.
func (s *UpdateService) Create(ctx context.Context, req CreateUpdateRequest, actor *models.JWTClaims) (*models.ResidentUpdate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resident update payload")
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	period := models.UpdatePeriod(req.Period)

	attempt := models.SubmissionAttempt{
		Kind:               period.SubmissionKind(),
		PatientID:          req.PatientID,
		StaffID:            actor.UserID,
		RequestedTimestamp: req.SubmittedAt,
		Justification:      req.Justification,
	}

	var update *models.ResidentUpdate
	result, err := s.recorder.Record(ctx, attempt, func(ctx context.Context, res models.EligibilityResult) error {
		update = &models.ResidentUpdate{
			PatientID:   req.PatientID,
			RecordedBy:  actor.UserID,
			Period:      period,
			SubmittedAt: res.EffectiveTimestamp,
			Summary:     req.Summary,
			Concerns:    req.Concerns,
			Late:        res.Classification == models.ClassificationOverride,
		}
		if update.Late {
			justification := req.Justification
			update.Justification = &justification
		}
		if err := s.repo.Create(ctx, update); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create resident update")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.dashboard != nil {
		s.dashboard.Invalidate(ctx)
	}

	if result.Classification == models.ClassificationOverride && s.audit != nil {
		payload, _ := json.Marshal(update)
		log := &models.AuditLog{
			UserID:     &actor.UserID,
			Action:     models.AuditActionLateSubmission,
			Resource:   "resident_update",
			ResourceID: &update.ID,
			NewValues:  payload,
		}
		if err := s.audit.CreateAuditLog(ctx, log); err != nil {
			s.logger.Warn("failed to record late submission audit log", zap.Error(err))
		}
	}

	return update, nil
}
