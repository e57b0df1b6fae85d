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

type overrideRepository interface {
	ListActive(ctx context.Context, patientID string, kind models.SubmissionKind, staffID string, asOf time.Time) ([]models.OverrideWindow, error)
	List(ctx context.Context, filter models.OverrideWindowFilter) ([]models.OverrideWindow, int, error)
	Create(ctx context.Context, window *models.OverrideWindow) error
	CountActive(ctx context.Context, asOf time.Time) (int, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// OverrideServiceConfig tunes the lookup retry behaviour.
type OverrideServiceConfig struct {
	FetchRetries int
	FetchBackoff time.Duration
}

// OverrideService exposes late-submission override windows: active-window
// lookups for the policy and validated creation for the admin form.
type OverrideService struct {
	repo      overrideRepository
	audit     auditLogger
	dashboard summaryInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	config    OverrideServiceConfig
}

// NewOverrideService constructs the service. dashboard may be nil.
func NewOverrideService(repo overrideRepository, audit auditLogger, dashboard summaryInvalidator, validate *validator.Validate, logger *zap.Logger, cfg OverrideServiceConfig) *OverrideService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FetchRetries < 0 {
		cfg.FetchRetries = 0
	}
	if cfg.FetchBackoff <= 0 {
		cfg.FetchBackoff = 200 * time.Millisecond
	}
	svc := &OverrideService{repo: repo, audit: audit, dashboard: dashboard, validator: validate, logger: logger, config: cfg}
	svc.validator.RegisterValidation("submission_kind", func(fl validator.FieldLevel) bool {
		return models.SubmissionKind(fl.Field().String()).Valid()
	})
	return svc
}

// ListActive returns the override windows covering asOf for the given
// (patient, kind, staff) tuple, most recently started first. Lookup failures
// degrade to an empty slice after a bounded retry: a broken override path
// must never block the submission form, it simply falls back to the default
// schedule.
func (s *OverrideService) ListActive(ctx context.Context, patientID string, kind models.SubmissionKind, staffID string, asOf time.Time) []models.OverrideWindow {
	var lastErr error
	for attempt := 0; attempt <= s.config.FetchRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				s.logger.Warn("override lookup cancelled", zap.Error(ctx.Err()))
				return nil
			case <-time.After(s.config.FetchBackoff):
			}
		}
		windows, err := s.repo.ListActive(ctx, patientID, kind, staffID, asOf)
		if err == nil {
			return windows
		}
		lastErr = err
	}
	s.logger.Warn("override lookup failed, falling back to default schedule",
		zap.String("patient_id", patientID),
		zap.String("kind", string(kind)),
		zap.String("staff_id", staffID),
		zap.Error(lastErr))
	return nil
}

// OverrideListRequest describes filters for the admin listing.
type OverrideListRequest struct {
	PatientID string     `json:"patient_id"`
	Kind      string     `json:"kind"`
	GrantedTo string     `json:"granted_to"`
	ActiveAt  *time.Time `json:"active_at"`
	Page      int        `json:"page"`
	PageSize  int        `json:"page_size"`
}

// CreateOverrideRequest describes the admin form payload for a new grant.
type CreateOverrideRequest struct {
	PatientID       string    `json:"patient_id" validate:"required"`
	Kind            string    `json:"kind" validate:"required,submission_kind"`
	GrantedTo       string    `json:"granted_to" validate:"required"`
	StartAt         time.Time `json:"start_at" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,gt=0"`
	Reason          string    `json:"reason" validate:"required"`
}

// List returns override windows with pagination.
func (s *OverrideService) List(ctx context.Context, req OverrideListRequest) ([]models.OverrideWindow, *models.Pagination, error) {
	filter := models.OverrideWindowFilter{
		PatientID: req.PatientID,
		GrantedTo: req.GrantedTo,
		ActiveAt:  req.ActiveAt,
		Page:      req.Page,
		PageSize:  req.PageSize,
	}
	if req.Kind != "" {
		kind := models.SubmissionKind(req.Kind)
		if !kind.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown submission kind")
		}
		filter.Kind = &kind
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	windows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list override windows")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return windows, pagination, nil
}

// Create validates and persists a new override window. Grants are immutable:
// there is no update or delete, a window simply expires.
func (s *OverrideService) Create(ctx context.Context, req CreateOverrideRequest, actor *models.JWTClaims) (*models.OverrideWindow, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid override payload")
	}
	if !models.AllowedOverrideDuration(req.DurationMinutes) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "duration is not one of the offered grant lengths")
	}
	grantedBy := ""
	if actor != nil {
		grantedBy = actor.UserID
	}

	window := &models.OverrideWindow{
		PatientID:       req.PatientID,
		Kind:            models.SubmissionKind(req.Kind),
		GrantedTo:       req.GrantedTo,
		GrantedBy:       grantedBy,
		StartAt:         req.StartAt.UTC(),
		DurationMinutes: req.DurationMinutes,
		Reason:          req.Reason,
	}
	if err := s.repo.Create(ctx, window); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create override window")
	}
	if s.dashboard != nil {
		s.dashboard.Invalidate(ctx)
	}

	if s.audit != nil {
		payload, _ := json.Marshal(window)
		log := &models.AuditLog{
			Action:     models.AuditActionOverrideCreate,
			Resource:   "override_window",
			ResourceID: &window.ID,
			NewValues:  payload,
		}
		if actor != nil {
			log.UserID = &actor.UserID
		}
		if err := s.audit.CreateAuditLog(ctx, log); err != nil {
			s.logger.Warn("failed to record override audit log", zap.Error(err))
		}
	}

	return window, nil
}

// CountActive returns the number of currently open windows across all
// patients, for the dashboard.
func (s *OverrideService) CountActive(ctx context.Context, asOf time.Time) (int, error) {
	total, err := s.repo.CountActive(ctx, asOf)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active overrides")
	}
	return total, nil
}
