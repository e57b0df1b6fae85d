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

type chartRepository interface {
	List(ctx context.Context, filter models.ChartEntryFilter) ([]models.ChartEntry, int, error)
	Create(ctx context.Context, entry *models.ChartEntry) error
	CountSince(ctx context.Context, cutoff time.Time) (int, error)
	CountLateSince(ctx context.Context, cutoff time.Time) (int, error)
}

// ChartService handles nightly chart entries. Creation runs through the
// submission recorder, so an entry only lands when the nightly window (or an
// override grant) allows it.
type ChartService struct {
	repo      chartRepository
	recorder  *SubmissionRecorder
	audit     auditLogger
	dashboard summaryInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewChartService constructs the service. dashboard may be nil.
func NewChartService(repo chartRepository, recorder *SubmissionRecorder, audit auditLogger, dashboard summaryInvalidator, validate *validator.Validate, logger *zap.Logger) *ChartService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ChartService{repo: repo, recorder: recorder, audit: audit, dashboard: dashboard, validator: validate, logger: logger}
	svc.validator.RegisterValidation("chart_category", func(fl validator.FieldLevel) bool {
		return models.ChartCategory(fl.Field().String()).Valid()
	})
	return svc
}

// ChartListRequest describes filters for listing chart entries.
type ChartListRequest struct {
	PatientID  string     `json:"patient_id"`
	RecordedBy string     `json:"recorded_by"`
	Category   string     `json:"category"`
	DateFrom   *time.Time `json:"date_from"`
	DateTo     *time.Time `json:"date_to"`
	LateOnly   bool       `json:"late_only"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
}

// CreateChartEntryRequest describes the create payload. EntryTime is only
// honoured inside an override window; a normal submission is stamped with the
// server clock.
type CreateChartEntryRequest struct {
	PatientID     string     `json:"patient_id" validate:"required"`
	Category      string     `json:"category" validate:"required,chart_category"`
	Observation   string     `json:"observation" validate:"required"`
	EntryTime     *time.Time `json:"entry_time"`
	Justification string     `json:"justification"`
}

// List returns chart entries with pagination.
func (s *ChartService) List(ctx context.Context, req ChartListRequest) ([]models.ChartEntry, *models.Pagination, error) {
	filter := models.ChartEntryFilter{
		PatientID:  req.PatientID,
		RecordedBy: req.RecordedBy,
		DateFrom:   req.DateFrom,
		DateTo:     req.DateTo,
		LateOnly:   req.LateOnly,
		Page:       req.Page,
		PageSize:   req.PageSize,
	}
	if req.Category != "" {
		category := models.ChartCategory(req.Category)
		if !category.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown chart category")
		}
		filter.Category = &category
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list chart entries")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return entries, pagination, nil
}

// Create records a chart entry through the submission window policy. The
// caller's identity comes from the JWT, never from the payload.
func (s *ChartService) Create(ctx context.Context, req CreateChartEntryRequest, actor *models.JWTClaims) (*models.ChartEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid chart entry payload")
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	attempt := models.SubmissionAttempt{
		Kind:               models.KindChartEntry,
		PatientID:          req.PatientID,
		StaffID:            actor.UserID,
		RequestedTimestamp: req.EntryTime,
		Justification:      req.Justification,
	}

	var entry *models.ChartEntry
	result, err := s.recorder.Record(ctx, attempt, func(ctx context.Context, res models.EligibilityResult) error {
		entry = &models.ChartEntry{
			PatientID:   req.PatientID,
			RecordedBy:  actor.UserID,
			EntryTime:   res.EffectiveTimestamp,
			Category:    models.ChartCategory(req.Category),
			Observation: req.Observation,
			Late:        res.Classification == models.ClassificationOverride,
		}
		if entry.Late {
			justification := req.Justification
			entry.Justification = &justification
		}
		if err := s.repo.Create(ctx, entry); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create chart entry")
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
		payload, _ := json.Marshal(entry)
		log := &models.AuditLog{
			UserID:     &actor.UserID,
			Action:     models.AuditActionLateSubmission,
			Resource:   "chart_entry",
			ResourceID: &entry.ID,
			NewValues:  payload,
		}
		if err := s.audit.CreateAuditLog(ctx, log); err != nil {
			s.logger.Warn("failed to record late submission audit log", zap.Error(err))
		}
	}

	return entry, nil
}

// CountSince returns the entry count recorded since cutoff.
func (s *ChartService) CountSince(ctx context.Context, cutoff time.Time) (int, error) {
	total, err := s.repo.CountSince(ctx, cutoff)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count chart entries")
	}
	return total, nil
}
