package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/carebridge/carebridge-api/internal/models"
	appErrors "github.com/carebridge/carebridge-api/pkg/errors"
)

type assessmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Assessment, error)
	List(ctx context.Context, filter models.AssessmentFilter) ([]models.Assessment, int, error)
	Create(ctx context.Context, a *models.Assessment) error
}

// AssessmentService handles periodic care assessments.
type AssessmentService struct {
	repo      assessmentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssessmentService constructs the service.
func NewAssessmentService(repo assessmentRepository, validate *validator.Validate, logger *zap.Logger) *AssessmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AssessmentService{repo: repo, validator: validate, logger: logger}
	svc.validator.RegisterValidation("assessment_type", func(fl validator.FieldLevel) bool {
		return models.AssessmentType(fl.Field().String()).Valid()
	})
	return svc
}

// AssessmentListRequest describes filters for listing assessments.
type AssessmentListRequest struct {
	PatientID string `json:"patient_id"`
	Type      string `json:"type"`
	Page      int    `json:"page"`
	PageSize  int    `json:"page_size"`
}

// CreateAssessmentRequest describes the create payload.
type CreateAssessmentRequest struct {
	PatientID string `json:"patient_id" validate:"required"`
	Type      string `json:"type" validate:"required,assessment_type"`
	Score     *int   `json:"score" validate:"omitempty,gte=0,lte=100"`
	Summary   string `json:"summary" validate:"required"`
}

// List returns assessments with pagination.
func (s *AssessmentService) List(ctx context.Context, req AssessmentListRequest) ([]models.Assessment, *models.Pagination, error) {
	filter := models.AssessmentFilter{
		PatientID: req.PatientID,
		Page:      req.Page,
		PageSize:  req.PageSize,
	}
	if req.Type != "" {
		kind := models.AssessmentType(req.Type)
		if !kind.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown assessment type")
		}
		filter.Type = &kind
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	assessments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assessments")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return assessments, pagination, nil
}

// Get returns a single assessment.
func (s *AssessmentService) Get(ctx context.Context, id string) (*models.Assessment, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
	}
	return a, nil
}

// Create records an assessment stamped with the server clock.
func (s *AssessmentService) Create(ctx context.Context, req CreateAssessmentRequest, actor *models.JWTClaims) (*models.Assessment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assessment payload")
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	a := &models.Assessment{
		PatientID:  req.PatientID,
		AssessedBy: actor.UserID,
		Type:       models.AssessmentType(req.Type),
		Score:      req.Score,
		Summary:    req.Summary,
		AssessedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assessment")
	}
	return a, nil
}
