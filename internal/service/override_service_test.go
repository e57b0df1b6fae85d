package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/carebridge/carebridge-api/internal/models"
	appErrors "github.com/carebridge/carebridge-api/pkg/errors"
)

type stubOverrideRepository struct {
	windows     []models.OverrideWindow
	listErr     error
	listCalls   int
	created     *models.OverrideWindow
	createErr   error
	activeCount int
}

func (s *stubOverrideRepository) ListActive(_ context.Context, _ string, _ models.SubmissionKind, _ string, _ time.Time) ([]models.OverrideWindow, error) {
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.windows, nil
}

func (s *stubOverrideRepository) List(_ context.Context, _ models.OverrideWindowFilter) ([]models.OverrideWindow, int, error) {
	return s.windows, len(s.windows), nil
}

func (s *stubOverrideRepository) Create(_ context.Context, window *models.OverrideWindow) error {
	if s.createErr != nil {
		return s.createErr
	}
	window.ID = "win-new"
	s.created = window
	return nil
}

func (s *stubOverrideRepository) CountActive(_ context.Context, _ time.Time) (int, error) {
	return s.activeCount, nil
}

type stubAuditLogger struct {
	logs []*models.AuditLog
	err  error
}

func (s *stubAuditLogger) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	if s.err != nil {
		return s.err
	}
	s.logs = append(s.logs, log)
	return nil
}

func newTestOverrideService(repo *stubOverrideRepository, audit *stubAuditLogger) *OverrideService {
	cfg := OverrideServiceConfig{FetchRetries: 2, FetchBackoff: time.Millisecond}
	return NewOverrideService(repo, audit, nil, nil, zap.NewNop(), cfg)
}

func TestOverrideListActiveReturnsWindows(t *testing.T) {
	window := models.OverrideWindow{ID: "win-1", PatientID: "patient-1", Kind: models.KindChartEntry, GrantedTo: "staff-1"}
	repo := &stubOverrideRepository{windows: []models.OverrideWindow{window}}
	svc := newTestOverrideService(repo, nil)

	windows := svc.ListActive(context.Background(), "patient-1", models.KindChartEntry, "staff-1", time.Now())
	require.Len(t, windows, 1)
	assert.Equal(t, "win-1", windows[0].ID)
	assert.Equal(t, 1, repo.listCalls)
}

func TestOverrideListActiveDegradesAfterRetries(t *testing.T) {
	repo := &stubOverrideRepository{listErr: errors.New("pq: connection refused")}
	svc := newTestOverrideService(repo, nil)

	windows := svc.ListActive(context.Background(), "patient-1", models.KindChartEntry, "staff-1", time.Now())
	assert.Nil(t, windows)
	assert.Equal(t, 3, repo.listCalls)
}

func TestOverrideListActiveStopsOnCancelledContext(t *testing.T) {
	repo := &stubOverrideRepository{listErr: errors.New("pq: connection refused")}
	svc := newTestOverrideService(repo, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	windows := svc.ListActive(ctx, "patient-1", models.KindChartEntry, "staff-1", time.Now())
	assert.Nil(t, windows)
	assert.Equal(t, 1, repo.listCalls)
}

func validCreateRequest() CreateOverrideRequest {
	return CreateOverrideRequest{
		PatientID:       "patient-1",
		Kind:            string(models.KindWeeklyUpdate),
		GrantedTo:       "staff-1",
		StartAt:         time.Date(2026, 8, 28, 19, 30, 0, 0, time.UTC),
		DurationMinutes: 120,
		Reason:          "system outage during rounds",
	}
}

func TestOverrideCreateSuccess(t *testing.T) {
	repo := &stubOverrideRepository{}
	audit := &stubAuditLogger{}
	svc := newTestOverrideService(repo, audit)

	actor := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	window, err := svc.Create(context.Background(), validCreateRequest(), actor)
	require.NoError(t, err)
	assert.Equal(t, "win-new", window.ID)
	assert.Equal(t, "admin-1", window.GrantedBy)
	assert.Equal(t, models.KindWeeklyUpdate, window.Kind)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionOverrideCreate, audit.logs[0].Action)
}

func TestOverrideCreateInvalidatesDashboard(t *testing.T) {
	repo := &stubOverrideRepository{}
	dashboard := &stubSummaryInvalidator{}
	cfg := OverrideServiceConfig{FetchRetries: 0, FetchBackoff: time.Millisecond}
	svc := NewOverrideService(repo, nil, dashboard, nil, zap.NewNop(), cfg)

	_, err := svc.Create(context.Background(), validCreateRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, dashboard.calls)

	repo.createErr = errors.New("pq: connection reset")
	_, err = svc.Create(context.Background(), validCreateRequest(), nil)
	require.Error(t, err)
	assert.Equal(t, 1, dashboard.calls)
}

func TestOverrideCreateRejectsNonPositiveDuration(t *testing.T) {
	repo := &stubOverrideRepository{}
	svc := newTestOverrideService(repo, nil)

	req := validCreateRequest()
	req.DurationMinutes = -10

	_, err := svc.Create(context.Background(), req, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.created)
}

func TestOverrideCreateRejectsOffCatalogDuration(t *testing.T) {
	repo := &stubOverrideRepository{}
	svc := newTestOverrideService(repo, nil)

	req := validCreateRequest()
	req.DurationMinutes = 50

	_, err := svc.Create(context.Background(), req, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.created)
}

func TestOverrideCreateRejectsMissingReason(t *testing.T) {
	repo := &stubOverrideRepository{}
	svc := newTestOverrideService(repo, nil)

	req := validCreateRequest()
	req.Reason = ""

	_, err := svc.Create(context.Background(), req, nil)
	require.Error(t, err)
	assert.Nil(t, repo.created)
}

func TestOverrideCreateRejectsUnknownKind(t *testing.T) {
	repo := &stubOverrideRepository{}
	svc := newTestOverrideService(repo, nil)

	req := validCreateRequest()
	req.Kind = "DAILY_NOTE"

	_, err := svc.Create(context.Background(), req, nil)
	require.Error(t, err)
	assert.Nil(t, repo.created)
}

func TestOverrideCreateSurvivesAuditFailure(t *testing.T) {
	repo := &stubOverrideRepository{}
	audit := &stubAuditLogger{err: errors.New("audit table locked")}
	svc := newTestOverrideService(repo, audit)

	window, err := svc.Create(context.Background(), validCreateRequest(), nil)
	require.NoError(t, err)
	assert.NotNil(t, window)
}
