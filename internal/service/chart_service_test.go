package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/carebridge/carebridge-api/internal/models"
	appErrors "github.com/carebridge/carebridge-api/pkg/errors"
)

type stubChartRepository struct {
	entries   []models.ChartEntry
	created   *models.ChartEntry
	createErr error
}

func (s *stubChartRepository) List(_ context.Context, _ models.ChartEntryFilter) ([]models.ChartEntry, int, error) {
	return s.entries, len(s.entries), nil
}

func (s *stubChartRepository) Create(_ context.Context, entry *models.ChartEntry) error {
	if s.createErr != nil {
		return s.createErr
	}
	entry.ID = "entry-new"
	s.created = entry
	return nil
}

func (s *stubChartRepository) CountSince(_ context.Context, _ time.Time) (int, error) {
	return len(s.entries), nil
}

func (s *stubChartRepository) CountLateSince(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

func newTestChartService(repo *stubChartRepository, windows []models.OverrideWindow, now time.Time) (*ChartService, *stubAuditLogger) {
	recorder, _ := newTestRecorder(windows, now)
	audit := &stubAuditLogger{}
	return NewChartService(repo, recorder, audit, nil, nil, zap.NewNop()), audit
}

func caregiverClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "staff-1", Role: models.RoleCaregiver}
}

func TestChartCreateInsideNightlyWindow(t *testing.T) {
	repo := &stubChartRepository{}
	svc, audit := newTestChartService(repo, nil, at(friday, 20, 0))

	entry, err := svc.Create(context.Background(), CreateChartEntryRequest{
		PatientID:   "patient-1",
		Category:    string(models.ChartSleep),
		Observation: "resident settled shortly after lights out",
	}, caregiverClaims())

	require.NoError(t, err)
	assert.Equal(t, "entry-new", entry.ID)
	assert.Equal(t, at(friday, 20, 0), entry.EntryTime)
	assert.False(t, entry.Late)
	assert.Nil(t, entry.Justification)
	assert.Empty(t, audit.logs)
}

func TestChartCreateOutsideWindowRejected(t *testing.T) {
	repo := &stubChartRepository{}
	svc, _ := newTestChartService(repo, nil, at(friday, 14, 0))

	_, err := svc.Create(context.Background(), CreateChartEntryRequest{
		PatientID:   "patient-1",
		Category:    string(models.ChartMeal),
		Observation: "lunch refused",
	}, caregiverClaims())

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrWindowClosed.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.created)
}

func TestChartCreateThroughOverrideMarksLate(t *testing.T) {
	window := models.OverrideWindow{
		ID: "win-1", PatientID: "patient-1", Kind: models.KindChartEntry, GrantedTo: "staff-1",
		StartAt: at(friday, 1, 0), DurationMinutes: 120,
	}
	repo := &stubChartRepository{}
	svc, audit := newTestChartService(repo, []models.OverrideWindow{window}, at(friday, 2, 0))

	backdated := at(friday, 1, 30)
	entry, err := svc.Create(context.Background(), CreateChartEntryRequest{
		PatientID:     "patient-1",
		Category:      string(models.ChartIncident),
		Observation:   "fall near the day room, no injury",
		EntryTime:     &backdated,
		Justification: "incident paperwork took precedence",
	}, caregiverClaims())

	require.NoError(t, err)
	assert.True(t, entry.Late)
	assert.Equal(t, backdated, entry.EntryTime)
	require.NotNil(t, entry.Justification)
	assert.Equal(t, "incident paperwork took precedence", *entry.Justification)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionLateSubmission, audit.logs[0].Action)
	assert.Equal(t, "chart_entry", audit.logs[0].Resource)
}

type stubSummaryInvalidator struct{ calls int }

func (s *stubSummaryInvalidator) Invalidate(_ context.Context) { s.calls++ }

func TestChartCreateInvalidatesDashboard(t *testing.T) {
	recorder, _ := newTestRecorder(nil, at(friday, 20, 0))
	dashboard := &stubSummaryInvalidator{}
	svc := NewChartService(&stubChartRepository{}, recorder, nil, dashboard, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), CreateChartEntryRequest{
		PatientID:   "patient-1",
		Category:    string(models.ChartSleep),
		Observation: "resident asleep by nine",
	}, caregiverClaims())
	require.NoError(t, err)
	assert.Equal(t, 1, dashboard.calls)
}

func TestChartCreateDeniedLeavesDashboardCache(t *testing.T) {
	recorder, _ := newTestRecorder(nil, at(friday, 14, 0))
	dashboard := &stubSummaryInvalidator{}
	svc := NewChartService(&stubChartRepository{}, recorder, nil, dashboard, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), CreateChartEntryRequest{
		PatientID:   "patient-1",
		Category:    string(models.ChartMeal),
		Observation: "lunch refused",
	}, caregiverClaims())
	require.Error(t, err)
	assert.Equal(t, 0, dashboard.calls)
}

func TestChartCreateUnknownCategory(t *testing.T) {
	repo := &stubChartRepository{}
	svc, _ := newTestChartService(repo, nil, at(friday, 20, 0))

	_, err := svc.Create(context.Background(), CreateChartEntryRequest{
		PatientID:   "patient-1",
		Category:    "MOOD",
		Observation: "cheerful",
	}, caregiverClaims())

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestChartListUnknownCategoryFilter(t *testing.T) {
	repo := &stubChartRepository{}
	svc, _ := newTestChartService(repo, nil, at(friday, 20, 0))

	_, _, err := svc.List(context.Background(), ChartListRequest{Category: "MOOD"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
