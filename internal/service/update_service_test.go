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

type stubUpdateRepository struct {
	updates []models.ResidentUpdate
	created *models.ResidentUpdate
}

func (s *stubUpdateRepository) List(_ context.Context, _ models.ResidentUpdateFilter) ([]models.ResidentUpdate, int, error) {
	return s.updates, len(s.updates), nil
}

func (s *stubUpdateRepository) Create(_ context.Context, update *models.ResidentUpdate) error {
	update.ID = "update-new"
	s.created = update
	return nil
}

func (s *stubUpdateRepository) CountLateSince(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

func newTestUpdateService(repo *stubUpdateRepository, windows []models.OverrideWindow, now time.Time) (*UpdateService, *stubAuditLogger) {
	recorder, _ := newTestRecorder(windows, now)
	audit := &stubAuditLogger{}
	return NewUpdateService(repo, recorder, audit, nil, nil, zap.NewNop()), audit
}

func TestUpdateCreateWeeklyFridayMorning(t *testing.T) {
	repo := &stubUpdateRepository{}
	svc, _ := newTestUpdateService(repo, nil, at(friday, 9, 30))

	update, err := svc.Create(context.Background(), CreateUpdateRequest{
		PatientID: "patient-1",
		Period:    string(models.PeriodWeekly),
		Summary:   "good week overall, appetite improving",
	}, caregiverClaims())

	require.NoError(t, err)
	assert.Equal(t, models.PeriodWeekly, update.Period)
	assert.Equal(t, at(friday, 9, 30), update.SubmittedAt)
	assert.False(t, update.Late)
}

func TestUpdateCreateWeeklyAfterNoonRejected(t *testing.T) {
	repo := &stubUpdateRepository{}
	svc, _ := newTestUpdateService(repo, nil, at(friday, 12, 30))

	_, err := svc.Create(context.Background(), CreateUpdateRequest{
		PatientID: "patient-1",
		Period:    string(models.PeriodWeekly),
		Summary:   "good week",
	}, caregiverClaims())

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrWindowClosed.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.created)
}

func TestUpdateCreateMonthlyOnSecondDay(t *testing.T) {
	repo := &stubUpdateRepository{}
	now := time.Date(2026, 9, 2, 15, 0, 0, 0, time.UTC)
	svc, _ := newTestUpdateService(repo, nil, now)

	concerns := "weight trending down"
	update, err := svc.Create(context.Background(), CreateUpdateRequest{
		PatientID: "patient-1",
		Period:    string(models.PeriodMonthly),
		Summary:   "stable month, two family visits",
		Concerns:  &concerns,
	}, caregiverClaims())

	require.NoError(t, err)
	assert.Equal(t, models.PeriodMonthly, update.Period)
	require.NotNil(t, update.Concerns)
	assert.Equal(t, concerns, *update.Concerns)
}

func TestUpdateCreateMonthlyThroughOverride(t *testing.T) {
	// Day 5: the monthly window is gone, only the grant admits the report.
	now := time.Date(2026, 9, 5, 10, 0, 0, 0, time.UTC)
	window := models.OverrideWindow{
		ID: "win-1", PatientID: "patient-1", Kind: models.KindMonthlyUpdate, GrantedTo: "staff-1",
		StartAt: now.Add(-time.Hour), DurationMinutes: 180,
	}
	repo := &stubUpdateRepository{}
	svc, audit := newTestUpdateService(repo, []models.OverrideWindow{window}, now)

	update, err := svc.Create(context.Background(), CreateUpdateRequest{
		PatientID:     "patient-1",
		Period:        string(models.PeriodMonthly),
		Summary:       "late monthly report",
		Justification: "family meeting ran past the deadline",
	}, caregiverClaims())

	require.NoError(t, err)
	assert.True(t, update.Late)
	require.NotNil(t, update.Justification)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "resident_update", audit.logs[0].Resource)
}

func TestUpdateCreateUnknownPeriod(t *testing.T) {
	repo := &stubUpdateRepository{}
	svc, _ := newTestUpdateService(repo, nil, at(friday, 9, 0))

	_, err := svc.Create(context.Background(), CreateUpdateRequest{
		PatientID: "patient-1",
		Period:    "QUARTERLY",
		Summary:   "report",
	}, caregiverClaims())

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
