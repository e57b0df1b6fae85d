package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/carebridge/carebridge-api/internal/models"
	appErrors "github.com/carebridge/carebridge-api/pkg/errors"
)

type stubOverrideSource struct {
	windows []models.OverrideWindow
	calls   int
}

func (s *stubOverrideSource) ListActive(_ context.Context, _ string, _ models.SubmissionKind, _ string, _ time.Time) []models.OverrideWindow {
	s.calls++
	return s.windows
}

func newTestRecorder(windows []models.OverrideWindow, now time.Time) (*SubmissionRecorder, *stubOverrideSource) {
	source := &stubOverrideSource{windows: windows}
	recorder := NewSubmissionRecorder(NewSubmissionPolicy(time.UTC), source, nil, zap.NewNop())
	recorder.now = func() time.Time { return now }
	return recorder, source
}

func TestRecorderDeniedNeverPersists(t *testing.T) {
	recorder, _ := newTestRecorder(nil, at(friday, 14, 0))

	persisted := false
	result, err := recorder.Record(context.Background(), chartAttempt(), func(context.Context, models.EligibilityResult) error {
		persisted = true
		return nil
	})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.False(t, persisted)
	assert.Equal(t, appErrors.ErrWindowClosed.Code, appErrors.FromError(err).Code)
}

func TestRecorderNormalSubmissionUsesServerClock(t *testing.T) {
	now := at(friday, 20, 0)
	recorder, _ := newTestRecorder(nil, now)

	// A requested timestamp on a normal submission must be ignored: no
	// backdating outside an override grant.
	requested := at(friday, 19, 5)
	attempt := chartAttempt()
	attempt.RequestedTimestamp = &requested

	var persisted *models.EligibilityResult
	result, err := recorder.Record(context.Background(), attempt, func(_ context.Context, r models.EligibilityResult) error {
		persisted = &r
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, models.ClassificationNormal, result.Classification)
	assert.Equal(t, now, result.EffectiveTimestamp)
	require.NotNil(t, persisted)
	assert.Equal(t, now, persisted.EffectiveTimestamp)
}

func TestRecorderOverrideBackdatedTimestamp(t *testing.T) {
	window := models.OverrideWindow{
		ID: "win-1", PatientID: "patient-1", Kind: models.KindChartEntry, GrantedTo: "staff-1",
		StartAt: at(friday, 1, 0), DurationMinutes: 120,
	}
	now := at(friday, 2, 30)
	recorder, _ := newTestRecorder([]models.OverrideWindow{window}, now)

	requested := at(friday, 1, 45)
	attempt := chartAttempt()
	attempt.RequestedTimestamp = &requested
	attempt.Justification = "overnight incident"

	result, err := recorder.Record(context.Background(), attempt, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ClassificationOverride, result.Classification)
	assert.Equal(t, requested, result.EffectiveTimestamp)
}

func TestRecorderOverrideTimestampOutOfBounds(t *testing.T) {
	window := models.OverrideWindow{
		ID: "win-1", PatientID: "patient-1", Kind: models.KindChartEntry, GrantedTo: "staff-1",
		StartAt: at(friday, 1, 0), DurationMinutes: 120,
	}
	now := at(friday, 2, 30)
	recorder, _ := newTestRecorder([]models.OverrideWindow{window}, now)

	requested := at(friday, 0, 30)
	attempt := chartAttempt()
	attempt.RequestedTimestamp = &requested
	attempt.Justification = "overnight incident"

	persisted := false
	result, err := recorder.Record(context.Background(), attempt, func(context.Context, models.EligibilityResult) error {
		persisted = true
		return nil
	})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.False(t, persisted)
	assert.Equal(t, appErrors.ErrOutsideOverride.Code, appErrors.FromError(err).Code)
}

func TestRecorderOverrideWindowEndIsAccepted(t *testing.T) {
	window := models.OverrideWindow{
		ID: "win-1", PatientID: "patient-1", Kind: models.KindChartEntry, GrantedTo: "staff-1",
		StartAt: at(friday, 1, 0), DurationMinutes: 60,
	}
	now := window.End()
	recorder, _ := newTestRecorder([]models.OverrideWindow{window}, now)

	requested := window.End()
	attempt := chartAttempt()
	attempt.RequestedTimestamp = &requested
	attempt.Justification = "filed at the wire"

	result, err := recorder.Record(context.Background(), attempt, nil)
	require.NoError(t, err)
	assert.Equal(t, requested, result.EffectiveTimestamp)
}

func TestRecorderCountsDecisionsInMetrics(t *testing.T) {
	metrics := NewMetricsService()
	source := &stubOverrideSource{}
	recorder := NewSubmissionRecorder(NewSubmissionPolicy(time.UTC), source, metrics, zap.NewNop())

	recorder.now = func() time.Time { return at(friday, 20, 0) }
	_, err := recorder.Record(context.Background(), chartAttempt(), func(context.Context, models.EligibilityResult) error { return nil })
	require.NoError(t, err)

	recorder.now = func() time.Time { return at(friday, 14, 0) }
	_, err = recorder.Record(context.Background(), chartAttempt(), nil)
	require.Error(t, err)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, `submission_decisions_total{classification="NORMAL",kind="CHART_ENTRY"} 1`)
	assert.Contains(t, body, `submission_decisions_total{classification="DENIED",kind="CHART_ENTRY"} 1`)
}

func TestRecorderPersistErrorSurfaced(t *testing.T) {
	recorder, _ := newTestRecorder(nil, at(friday, 20, 0))

	sinkErr := errors.New("pq: connection reset")
	result, err := recorder.Record(context.Background(), chartAttempt(), func(context.Context, models.EligibilityResult) error {
		return sinkErr
	})

	assert.Nil(t, result)
	assert.Equal(t, sinkErr, err)
}
