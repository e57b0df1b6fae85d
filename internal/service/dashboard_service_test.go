package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/carebridge/carebridge-api/pkg/errors"
)

type stubPatientCounter struct{ total, active int }

func (s *stubPatientCounter) Counts(_ context.Context) (int, int, error) {
	return s.total, s.active, nil
}

type stubAppointmentCounter struct {
	count int
	from  time.Time
	to    time.Time
}

func (s *stubAppointmentCounter) CountBetween(_ context.Context, from, to time.Time) (int, error) {
	s.from, s.to = from, to
	return s.count, nil
}

type stubChartCounter struct{ total, late int }

func (s *stubChartCounter) CountSince(_ context.Context, _ time.Time) (int, error) {
	return s.total, nil
}

func (s *stubChartCounter) CountLateSince(_ context.Context, _ time.Time) (int, error) {
	return s.late, nil
}

type stubUpdateCounter struct{ late int }

func (s *stubUpdateCounter) CountLateSince(_ context.Context, _ time.Time) (int, error) {
	return s.late, nil
}

type stubOverrideCounter struct{ open int }

func (s *stubOverrideCounter) CountActive(_ context.Context, _ time.Time) (int, error) {
	return s.open, nil
}

func TestDashboardSummaryAggregatesCounts(t *testing.T) {
	appts := &stubAppointmentCounter{count: 4}
	svc := NewDashboardService(DashboardServiceParams{
		Patients:     &stubPatientCounter{total: 42, active: 38},
		Appointments: appts,
		Charts:       &stubChartCounter{total: 12, late: 2},
		Updates:      &stubUpdateCounter{late: 1},
		Overrides:    &stubOverrideCounter{open: 3},
		Logger:       zap.NewNop(),
	})
	svc.now = func() time.Time { return time.Date(2026, 8, 28, 21, 0, 0, 0, time.UTC) }

	summary, cached, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 42, summary.TotalPatients)
	assert.Equal(t, 38, summary.ActivePatients)
	assert.Equal(t, 4, summary.AppointmentsToday)
	assert.Equal(t, 12, summary.ChartEntriesTonight)
	assert.Equal(t, 3, summary.LateSubmissions)
	assert.Equal(t, 3, summary.OpenOverrideWindows)

	// Day boundaries come from the facility calendar, UTC here.
	assert.Equal(t, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), appts.from)
	assert.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), appts.to)
}

func TestDashboardSummaryFacilityTimezoneDayBounds(t *testing.T) {
	facility := time.FixedZone("facility", -5*60*60)
	appts := &stubAppointmentCounter{}
	svc := NewDashboardService(DashboardServiceParams{
		Patients:     &stubPatientCounter{},
		Appointments: appts,
		Charts:       &stubChartCounter{},
		Updates:      &stubUpdateCounter{},
		Overrides:    &stubOverrideCounter{},
		Config:       DashboardServiceConfig{FacilityTimezone: facility},
	})
	// 02:00 UTC is 21:00 the previous local day.
	svc.now = func() time.Time { return time.Date(2026, 8, 29, 2, 0, 0, 0, time.UTC) }

	_, _, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 28, 5, 0, 0, 0, time.UTC), appts.from)
}

func TestDashboardSummaryObservesQueryTiming(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewDashboardService(DashboardServiceParams{
		Patients:     &stubPatientCounter{},
		Appointments: &stubAppointmentCounter{},
		Charts:       &stubChartCounter{},
		Updates:      &stubUpdateCounter{},
		Overrides:    &stubOverrideCounter{},
		Metrics:      metrics,
	})

	_, _, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), metrics.Snapshot().DBQueryCount)
}

type recordingCacheRepo struct {
	stored map[string]interface{}
}

func (r *recordingCacheRepo) Get(_ context.Context, _ string, _ interface{}) error {
	return appErrors.ErrCacheMiss
}

func (r *recordingCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if r.stored == nil {
		r.stored = map[string]interface{}{}
	}
	r.stored[key] = value
	return nil
}

func (r *recordingCacheRepo) DeleteByPattern(_ context.Context, _ string) error {
	return nil
}

func TestDashboardSummaryWritesCache(t *testing.T) {
	repo := &recordingCacheRepo{}
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	svc := NewDashboardService(DashboardServiceParams{
		Patients:     &stubPatientCounter{total: 5, active: 5},
		Appointments: &stubAppointmentCounter{},
		Charts:       &stubChartCounter{},
		Updates:      &stubUpdateCounter{},
		Overrides:    &stubOverrideCounter{},
		Cache:        cache,
	})

	summary, cached, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 5, summary.TotalPatients)
	assert.Contains(t, repo.stored, dashboardSummaryCacheKey)
}
