package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/carebridge/carebridge-api/internal/models"
	appErrors "github.com/carebridge/carebridge-api/pkg/errors"
)

type patientCounter interface {
	Counts(ctx context.Context) (int, int, error)
}

type appointmentCounter interface {
	CountBetween(ctx context.Context, from, to time.Time) (int, error)
}

type chartCounter interface {
	CountSince(ctx context.Context, cutoff time.Time) (int, error)
	CountLateSince(ctx context.Context, cutoff time.Time) (int, error)
}

type updateLateCounter interface {
	CountLateSince(ctx context.Context, cutoff time.Time) (int, error)
}

type overrideCounter interface {
	CountActive(ctx context.Context, asOf time.Time) (int, error)
}

// summaryInvalidator drops cached dashboard counts after a write that would
// change them. DashboardService satisfies it.
type summaryInvalidator interface {
	Invalidate(ctx context.Context)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL         time.Duration
	LateLookbackDays int
	FacilityTimezone *time.Location
}

// DashboardService composes the facility summary for the landing page.
type DashboardService struct {
	patients     patientCounter
	appointments appointmentCounter
	charts       chartCounter
	updates      updateLateCounter
	overrides    overrideCounter
	cache        *CacheService
	metrics      *MetricsService
	logger       *zap.Logger
	now          func() time.Time
	cfg          DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Patients     patientCounter
	Appointments appointmentCounter
	Charts       chartCounter
	Updates      updateLateCounter
	Overrides    overrideCounter
	Cache        *CacheService
	Metrics      *MetricsService
	Logger       *zap.Logger
	Config       DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.LateLookbackDays <= 0 {
		cfg.LateLookbackDays = 7
	}
	if cfg.FacilityTimezone == nil {
		cfg.FacilityTimezone = time.UTC
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		patients:     params.Patients,
		appointments: params.Appointments,
		charts:       params.Charts,
		updates:      params.Updates,
		overrides:    params.Overrides,
		cache:        params.Cache,
		metrics:      params.Metrics,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
		cfg:          cfg,
	}
}

const dashboardSummaryCacheKey = "dashboard:summary"

// Summary returns facility-wide counts, served from cache when fresh. The
// second return value reports whether the cache was hit.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, bool, error) {
	var cached models.DashboardSummary
	if hit, err := s.cache.Get(ctx, dashboardSummaryCacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	now := s.now()
	local := now.In(s.cfg.FacilityTimezone)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.cfg.FacilityTimezone).UTC()
	dayEnd := dayStart.Add(24 * time.Hour)
	lateCutoff := now.AddDate(0, 0, -s.cfg.LateLookbackDays)

	queryStart := time.Now()
	defer func() { s.metrics.ObserveDBQuery("dashboard_summary", time.Since(queryStart)) }()

	total, active, err := s.patients.Counts(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count patients")
	}
	apptsToday, err := s.appointments.CountBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count appointments")
	}
	entriesTonight, err := s.charts.CountSince(ctx, dayStart)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count chart entries")
	}
	lateCharts, err := s.charts.CountLateSince(ctx, lateCutoff)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count late chart entries")
	}
	lateUpdates, err := s.updates.CountLateSince(ctx, lateCutoff)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count late updates")
	}
	openOverrides, err := s.overrides.CountActive(ctx, now)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count override windows")
	}

	summary := &models.DashboardSummary{
		TotalPatients:       total,
		ActivePatients:      active,
		AppointmentsToday:   apptsToday,
		ChartEntriesTonight: entriesTonight,
		LateSubmissions:     lateCharts + lateUpdates,
		OpenOverrideWindows: openOverrides,
		GeneratedAt:         now,
	}

	if err := s.cache.Set(ctx, dashboardSummaryCacheKey, summary, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("failed to cache dashboard summary", zap.Error(err))
	}
	return summary, false, nil
}

// Invalidate drops the cached summary, typically after a new submission.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, dashboardSummaryCacheKey); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}
