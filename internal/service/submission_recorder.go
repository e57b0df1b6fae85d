package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/carebridge/carebridge-api/internal/models"
	appErrors "github.com/carebridge/carebridge-api/pkg/errors"
)

type overrideSource interface {
	ListActive(ctx context.Context, patientID string, kind models.SubmissionKind, staffID string, asOf time.Time) []models.OverrideWindow
}

// SubmissionRecorder glues policy evaluation to the outgoing persisted
// record. It re-checks override timestamp bounds server-side rather than
// trusting the caller, and never touches the sink for a denied attempt.
type SubmissionRecorder struct {
	policy    *SubmissionPolicy
	overrides overrideSource
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewSubmissionRecorder constructs the recorder. metrics may be nil.
func NewSubmissionRecorder(policy *SubmissionPolicy, overrides overrideSource, metrics *MetricsService, logger *zap.Logger) *SubmissionRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionRecorder{
		policy:    policy,
		overrides: overrides,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Record evaluates the attempt and, when allowed, invokes persist with the
// final eligibility result. The sink's error is surfaced verbatim: a
// submission is not idempotent, so there is no automatic retry here.
//
// Two staff sessions can both pass the same window and both persist a record;
// the system deliberately does not coordinate concurrent submissions.
func (r *SubmissionRecorder) Record(ctx context.Context, attempt models.SubmissionAttempt, persist func(context.Context, models.EligibilityResult) error) (*models.EligibilityResult, error) {
	now := r.now()
	windows := r.overrides.ListActive(ctx, attempt.PatientID, attempt.Kind, attempt.StaffID, now)

	result, err := r.policy.Evaluate(attempt, windows, now)
	if err != nil {
		return nil, err
	}
	r.metrics.RecordSubmissionDecision(attempt.Kind, result.Classification)

	if !result.Allowed {
		return nil, appErrors.Clone(appErrors.ErrWindowClosed, result.Reason)
	}

	if result.Classification == models.ClassificationOverride {
		if !withinAnyBounds(result.EffectiveTimestamp, result.WindowBounds) {
			return nil, appErrors.Clone(appErrors.ErrOutsideOverride, "requested timestamp falls outside every active override window")
		}
		r.logger.Info("late submission authorized",
			zap.String("patient_id", attempt.PatientID),
			zap.String("kind", string(attempt.Kind)),
			zap.String("staff_id", attempt.StaffID),
			zap.Time("effective_timestamp", result.EffectiveTimestamp))
	}

	if persist != nil {
		if err := persist(ctx, *result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// withinAnyBounds reports whether t lies inside at least one window's closed
// [start, end] interval. Exact start and exact end instants are accepted.
func withinAnyBounds(t time.Time, bounds []models.WindowBounds) bool {
	for _, b := range bounds {
		if !t.Before(b.Start) && !t.After(b.End) {
			return true
		}
	}
	return false
}
