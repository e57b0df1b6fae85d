package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/carebridge-api/internal/models"
	appErrors "github.com/carebridge/carebridge-api/pkg/errors"
)

func chartAttempt() models.SubmissionAttempt {
	return models.SubmissionAttempt{
		Kind:      models.KindChartEntry,
		PatientID: "patient-1",
		StaffID:   "staff-1",
	}
}

// 2026-08-28 is a Friday.
var friday = time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

func at(base time.Time, hour, minute int) time.Time {
	return time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, time.UTC)
}

func TestPolicyChartEntryDefaultWindow(t *testing.T) {
	policy := NewSubmissionPolicy(time.UTC)

	cases := []struct {
		name    string
		now     time.Time
		allowed bool
	}{
		{"before window", at(friday, 18, 59), false},
		{"window opens", at(friday, 19, 0), true},
		{"mid window", at(friday, 20, 30), true},
		{"last minute", at(friday, 21, 59), true},
		{"window closes", at(friday, 22, 0), false},
		{"late night", at(friday, 23, 15), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := policy.Evaluate(chartAttempt(), nil, tc.now)
			require.NoError(t, err)
			assert.Equal(t, tc.allowed, result.Allowed)
			if tc.allowed {
				assert.Equal(t, models.ClassificationNormal, result.Classification)
				assert.Equal(t, tc.now, result.EffectiveTimestamp)
			} else {
				assert.Equal(t, models.ClassificationDenied, result.Classification)
				assert.NotEmpty(t, result.Reason)
			}
		})
	}
}

func TestPolicyWeeklyUpdateFridayMorning(t *testing.T) {
	policy := NewSubmissionPolicy(time.UTC)
	attempt := models.SubmissionAttempt{Kind: models.KindWeeklyUpdate, PatientID: "patient-1", StaffID: "staff-1"}

	result, err := policy.Evaluate(attempt, nil, at(friday, 11, 59))
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, models.ClassificationNormal, result.Classification)

	result, err = policy.Evaluate(attempt, nil, at(friday, 12, 0))
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	saturday := friday.AddDate(0, 0, 1)
	result, err = policy.Evaluate(attempt, nil, at(saturday, 9, 0))
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, models.ClassificationDenied, result.Classification)
}

func TestPolicyMonthlyUpdateFirstThreeDays(t *testing.T) {
	policy := NewSubmissionPolicy(time.UTC)
	attempt := models.SubmissionAttempt{Kind: models.KindMonthlyUpdate, PatientID: "patient-1", StaffID: "staff-1"}

	for day := 1; day <= 3; day++ {
		now := time.Date(2026, 9, day, 23, 45, 0, 0, time.UTC)
		result, err := policy.Evaluate(attempt, nil, now)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "day %d should be allowed", day)
	}

	result, err := policy.Evaluate(attempt, nil, time.Date(2026, 9, 4, 0, 1, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestPolicyFacilityTimezoneCalendarFields(t *testing.T) {
	// 23:30 UTC is 19:30 in a UTC-4 facility: inside the nightly window.
	facility := time.FixedZone("facility", -4*60*60)
	policy := NewSubmissionPolicy(facility)

	result, err := policy.Evaluate(chartAttempt(), nil, at(friday, 23, 30))
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, models.ClassificationNormal, result.Classification)

	// 20:00 UTC is only 16:00 locally: denied.
	result, err = policy.Evaluate(chartAttempt(), nil, at(friday, 20, 0))
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestPolicyOverrideGrantsOutsideSchedule(t *testing.T) {
	policy := NewSubmissionPolicy(time.UTC)
	window := models.OverrideWindow{
		ID:              "win-1",
		PatientID:       "patient-1",
		Kind:            models.KindWeeklyUpdate,
		GrantedTo:       "staff-1",
		StartAt:         at(friday, 19, 30),
		DurationMinutes: 120,
		Reason:          "system outage",
	}
	attempt := models.SubmissionAttempt{
		Kind:          models.KindWeeklyUpdate,
		PatientID:     "patient-1",
		StaffID:       "staff-1",
		Justification: "system outage",
	}

	now := at(friday, 20, 15)
	result, err := policy.Evaluate(attempt, []models.OverrideWindow{window}, now)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, models.ClassificationOverride, result.Classification)
	require.NotNil(t, result.Window)
	assert.Equal(t, "win-1", result.Window.ID)
	require.Len(t, result.WindowBounds, 1)
	assert.Equal(t, at(friday, 19, 30), result.WindowBounds[0].Start)
	assert.Equal(t, at(friday, 21, 30), result.WindowBounds[0].End)
}

func TestPolicyOverrideBoundariesInclusive(t *testing.T) {
	policy := NewSubmissionPolicy(time.UTC)
	window := models.OverrideWindow{
		PatientID:       "patient-1",
		Kind:            models.KindChartEntry,
		GrantedTo:       "staff-1",
		StartAt:         at(friday, 2, 0),
		DurationMinutes: 60,
	}
	attempt := chartAttempt()
	attempt.Justification = "overnight incident follow-up"

	for _, now := range []time.Time{window.StartAt, window.End()} {
		result, err := policy.Evaluate(attempt, []models.OverrideWindow{window}, now)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "boundary %s must be inside", now)
		assert.Equal(t, models.ClassificationOverride, result.Classification)
	}

	result, err := policy.Evaluate(attempt, []models.OverrideWindow{window}, window.End().Add(time.Second))
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestPolicyOverrideRequiresJustification(t *testing.T) {
	policy := NewSubmissionPolicy(time.UTC)
	window := models.OverrideWindow{
		PatientID:       "patient-1",
		Kind:            models.KindChartEntry,
		GrantedTo:       "staff-1",
		StartAt:         at(friday, 2, 0),
		DurationMinutes: 60,
	}

	_, err := policy.Evaluate(chartAttempt(), []models.OverrideWindow{window}, at(friday, 2, 30))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPolicyOverrideIgnoresMismatchedWindows(t *testing.T) {
	policy := NewSubmissionPolicy(time.UTC)
	now := at(friday, 2, 30)
	windows := []models.OverrideWindow{
		{PatientID: "patient-2", Kind: models.KindChartEntry, GrantedTo: "staff-1", StartAt: at(friday, 2, 0), DurationMinutes: 60},
		{PatientID: "patient-1", Kind: models.KindWeeklyUpdate, GrantedTo: "staff-1", StartAt: at(friday, 2, 0), DurationMinutes: 60},
		{PatientID: "patient-1", Kind: models.KindChartEntry, GrantedTo: "staff-9", StartAt: at(friday, 2, 0), DurationMinutes: 60},
	}
	attempt := chartAttempt()
	attempt.Justification = "not applicable"

	result, err := policy.Evaluate(attempt, windows, now)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, models.ClassificationDenied, result.Classification)
}

func TestPolicyOverlappingWindowsSurfaceEveryBound(t *testing.T) {
	policy := NewSubmissionPolicy(time.UTC)
	older := models.OverrideWindow{
		ID: "older", PatientID: "patient-1", Kind: models.KindChartEntry, GrantedTo: "staff-1",
		StartAt: at(friday, 1, 0), DurationMinutes: 180,
	}
	newer := models.OverrideWindow{
		ID: "newer", PatientID: "patient-1", Kind: models.KindChartEntry, GrantedTo: "staff-1",
		StartAt: at(friday, 2, 0), DurationMinutes: 60,
	}
	attempt := chartAttempt()
	attempt.Justification = "double grant"

	result, err := policy.Evaluate(attempt, []models.OverrideWindow{older, newer}, at(friday, 2, 30))
	require.NoError(t, err)
	require.NotNil(t, result.Window)
	assert.Equal(t, "newer", result.Window.ID)
	assert.Len(t, result.WindowBounds, 2)
}

func TestPolicyMalformedAttemptIsValidationError(t *testing.T) {
	policy := NewSubmissionPolicy(time.UTC)

	cases := []models.SubmissionAttempt{
		{Kind: "UNKNOWN", PatientID: "patient-1", StaffID: "staff-1"},
		{Kind: models.KindChartEntry, StaffID: "staff-1"},
		{Kind: models.KindChartEntry, PatientID: "patient-1"},
	}
	for _, attempt := range cases {
		_, err := policy.Evaluate(attempt, nil, at(friday, 20, 0))
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestPolicyEvaluateIsIdempotent(t *testing.T) {
	policy := NewSubmissionPolicy(time.UTC)
	window := models.OverrideWindow{
		ID: "win-1", PatientID: "patient-1", Kind: models.KindChartEntry, GrantedTo: "staff-1",
		StartAt: at(friday, 2, 0), DurationMinutes: 60,
	}
	attempt := chartAttempt()
	attempt.Justification = "repeat check"
	now := at(friday, 2, 15)

	first, err := policy.Evaluate(attempt, []models.OverrideWindow{window}, now)
	require.NoError(t, err)
	second, err := policy.Evaluate(attempt, []models.OverrideWindow{window}, now)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
