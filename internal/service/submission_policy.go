package service

import (
	"fmt"
	"time"

	"github.com/carebridge/carebridge-api/internal/models"
	appErrors "github.com/carebridge/carebridge-api/pkg/errors"
)

// SubmissionPolicy decides whether a submission attempt of a given kind may
// proceed at a given instant, and classifies the verdict. It is a pure
// function of its inputs: identical attempt, windows and clock yield an
// identical result.
//
// Timestamps are compared in UTC. Calendar-field rules (hour of day, weekday,
// day of month) are evaluated in the facility timezone so that "the nightly
// charting window" means the facility's night, not the server's.
type SubmissionPolicy struct {
	location *time.Location
}

// NewSubmissionPolicy constructs a policy bound to the facility timezone.
func NewSubmissionPolicy(loc *time.Location) *SubmissionPolicy {
	if loc == nil {
		loc = time.UTC
	}
	return &SubmissionPolicy{location: loc}
}

// Default schedule bounds. Chart entries open at 19:00 and close before
// 22:00; weekly updates are accepted Friday mornings; monthly updates during
// the first three days of the month.
const (
	chartWindowOpenHour  = 19
	chartWindowCloseHour = 22
	weeklyUpdateWeekday  = time.Friday
	weeklyUpdateEndHour  = 12
	monthlyUpdateLastDay = 3
)

// Evaluate resolves an attempt against the active override windows first,
// then the kind's default schedule. Malformed attempts return a validation
// error; a schedule miss is a Denied result, not an error.
func (p *SubmissionPolicy) Evaluate(attempt models.SubmissionAttempt, windows []models.OverrideWindow, now time.Time) (*models.EligibilityResult, error) {
	if !attempt.Kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown submission kind %q", attempt.Kind))
	}
	if attempt.PatientID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "patient id is required")
	}
	if attempt.StaffID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "staff id is required")
	}

	matches := matchingWindows(attempt, windows, now)
	if len(matches) > 0 {
		if attempt.Justification == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "justification is required for late submissions")
		}

		effective := now
		if attempt.RequestedTimestamp != nil {
			effective = *attempt.RequestedTimestamp
		}

		result := &models.EligibilityResult{
			Allowed:            true,
			Classification:     models.ClassificationOverride,
			EffectiveTimestamp: effective.UTC(),
			Window:             mostRecentlyStarted(matches),
			WindowBounds:       bounds(matches),
		}
		return result, nil
	}

	if p.defaultRulePasses(attempt.Kind, now) {
		// Normal submissions always carry the server clock; staff cannot
		// backdate them.
		return &models.EligibilityResult{
			Allowed:            true,
			Classification:     models.ClassificationNormal,
			EffectiveTimestamp: now.UTC(),
		}, nil
	}

	return &models.EligibilityResult{
		Allowed:        false,
		Classification: models.ClassificationDenied,
		Reason:         p.denialReason(attempt.Kind),
	}, nil
}

// defaultRulePasses evaluates the kind's schedule against facility-local
// calendar fields.
func (p *SubmissionPolicy) defaultRulePasses(kind models.SubmissionKind, now time.Time) bool {
	local := now.In(p.location)
	switch kind {
	case models.KindChartEntry:
		h := local.Hour()
		return h >= chartWindowOpenHour && h < chartWindowCloseHour
	case models.KindWeeklyUpdate:
		return local.Weekday() == weeklyUpdateWeekday && local.Hour() < weeklyUpdateEndHour
	case models.KindMonthlyUpdate:
		return local.Day() <= monthlyUpdateLastDay
	default:
		return false
	}
}

func (p *SubmissionPolicy) denialReason(kind models.SubmissionKind) string {
	switch kind {
	case models.KindChartEntry:
		return "chart entries may only be submitted between 19:00 and 22:00"
	case models.KindWeeklyUpdate:
		return "weekly updates may only be submitted Friday before noon"
	case models.KindMonthlyUpdate:
		return "monthly updates may only be submitted during the first three days of the month"
	default:
		return "outside submission window"
	}
}

// matchingWindows filters windows to those granted to this staff member for
// this (patient, kind) whose closed interval contains now. Multiple grants
// may be active at once; none are de-duplicated.
func matchingWindows(attempt models.SubmissionAttempt, windows []models.OverrideWindow, now time.Time) []models.OverrideWindow {
	var matches []models.OverrideWindow
	for _, w := range windows {
		if w.PatientID != attempt.PatientID || w.Kind != attempt.Kind || w.GrantedTo != attempt.StaffID {
			continue
		}
		if w.Contains(now) {
			matches = append(matches, w)
		}
	}
	return matches
}

// mostRecentlyStarted picks the window presented for timestamp selection when
// several grants overlap.
func mostRecentlyStarted(windows []models.OverrideWindow) *models.OverrideWindow {
	if len(windows) == 0 {
		return nil
	}
	latest := windows[0]
	for _, w := range windows[1:] {
		if w.StartAt.After(latest.StartAt) {
			latest = w
		}
	}
	return &latest
}

func bounds(windows []models.OverrideWindow) []models.WindowBounds {
	out := make([]models.WindowBounds, len(windows))
	for i, w := range windows {
		out[i] = models.WindowBounds{Start: w.StartAt, End: w.End()}
	}
	return out
}
