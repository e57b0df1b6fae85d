package models

import "time"

// SubmissionKind identifies a periodic clinical entry gated by a submission window.
type SubmissionKind string

const (
	KindChartEntry    SubmissionKind = "CHART_ENTRY"
	KindWeeklyUpdate  SubmissionKind = "WEEKLY_UPDATE"
	KindMonthlyUpdate SubmissionKind = "MONTHLY_UPDATE"
)

// Valid returns true when the kind is a supported value.
func (k SubmissionKind) Valid() bool {
	switch k {
	case KindChartEntry, KindWeeklyUpdate, KindMonthlyUpdate:
		return true
	default:
		return false
	}
}

// Classification is the policy verdict for a submission attempt.
type Classification string

const (
	ClassificationNormal   Classification = "NORMAL"
	ClassificationOverride Classification = "OVERRIDE"
	ClassificationDenied   Classification = "DENIED"
)

// OverrideWindowDurations lists the grant lengths the admin form offers, in minutes.
var OverrideWindowDurations = []int{30, 45, 60, 120, 180, 360, 720, 1440, 2160, 2880}

// AllowedOverrideDuration reports whether minutes is one of the offered grant lengths.
func AllowedOverrideDuration(minutes int) bool {
	for _, d := range OverrideWindowDurations {
		if d == minutes {
			return true
		}
	}
	return false
}

// OverrideWindow is a staff-granted, time-bounded exception permitting a
// submission outside its normal schedule. Immutable once created; it expires
// implicitly when the wall clock passes End.
type OverrideWindow struct {
	ID              string         `db:"id" json:"id"`
	PatientID       string         `db:"patient_id" json:"patient_id"`
	Kind            SubmissionKind `db:"kind" json:"kind"`
	GrantedTo       string         `db:"granted_to" json:"granted_to"`
	GrantedBy       string         `db:"granted_by" json:"granted_by"`
	StartAt         time.Time      `db:"start_at" json:"start_at"`
	DurationMinutes int            `db:"duration_minutes" json:"duration_minutes"`
	Reason          string         `db:"reason" json:"reason"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}

// End returns the instant the window closes.
func (w OverrideWindow) End() time.Time {
	return w.StartAt.Add(time.Duration(w.DurationMinutes) * time.Minute)
}

// Contains reports whether t lies inside the window. Both boundaries are
// inside: start and end instants are accepted.
func (w OverrideWindow) Contains(t time.Time) bool {
	return !t.Before(w.StartAt) && !t.After(w.End())
}

// WindowBounds surfaces a window's interval to callers that need to constrain
// timestamp selection without exposing the whole grant.
type WindowBounds struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// OverrideWindowFilter scopes override listing queries.
type OverrideWindowFilter struct {
	PatientID string
	Kind      *SubmissionKind
	GrantedTo string
	ActiveAt  *time.Time
	Page      int
	PageSize  int
}

// SubmissionAttempt is one staff member's attempt to submit a chart entry or
// resident update. RequestedTimestamp is only honoured for override
// submissions; normal submissions always use the server clock.
type SubmissionAttempt struct {
	Kind               SubmissionKind `json:"kind"`
	PatientID          string         `json:"patient_id"`
	StaffID            string         `json:"staff_id"`
	RequestedTimestamp *time.Time     `json:"requested_timestamp,omitempty"`
	Justification      string         `json:"justification,omitempty"`
}

// EligibilityResult is the output of the submission-window policy.
type EligibilityResult struct {
	Allowed            bool            `json:"allowed"`
	Classification     Classification  `json:"classification"`
	EffectiveTimestamp time.Time       `json:"effective_timestamp,omitempty"`
	Window             *OverrideWindow `json:"window,omitempty"`
	WindowBounds       []WindowBounds  `json:"window_bounds,omitempty"`
	Reason             string          `json:"reason,omitempty"`
}
