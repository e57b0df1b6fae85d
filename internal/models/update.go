package models

import "time"

// UpdatePeriod distinguishes weekly from monthly resident updates.
type UpdatePeriod string

const (
	PeriodWeekly  UpdatePeriod = "WEEKLY"
	PeriodMonthly UpdatePeriod = "MONTHLY"
)

// Valid returns true when the period is a supported value.
func (p UpdatePeriod) Valid() bool {
	return p == PeriodWeekly || p == PeriodMonthly
}

// SubmissionKind maps the period to its gating submission kind.
func (p UpdatePeriod) SubmissionKind() SubmissionKind {
	if p == PeriodMonthly {
		return KindMonthlyUpdate
	}
	return KindWeeklyUpdate
}

// ResidentUpdate is a periodic status report for a resident. SubmittedAt is
// the policy's effective timestamp; Late marks reports recorded through an
// override window, in which case Justification is set.
type ResidentUpdate struct {
	ID            string       `db:"id" json:"id"`
	PatientID     string       `db:"patient_id" json:"patient_id"`
	RecordedBy    string       `db:"recorded_by" json:"recorded_by"`
	Period        UpdatePeriod `db:"period" json:"period"`
	SubmittedAt   time.Time    `db:"submitted_at" json:"submitted_at"`
	Summary       string       `db:"summary" json:"summary"`
	Concerns      *string      `db:"concerns" json:"concerns,omitempty"`
	Late          bool         `db:"late" json:"late"`
	Justification *string      `db:"justification" json:"justification,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

// ResidentUpdateFilter allows listing resident updates.
type ResidentUpdateFilter struct {
	PatientID  string
	RecordedBy string
	Period     *UpdatePeriod
	DateFrom   *time.Time
	DateTo     *time.Time
	LateOnly   bool
	Page       int
	PageSize   int
}
