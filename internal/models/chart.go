package models

import "time"

// ChartCategory classifies a nightly chart observation.
type ChartCategory string

const (
	ChartBehavior ChartCategory = "BEHAVIOR"
	ChartSleep    ChartCategory = "SLEEP"
	ChartMeal     ChartCategory = "MEAL"
	ChartIncident ChartCategory = "INCIDENT"
	ChartGeneral  ChartCategory = "GENERAL"
)

// Valid returns true when the category is a supported value.
func (c ChartCategory) Valid() bool {
	switch c {
	case ChartBehavior, ChartSleep, ChartMeal, ChartIncident, ChartGeneral:
		return true
	default:
		return false
	}
}

// ChartEntry is a nightly behavioral/clinical observation logged for a
// resident. EntryTime is the policy's effective timestamp; Late marks entries
// recorded through an override window, in which case Justification is set.
type ChartEntry struct {
	ID            string        `db:"id" json:"id"`
	PatientID     string        `db:"patient_id" json:"patient_id"`
	RecordedBy    string        `db:"recorded_by" json:"recorded_by"`
	EntryTime     time.Time     `db:"entry_time" json:"entry_time"`
	Category      ChartCategory `db:"category" json:"category"`
	Observation   string        `db:"observation" json:"observation"`
	Late          bool          `db:"late" json:"late"`
	Justification *string       `db:"justification" json:"justification,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// ChartEntryFilter allows listing chart entries.
type ChartEntryFilter struct {
	PatientID  string
	RecordedBy string
	Category   *ChartCategory
	DateFrom   *time.Time
	DateTo     *time.Time
	LateOnly   bool
	Page       int
	PageSize   int
}
