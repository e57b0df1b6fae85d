package models

import "time"

// AssessmentType classifies periodic care assessments.
type AssessmentType string

const (
	AssessmentMobility  AssessmentType = "MOBILITY"
	AssessmentCognitive AssessmentType = "COGNITIVE"
	AssessmentNutrition AssessmentType = "NUTRITION"
	AssessmentGeneral   AssessmentType = "GENERAL"
)

// Valid returns true when the type is supported.
func (t AssessmentType) Valid() bool {
	switch t {
	case AssessmentMobility, AssessmentCognitive, AssessmentNutrition, AssessmentGeneral:
		return true
	default:
		return false
	}
}

// Assessment captures a periodic care assessment for a resident.
type Assessment struct {
	ID         string         `db:"id" json:"id"`
	PatientID  string         `db:"patient_id" json:"patient_id"`
	AssessedBy string         `db:"assessed_by" json:"assessed_by"`
	Type       AssessmentType `db:"type" json:"type"`
	Score      *int           `db:"score" json:"score,omitempty"`
	Summary    string         `db:"summary" json:"summary"`
	AssessedAt time.Time      `db:"assessed_at" json:"assessed_at"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// AssessmentFilter scopes assessment listing queries.
type AssessmentFilter struct {
	PatientID string
	Type      *AssessmentType
	Page      int
	PageSize  int
}
