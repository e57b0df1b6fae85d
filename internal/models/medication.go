package models

import "time"

// Medication represents an active or historical medication order for a resident.
type Medication struct {
	ID           string     `db:"id" json:"id"`
	PatientID    string     `db:"patient_id" json:"patient_id"`
	Name         string     `db:"name" json:"name"`
	Dosage       string     `db:"dosage" json:"dosage"`
	Frequency    string     `db:"frequency" json:"frequency"`
	Route        string     `db:"route" json:"route"`
	PrescribedBy string     `db:"prescribed_by" json:"prescribed_by"`
	StartDate    time.Time  `db:"start_date" json:"start_date"`
	EndDate      *time.Time `db:"end_date" json:"end_date,omitempty"`
	Active       bool       `db:"active" json:"active"`
	Notes        *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// MedicationFilter scopes medication listing queries.
type MedicationFilter struct {
	PatientID string
	Active    *bool
	Page      int
	PageSize  int
}
