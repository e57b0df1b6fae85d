package models

import "time"

// VitalSigns captures a single vital-sign observation for a resident.
type VitalSigns struct {
	ID               string    `db:"id" json:"id"`
	PatientID        string    `db:"patient_id" json:"patient_id"`
	RecordedBy       string    `db:"recorded_by" json:"recorded_by"`
	RecordedAt       time.Time `db:"recorded_at" json:"recorded_at"`
	TemperatureC     float64   `db:"temperature_c" json:"temperature_c"`
	SystolicBP       int       `db:"systolic_bp" json:"systolic_bp"`
	DiastolicBP      int       `db:"diastolic_bp" json:"diastolic_bp"`
	HeartRate        int       `db:"heart_rate" json:"heart_rate"`
	RespiratoryRate  int       `db:"respiratory_rate" json:"respiratory_rate"`
	OxygenSaturation int       `db:"oxygen_saturation" json:"oxygen_saturation"`
	Notes            *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// VitalsFilter scopes vitals listing queries.
type VitalsFilter struct {
	PatientID string
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}
