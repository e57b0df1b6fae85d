package models

import "time"

// AppointmentStatus represents the lifecycle state of an appointment.
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "SCHEDULED"
	AppointmentCompleted AppointmentStatus = "COMPLETED"
	AppointmentCancelled AppointmentStatus = "CANCELLED"
)

// Valid returns true when the status is a supported value.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentScheduled, AppointmentCompleted, AppointmentCancelled:
		return true
	default:
		return false
	}
}

// Appointment represents a scheduled visit or treatment for a resident.
type Appointment struct {
	ID              string            `db:"id" json:"id"`
	PatientID       string            `db:"patient_id" json:"patient_id"`
	Title           string            `db:"title" json:"title"`
	Provider        string            `db:"provider" json:"provider"`
	Location        string            `db:"location" json:"location"`
	ScheduledAt     time.Time         `db:"scheduled_at" json:"scheduled_at"`
	DurationMinutes int               `db:"duration_minutes" json:"duration_minutes"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Notes           *string           `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

// AppointmentFilter scopes appointment listing queries.
type AppointmentFilter struct {
	PatientID string
	Status    *AppointmentStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}
