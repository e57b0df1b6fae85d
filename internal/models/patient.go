package models

import "time"

// Patient represents a resident of the facility.
type Patient struct {
	ID          string    `db:"id" json:"id"`
	FirstName   string    `db:"first_name" json:"first_name"`
	LastName    string    `db:"last_name" json:"last_name"`
	DateOfBirth time.Time `db:"date_of_birth" json:"date_of_birth"`
	RoomNumber  string    `db:"room_number" json:"room_number"`
	AdmittedAt  time.Time `db:"admitted_at" json:"admitted_at"`
	Active      bool      `db:"active" json:"active"`
	Allergies   *string   `db:"allergies" json:"allergies,omitempty"`
	Notes       *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// PatientFilter captures filtering criteria for listing patients.
type PatientFilter struct {
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
