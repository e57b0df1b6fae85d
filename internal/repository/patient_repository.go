package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/carebridge/carebridge-api/internal/models"
)

// PatientRepository provides database access for resident records.
type PatientRepository struct {
	db *sqlx.DB
}

// NewPatientRepository creates a new instance of PatientRepository.
func NewPatientRepository(db *sqlx.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

const patientColumns = `id, first_name, last_name, date_of_birth, room_number, admitted_at, active, allergies, notes, created_at, updated_at`

// FindByID returns a patient by identifier.
func (r *PatientRepository) FindByID(ctx context.Context, id string) (*models.Patient, error) {
	query := fmt.Sprintf("SELECT %s FROM patients WHERE id = $1 LIMIT 1", patientColumns)
	var patient models.Patient
	if err := r.db.GetContext(ctx, &patient, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find patient by id: %w", err)
	}
	return &patient, nil
}

// List returns patients based on filters with total count.
func (r *PatientRepository) List(ctx context.Context, filter models.PatientFilter) ([]models.Patient, int, error) {
	baseQuery := `FROM patients WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(first_name) LIKE $%d OR LOWER(last_name) LIKE $%d OR room_number = $%d)", len(args)+1, len(args)+1, len(args)+2))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%", filter.Search)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"last_name":   true,
		"room_number": true,
		"admitted_at": true,
		"created_at":  true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "last_name"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", patientColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var patients []models.Patient
	if err := r.db.SelectContext(ctx, &patients, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	return patients, total, nil
}

// Create inserts a new patient record.
func (r *PatientRepository) Create(ctx context.Context, patient *models.Patient) error {
	if patient.ID == "" {
		patient.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if patient.CreatedAt.IsZero() {
		patient.CreatedAt = now
	}
	patient.UpdatedAt = now

	const query = `INSERT INTO patients (id, first_name, last_name, date_of_birth, room_number, admitted_at, active, allergies, notes, created_at, updated_at)
VALUES (:id, :first_name, :last_name, :date_of_birth, :room_number, :admitted_at, :active, :allergies, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, patient); err != nil {
		return fmt.Errorf("create patient: %w", err)
	}
	return nil
}

// Update updates mutable fields of a patient record.
func (r *PatientRepository) Update(ctx context.Context, patient *models.Patient) error {
	patient.UpdatedAt = time.Now().UTC()
	const query = `UPDATE patients SET first_name = :first_name, last_name = :last_name, room_number = :room_number, active = :active, allergies = :allergies, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, patient); err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	return nil
}

// Deactivate performs a soft delete by marking the patient inactive.
func (r *PatientRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE patients SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate patient: %w", err)
	}
	return nil
}

// Counts returns total and active patient counts.
func (r *PatientRepository) Counts(ctx context.Context) (total int, active int, err error) {
	if err = r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM patients"); err != nil {
		return 0, 0, fmt.Errorf("count patients: %w", err)
	}
	if err = r.db.GetContext(ctx, &active, "SELECT COUNT(*) FROM patients WHERE active = TRUE"); err != nil {
		return 0, 0, fmt.Errorf("count active patients: %w", err)
	}
	return total, active, nil
}
