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

// MedicationRepository provides database access for medication orders.
type MedicationRepository struct {
	db *sqlx.DB
}

// NewMedicationRepository creates a new instance of MedicationRepository.
func NewMedicationRepository(db *sqlx.DB) *MedicationRepository {
	return &MedicationRepository{db: db}
}

const medicationColumns = `id, patient_id, name, dosage, frequency, route, prescribed_by, start_date, end_date, active, notes, created_at, updated_at`

// FindByID returns a medication order by identifier.
func (r *MedicationRepository) FindByID(ctx context.Context, id string) (*models.Medication, error) {
	query := fmt.Sprintf("SELECT %s FROM medications WHERE id = $1 LIMIT 1", medicationColumns)
	var med models.Medication
	if err := r.db.GetContext(ctx, &med, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find medication by id: %w", err)
	}
	return &med, nil
}

// List returns medication orders per provided filter.
func (r *MedicationRepository) List(ctx context.Context, filter models.MedicationFilter) ([]models.Medication, int, error) {
	base := "FROM medications"
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.PatientID != "" {
		where = append(where, fmt.Sprintf("patient_id = $%d", len(args)+1))
		args = append(args, filter.PatientID)
	}
	if filter.Active != nil {
		where = append(where, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	whereClause := strings.Join(where, " AND ")
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size
	query := fmt.Sprintf("SELECT %s %s WHERE %s ORDER BY active DESC, start_date DESC LIMIT %d OFFSET %d", medicationColumns, base, whereClause, size, offset)
	var meds []models.Medication
	if err := r.db.SelectContext(ctx, &meds, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list medications: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count medications: %w", err)
	}
	return meds, total, nil
}

// Create inserts a new medication order.
func (r *MedicationRepository) Create(ctx context.Context, med *models.Medication) error {
	if med.ID == "" {
		med.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if med.CreatedAt.IsZero() {
		med.CreatedAt = now
	}
	med.UpdatedAt = now
	const query = `INSERT INTO medications (id, patient_id, name, dosage, frequency, route, prescribed_by, start_date, end_date, active, notes, created_at, updated_at)
VALUES (:id, :patient_id, :name, :dosage, :frequency, :route, :prescribed_by, :start_date, :end_date, :active, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, med); err != nil {
		return fmt.Errorf("create medication: %w", err)
	}
	return nil
}

// Update updates mutable fields of a medication order.
func (r *MedicationRepository) Update(ctx context.Context, med *models.Medication) error {
	med.UpdatedAt = time.Now().UTC()
	const query = `UPDATE medications SET name = :name, dosage = :dosage, frequency = :frequency, route = :route, end_date = :end_date, active = :active, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, med); err != nil {
		return fmt.Errorf("update medication: %w", err)
	}
	return nil
}

// Discontinue closes an order by setting its end date and clearing the active flag.
func (r *MedicationRepository) Discontinue(ctx context.Context, id string, endDate time.Time) error {
	const query = `UPDATE medications SET active = FALSE, end_date = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, endDate, time.Now().UTC()); err != nil {
		return fmt.Errorf("discontinue medication: %w", err)
	}
	return nil
}
