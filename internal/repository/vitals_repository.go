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

// VitalsRepository provides database access for vital-sign observations.
type VitalsRepository struct {
	db *sqlx.DB
}

// NewVitalsRepository creates a new instance of VitalsRepository.
func NewVitalsRepository(db *sqlx.DB) *VitalsRepository {
	return &VitalsRepository{db: db}
}

const vitalsColumns = `id, patient_id, recorded_by, recorded_at, temperature_c, systolic_bp, diastolic_bp, heart_rate, respiratory_rate, oxygen_saturation, notes, created_at`

// List returns vitals per provided filter.
func (r *VitalsRepository) List(ctx context.Context, filter models.VitalsFilter) ([]models.VitalSigns, int, error) {
	base := "FROM vital_signs"
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.PatientID != "" {
		where = append(where, fmt.Sprintf("patient_id = $%d", len(args)+1))
		args = append(args, filter.PatientID)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("recorded_at >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("recorded_at <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
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
	query := fmt.Sprintf("SELECT %s %s WHERE %s ORDER BY recorded_at DESC LIMIT %d OFFSET %d", vitalsColumns, base, whereClause, size, offset)
	var vitals []models.VitalSigns
	if err := r.db.SelectContext(ctx, &vitals, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list vitals: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count vitals: %w", err)
	}
	return vitals, total, nil
}

// Latest returns the most recent observation for a patient.
func (r *VitalsRepository) Latest(ctx context.Context, patientID string) (*models.VitalSigns, error) {
	query := fmt.Sprintf("SELECT %s FROM vital_signs WHERE patient_id = $1 ORDER BY recorded_at DESC LIMIT 1", vitalsColumns)
	var vs models.VitalSigns
	if err := r.db.GetContext(ctx, &vs, query, patientID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("latest vitals: %w", err)
	}
	return &vs, nil
}

// Create inserts a new vital-sign observation.
func (r *VitalsRepository) Create(ctx context.Context, vs *models.VitalSigns) error {
	if vs.ID == "" {
		vs.ID = uuid.NewString()
	}
	if vs.CreatedAt.IsZero() {
		vs.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO vital_signs (id, patient_id, recorded_by, recorded_at, temperature_c, systolic_bp, diastolic_bp, heart_rate, respiratory_rate, oxygen_saturation, notes, created_at)
VALUES (:id, :patient_id, :recorded_by, :recorded_at, :temperature_c, :systolic_bp, :diastolic_bp, :heart_rate, :respiratory_rate, :oxygen_saturation, :notes, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, vs); err != nil {
		return fmt.Errorf("create vitals: %w", err)
	}
	return nil
}
