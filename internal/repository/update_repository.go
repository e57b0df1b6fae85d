package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/carebridge/carebridge-api/internal/models"
)

// UpdateRepository manages persistence for weekly/monthly resident updates.
type UpdateRepository struct {
	db *sqlx.DB
}

// NewUpdateRepository constructs a new repository.
func NewUpdateRepository(db *sqlx.DB) *UpdateRepository {
	return &UpdateRepository{db: db}
}

const updateColumns = `id, patient_id, recorded_by, period, submitted_at, summary, concerns, late, justification, created_at, updated_at`

// List returns resident updates per provided filter.
func (r *UpdateRepository) List(ctx context.Context, filter models.ResidentUpdateFilter) ([]models.ResidentUpdate, int, error) {
	base := "FROM resident_updates"
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.PatientID != "" {
		where = append(where, fmt.Sprintf("patient_id = $%d", len(args)+1))
		args = append(args, filter.PatientID)
	}
	if filter.RecordedBy != "" {
		where = append(where, fmt.Sprintf("recorded_by = $%d", len(args)+1))
		args = append(args, filter.RecordedBy)
	}
	if filter.Period != nil {
		where = append(where, fmt.Sprintf("period = $%d", len(args)+1))
		args = append(args, *filter.Period)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("submitted_at >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("submitted_at <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if filter.LateOnly {
		where = append(where, "late = TRUE")
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
	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY submitted_at DESC, created_at DESC LIMIT %d OFFSET %d`, updateColumns, base, whereClause, size, offset)
	var updates []models.ResidentUpdate
	if err := r.db.SelectContext(ctx, &updates, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list resident updates: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count resident updates: %w", err)
	}
	return updates, total, nil
}

// Create inserts a new resident update.
func (r *UpdateRepository) Create(ctx context.Context, update *models.ResidentUpdate) error {
	if update.ID == "" {
		update.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if update.CreatedAt.IsZero() {
		update.CreatedAt = now
	}
	update.UpdatedAt = now
	query := `INSERT INTO resident_updates (id, patient_id, recorded_by, period, submitted_at, summary, concerns, late, justification, created_at, updated_at)
VALUES (:id, :patient_id, :recorded_by, :period, :submitted_at, :summary, :concerns, :late, :justification, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, update); err != nil {
		return fmt.Errorf("create resident update: %w", err)
	}
	return nil
}

// CountLateSince returns the number of override-classified updates submitted
// at or after the cutoff.
func (r *UpdateRepository) CountLateSince(ctx context.Context, cutoff time.Time) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM resident_updates WHERE late = TRUE AND submitted_at >= $1", cutoff); err != nil {
		return 0, fmt.Errorf("count late resident updates: %w", err)
	}
	return total, nil
}
