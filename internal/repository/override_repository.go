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

// OverrideRepository manages persistence for late-submission override windows.
// Windows are append-only: there is no update or delete, expiry is implicit.
type OverrideRepository struct {
	db *sqlx.DB
}

// NewOverrideRepository constructs a new repository.
func NewOverrideRepository(db *sqlx.DB) *OverrideRepository {
	return &OverrideRepository{db: db}
}

const overrideColumns = `id, patient_id, kind, granted_to, granted_by, start_at, duration_minutes, reason, created_at`

// ListActive returns windows for (patient, kind, staff) whose closed interval
// [start_at, start_at + duration] contains asOf, most recently started first.
func (r *OverrideRepository) ListActive(ctx context.Context, patientID string, kind models.SubmissionKind, staffID string, asOf time.Time) ([]models.OverrideWindow, error) {
	query := fmt.Sprintf(`SELECT %s FROM override_windows
WHERE patient_id = $1 AND kind = $2 AND granted_to = $3
  AND start_at <= $4
  AND start_at + (duration_minutes * INTERVAL '1 minute') >= $4
ORDER BY start_at DESC`, overrideColumns)
	var windows []models.OverrideWindow
	if err := r.db.SelectContext(ctx, &windows, query, patientID, kind, staffID, asOf); err != nil {
		return nil, fmt.Errorf("list active overrides: %w", err)
	}
	return windows, nil
}

// List returns override windows per provided filter with a total count.
func (r *OverrideRepository) List(ctx context.Context, filter models.OverrideWindowFilter) ([]models.OverrideWindow, int, error) {
	base := "FROM override_windows"
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.PatientID != "" {
		where = append(where, fmt.Sprintf("patient_id = $%d", len(args)+1))
		args = append(args, filter.PatientID)
	}
	if filter.Kind != nil {
		where = append(where, fmt.Sprintf("kind = $%d", len(args)+1))
		args = append(args, *filter.Kind)
	}
	if filter.GrantedTo != "" {
		where = append(where, fmt.Sprintf("granted_to = $%d", len(args)+1))
		args = append(args, filter.GrantedTo)
	}
	if filter.ActiveAt != nil {
		where = append(where, fmt.Sprintf("start_at <= $%d AND start_at + (duration_minutes * INTERVAL '1 minute') >= $%d", len(args)+1, len(args)+1))
		args = append(args, *filter.ActiveAt)
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
	query := fmt.Sprintf("SELECT %s %s WHERE %s ORDER BY start_at DESC LIMIT %d OFFSET %d", overrideColumns, base, whereClause, size, offset)
	var windows []models.OverrideWindow
	if err := r.db.SelectContext(ctx, &windows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list overrides: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count overrides: %w", err)
	}
	return windows, total, nil
}

// Create inserts a new override window.
func (r *OverrideRepository) Create(ctx context.Context, window *models.OverrideWindow) error {
	if window.ID == "" {
		window.ID = uuid.NewString()
	}
	if window.CreatedAt.IsZero() {
		window.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO override_windows (id, patient_id, kind, granted_to, granted_by, start_at, duration_minutes, reason, created_at)
VALUES (:id, :patient_id, :kind, :granted_to, :granted_by, :start_at, :duration_minutes, :reason, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, window); err != nil {
		return fmt.Errorf("create override window: %w", err)
	}
	return nil
}

// CountActive returns the number of windows active at asOf across all patients.
func (r *OverrideRepository) CountActive(ctx context.Context, asOf time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM override_windows
WHERE start_at <= $1 AND start_at + (duration_minutes * INTERVAL '1 minute') >= $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, asOf); err != nil {
		return 0, fmt.Errorf("count active overrides: %w", err)
	}
	return total, nil
}
