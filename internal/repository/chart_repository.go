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

// ChartRepository manages persistence for nightly chart entries.
type ChartRepository struct {
	db *sqlx.DB
}

// NewChartRepository constructs a new repository.
func NewChartRepository(db *sqlx.DB) *ChartRepository {
	return &ChartRepository{db: db}
}

const chartColumns = `id, patient_id, recorded_by, entry_time, category, observation, late, justification, created_at, updated_at`

// List returns chart entries per provided filter.
func (r *ChartRepository) List(ctx context.Context, filter models.ChartEntryFilter) ([]models.ChartEntry, int, error) {
	base := "FROM chart_entries"
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
	if filter.Category != nil {
		where = append(where, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, *filter.Category)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("entry_time >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("entry_time <= $%d", len(args)+1))
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
	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY entry_time DESC, created_at DESC LIMIT %d OFFSET %d`, chartColumns, base, whereClause, size, offset)
	var entries []models.ChartEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list chart entries: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count chart entries: %w", err)
	}
	return entries, total, nil
}

// Create inserts a new chart entry.
func (r *ChartRepository) Create(ctx context.Context, entry *models.ChartEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	query := `INSERT INTO chart_entries (id, patient_id, recorded_by, entry_time, category, observation, late, justification, created_at, updated_at)
VALUES (:id, :patient_id, :recorded_by, :entry_time, :category, :observation, :late, :justification, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create chart entry: %w", err)
	}
	return nil
}

// CountSince returns the number of entries with entry_time at or after the cutoff.
func (r *ChartRepository) CountSince(ctx context.Context, cutoff time.Time) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM chart_entries WHERE entry_time >= $1", cutoff); err != nil {
		return 0, fmt.Errorf("count chart entries since: %w", err)
	}
	return total, nil
}

// CountLateSince returns the number of override-classified entries recorded
// at or after the cutoff.
func (r *ChartRepository) CountLateSince(ctx context.Context, cutoff time.Time) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM chart_entries WHERE late = TRUE AND entry_time >= $1", cutoff); err != nil {
		return 0, fmt.Errorf("count late chart entries: %w", err)
	}
	return total, nil
}
