package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/carebridge-api/internal/models"
)

func newOverrideRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestOverrideRepositoryListActive(t *testing.T) {
	db, mock, cleanup := newOverrideRepoMock(t)
	defer cleanup()

	repo := NewOverrideRepository(db)
	now := time.Date(2026, 8, 28, 20, 15, 0, 0, time.UTC)
	start := now.Add(-45 * time.Minute)
	rows := sqlmock.NewRows([]string{"id", "patient_id", "kind", "granted_to", "granted_by", "start_at", "duration_minutes", "reason", "created_at"}).
		AddRow("win-1", "patient-1", "WEEKLY_UPDATE", "staff-1", "lead-1", start, 120, "system outage", start)
	mock.ExpectQuery("SELECT (.+) FROM override_windows").
		WithArgs("patient-1", "WEEKLY_UPDATE", "staff-1", now).
		WillReturnRows(rows)

	windows, err := repo.ListActive(context.Background(), "patient-1", models.KindWeeklyUpdate, "staff-1", now)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, "win-1", windows[0].ID)
	assert.Equal(t, start.Add(2*time.Hour), windows[0].End())
}

func TestOverrideRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newOverrideRepoMock(t)
	defer cleanup()

	repo := NewOverrideRepository(db)
	mock.ExpectExec("INSERT INTO override_windows").
		WithArgs(sqlmock.AnyArg(), "patient-1", "CHART_ENTRY", "staff-1", "lead-1", sqlmock.AnyArg(), 60, "family emergency coverage", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	window := &models.OverrideWindow{
		PatientID:       "patient-1",
		Kind:            models.KindChartEntry,
		GrantedTo:       "staff-1",
		GrantedBy:       "lead-1",
		StartAt:         time.Now().UTC(),
		DurationMinutes: 60,
		Reason:          "family emergency coverage",
	}
	require.NoError(t, repo.Create(context.Background(), window))
	assert.NotEmpty(t, window.ID)
}

func TestOverrideRepositoryCountActive(t *testing.T) {
	db, mock, cleanup := newOverrideRepoMock(t)
	defer cleanup()

	repo := NewOverrideRepository(db)
	asOf := time.Now().UTC()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM override_windows").
		WithArgs(asOf).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	total, err := repo.CountActive(context.Background(), asOf)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}
