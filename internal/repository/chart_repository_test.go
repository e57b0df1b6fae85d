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

func newChartRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestChartRepositoryList(t *testing.T) {
	db, mock, cleanup := newChartRepoMock(t)
	defer cleanup()

	repo := NewChartRepository(db)
	entryTime := time.Date(2026, 8, 27, 20, 30, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "patient_id", "recorded_by", "entry_time", "category", "observation", "late", "justification", "created_at", "updated_at"}).
		AddRow("entry-1", "patient-1", "staff-1", entryTime, "BEHAVIOR", "settled after dinner", false, nil, entryTime, entryTime)
	mock.ExpectQuery("SELECT (.+) FROM chart_entries").
		WithArgs("patient-1").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM chart_entries").
		WithArgs("patient-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	entries, total, err := repo.List(context.Background(), models.ChartEntryFilter{PatientID: "patient-1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, models.ChartBehavior, entries[0].Category)
	assert.False(t, entries[0].Late)
}

func TestChartRepositoryCreateLateEntry(t *testing.T) {
	db, mock, cleanup := newChartRepoMock(t)
	defer cleanup()

	repo := NewChartRepository(db)
	mock.ExpectExec("INSERT INTO chart_entries").
		WithArgs(sqlmock.AnyArg(), "patient-1", "staff-1", sqlmock.AnyArg(), "INCIDENT", "fall near dayroom", true, "charting system offline overnight", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	justification := "charting system offline overnight"
	entry := &models.ChartEntry{
		PatientID:     "patient-1",
		RecordedBy:    "staff-1",
		EntryTime:     time.Now().UTC(),
		Category:      models.ChartIncident,
		Observation:   "fall near dayroom",
		Late:          true,
		Justification: &justification,
	}
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
}
