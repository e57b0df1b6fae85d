package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/carebridge/carebridge-api/internal/models"
	"github.com/carebridge/carebridge-api/internal/repository"
	appErrors "github.com/carebridge/carebridge-api/pkg/errors"
	"github.com/carebridge/carebridge-api/pkg/jobs"
)

type stubReportStore struct {
	jobs    map[string]*models.ReportJob
	updates []repository.UpdateReportJobParams
}

func newStubReportStore() *stubReportStore {
	return &stubReportStore{jobs: map[string]*models.ReportJob{}}
}

func (s *stubReportStore) Create(_ context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = "job-1"
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *stubReportStore) GetByID(_ context.Context, id string) (*models.ReportJob, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return job, nil
}

func (s *stubReportStore) Update(_ context.Context, id string, params repository.UpdateReportJobParams) error {
	s.updates = append(s.updates, params)
	if job, ok := s.jobs[id]; ok {
		if params.Status != nil {
			job.Status = *params.Status
		}
		if params.Progress != nil {
			job.Progress = *params.Progress
		}
		if params.ResultURL != nil {
			job.ResultURL = params.ResultURL
		}
		if params.ErrorMessage != nil {
			job.ErrorMessage = params.ErrorMessage
		}
	}
	return nil
}

func (s *stubReportStore) ListQueued(_ context.Context, _ int) ([]models.ReportJob, error) {
	queued := make([]models.ReportJob, 0)
	for _, job := range s.jobs {
		if job.Status == models.ReportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (s *stubReportStore) ListFinishedBefore(_ context.Context, _ time.Time, _ int) ([]models.ReportJob, error) {
	return nil, nil
}

type stubDispatcher struct {
	enqueued []jobs.Job
	err      error
}

func (s *stubDispatcher) Enqueue(job jobs.Job) error {
	if s.err != nil {
		return s.err
	}
	s.enqueued = append(s.enqueued, job)
	return nil
}

func TestReportCreateJobEnqueues(t *testing.T) {
	store := newStubReportStore()
	dispatcher := &stubDispatcher{}
	svc := NewReportService(store, dispatcher, nil, zap.NewNop(), ReportServiceConfig{})

	resp, err := svc.CreateJob(context.Background(), ReportRequest{
		Type:   models.ReportTypeLateSubmissions,
		Format: models.ReportFormatCSV,
	}, "admin-1", models.RoleAdmin)

	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	require.Len(t, dispatcher.enqueued, 1)
	assert.Equal(t, resp.ID, dispatcher.enqueued[0].ID)
}

func TestReportCreateJobRejectsUnknownType(t *testing.T) {
	svc := NewReportService(newStubReportStore(), &stubDispatcher{}, nil, zap.NewNop(), ReportServiceConfig{})

	_, err := svc.CreateJob(context.Background(), ReportRequest{
		Type:   "census",
		Format: models.ReportFormatCSV,
	}, "admin-1", models.RoleAdmin)

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReportCreateJobCaregiverNeedsPatientScope(t *testing.T) {
	svc := NewReportService(newStubReportStore(), &stubDispatcher{}, nil, zap.NewNop(), ReportServiceConfig{})

	_, err := svc.CreateJob(context.Background(), ReportRequest{
		Type:   models.ReportTypeChartActivity,
		Format: models.ReportFormatPDF,
	}, "staff-1", models.RoleCaregiver)

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	patientID := "patient-1"
	_, err = svc.CreateJob(context.Background(), ReportRequest{
		Type:      models.ReportTypeChartActivity,
		Format:    models.ReportFormatPDF,
		PatientID: &patientID,
	}, "staff-1", models.RoleCaregiver)
	require.NoError(t, err)
}

func TestReportGetStatusCaregiverOwnership(t *testing.T) {
	store := newStubReportStore()
	store.jobs["job-1"] = &models.ReportJob{ID: "job-1", Status: models.ReportStatusFinished, CreatedBy: "staff-1"}
	svc := NewReportService(store, &stubDispatcher{}, nil, zap.NewNop(), ReportServiceConfig{})

	_, err := svc.GetStatus(context.Background(), "job-1", "staff-2", models.RoleCaregiver)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	resp, err := svc.GetStatus(context.Background(), "job-1", "staff-2", models.RoleLead)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFinished, resp.Status)
}

func TestReportRecoverPendingJobsRequeues(t *testing.T) {
	store := newStubReportStore()
	store.jobs["job-1"] = &models.ReportJob{ID: "job-1", Status: models.ReportStatusQueued}
	store.jobs["job-2"] = &models.ReportJob{ID: "job-2", Status: models.ReportStatusFinished}
	dispatcher := &stubDispatcher{}
	svc := NewReportService(store, dispatcher, nil, zap.NewNop(), ReportServiceConfig{})

	svc.RecoverPendingJobs(context.Background())
	require.Len(t, dispatcher.enqueued, 1)
	assert.Equal(t, "job-1", dispatcher.enqueued[0].ID)
}

type failingGenerator struct{ err error }

func (f *failingGenerator) Generate(_ context.Context, _ *models.ReportJob) (*ExportResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ExportResult{URL: "/api/v1/export/tok"}, nil
}

func TestReportWorkerMarksFinished(t *testing.T) {
	store := newStubReportStore()
	store.jobs["job-1"] = &models.ReportJob{ID: "job-1", Status: models.ReportStatusQueued}
	worker := NewReportWorker(store, &failingGenerator{}, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFinished, store.jobs["job-1"].Status)
	require.NotNil(t, store.jobs["job-1"].ResultURL)
}

func TestReportWorkerRequeuesUntilMaxRetries(t *testing.T) {
	store := newStubReportStore()
	store.jobs["job-1"] = &models.ReportJob{ID: "job-1", Status: models.ReportStatusProcessing}
	worker := NewReportWorker(store, &failingGenerator{err: assert.AnError}, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.Error(t, err)
	assert.Equal(t, models.ReportStatusQueued, store.jobs["job-1"].Status)

	err = worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 3})
	require.Error(t, err)
	assert.Equal(t, models.ReportStatusFailed, store.jobs["job-1"].Status)
}
