package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/carebridge/carebridge-api/internal/models"
	appErrors "github.com/carebridge/carebridge-api/pkg/errors"
)

type stubPatientRepository struct {
	patients map[string]*models.Patient
	created  *models.Patient
}

func newStubPatientRepository() *stubPatientRepository {
	return &stubPatientRepository{patients: map[string]*models.Patient{}}
}

func (s *stubPatientRepository) FindByID(_ context.Context, id string) (*models.Patient, error) {
	patient, ok := s.patients[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return patient, nil
}

func (s *stubPatientRepository) List(_ context.Context, _ models.PatientFilter) ([]models.Patient, int, error) {
	out := make([]models.Patient, 0, len(s.patients))
	for _, p := range s.patients {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (s *stubPatientRepository) Create(_ context.Context, patient *models.Patient) error {
	patient.ID = "patient-new"
	s.patients[patient.ID] = patient
	s.created = patient
	return nil
}

func (s *stubPatientRepository) Update(_ context.Context, patient *models.Patient) error {
	s.patients[patient.ID] = patient
	return nil
}

func (s *stubPatientRepository) Deactivate(_ context.Context, id string) error {
	if patient, ok := s.patients[id]; ok {
		patient.Active = false
	}
	return nil
}

func (s *stubPatientRepository) Counts(_ context.Context) (int, int, error) {
	active := 0
	for _, p := range s.patients {
		if p.Active {
			active++
		}
	}
	return len(s.patients), active, nil
}

func TestPatientCreateActivatesAndAudits(t *testing.T) {
	repo := newStubPatientRepository()
	audit := &stubAuditLogger{}
	svc := NewPatientService(repo, audit, nil, zap.NewNop())

	patient, err := svc.Create(context.Background(), CreatePatientRequest{
		FirstName:   "Marta",
		LastName:    "Keller",
		DateOfBirth: time.Date(1941, 3, 12, 0, 0, 0, 0, time.UTC),
		RoomNumber:  "12B",
		AdmittedAt:  time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}, &models.JWTClaims{UserID: "admin-1"})

	require.NoError(t, err)
	assert.True(t, patient.Active)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionPatientCreate, audit.logs[0].Action)
}

func TestPatientCreateMissingFields(t *testing.T) {
	svc := NewPatientService(newStubPatientRepository(), nil, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), CreatePatientRequest{FirstName: "Marta"}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPatientDeactivateKeepsRecord(t *testing.T) {
	repo := newStubPatientRepository()
	repo.patients["patient-1"] = &models.Patient{ID: "patient-1", Active: true}
	svc := NewPatientService(repo, nil, nil, zap.NewNop())

	require.NoError(t, svc.Deactivate(context.Background(), "patient-1", nil))
	assert.False(t, repo.patients["patient-1"].Active)

	err := svc.Deactivate(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
