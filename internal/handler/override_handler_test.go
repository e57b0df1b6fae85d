package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/carebridge/carebridge-api/internal/models"
	"github.com/carebridge/carebridge-api/internal/service"
	appErrors "github.com/carebridge/carebridge-api/pkg/errors"
)

type fakeOverrideSrv struct {
	windows    []models.OverrideWindow
	created    *models.OverrideWindow
	createErr  error
	lastCreate service.CreateOverrideRequest
	lastList   service.OverrideListRequest
}

func (f *fakeOverrideSrv) List(_ context.Context, req service.OverrideListRequest) ([]models.OverrideWindow, *models.Pagination, error) {
	f.lastList = req
	return f.windows, &models.Pagination{Page: 1, PageSize: 50, TotalCount: len(f.windows)}, nil
}

func (f *fakeOverrideSrv) Create(_ context.Context, req service.CreateOverrideRequest, _ *models.JWTClaims) (*models.OverrideWindow, error) {
	f.lastCreate = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.created, nil
}

func TestOverrideHandlerCreateSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeOverrideSrv{created: &models.OverrideWindow{ID: "win-1", GrantedBy: "admin-1"}}
	handler := NewOverrideHandler(srv)

	body := `{"patient_id":"patient-1","kind":"CHART_ENTRY","granted_to":"staff-1","start_at":"2026-08-28T19:30:00Z","duration_minutes":120,"reason":"shift handover delay"}`
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/overrides", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	withClaims(c, models.RoleAdmin)

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "staff-1", srv.lastCreate.GrantedTo)
	assert.Equal(t, 120, srv.lastCreate.DurationMinutes)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, "win-1", envelope.Data["id"])
}

func TestOverrideHandlerCreateMissingReason(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeOverrideSrv{createErr: appErrors.Clone(appErrors.ErrValidation, "reason is required")}
	handler := NewOverrideHandler(srv)

	body := `{"patient_id":"patient-1","kind":"CHART_ENTRY","granted_to":"staff-1","start_at":"2026-08-28T19:30:00Z","duration_minutes":120}`
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/overrides", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	withClaims(c, models.RoleAdmin)

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, "VALIDATION_ERROR", envelope.Error["code"])
}

func TestOverrideHandlerCreateRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewOverrideHandler(&fakeOverrideSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/overrides", strings.NewReader(`{}`))

	handler.Create(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOverrideHandlerListParsesActiveAt(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeOverrideSrv{}
	handler := NewOverrideHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/overrides?activeAt=2026-08-28T20:00:00Z&kind=CHART_ENTRY", nil)

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	if assert.NotNil(t, srv.lastList.ActiveAt) {
		assert.Equal(t, time.Date(2026, 8, 28, 20, 0, 0, 0, time.UTC), srv.lastList.ActiveAt.UTC())
	}
	assert.Equal(t, "CHART_ENTRY", srv.lastList.Kind)
}
