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

	"github.com/carebridge/carebridge-api/internal/middleware"
	"github.com/carebridge/carebridge-api/internal/models"
	"github.com/carebridge/carebridge-api/internal/service"
	appErrors "github.com/carebridge/carebridge-api/pkg/errors"
)

type responseEnvelope struct {
	Data  map[string]interface{} `json:"data"`
	Error map[string]interface{} `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

type fakeChartSrv struct {
	entries    []models.ChartEntry
	created    *models.ChartEntry
	createErr  error
	lastCreate service.CreateChartEntryRequest
}

func (f *fakeChartSrv) List(context.Context, service.ChartListRequest) ([]models.ChartEntry, *models.Pagination, error) {
	return f.entries, &models.Pagination{Page: 1, PageSize: 50, TotalCount: len(f.entries)}, nil
}

func (f *fakeChartSrv) Create(_ context.Context, req service.CreateChartEntryRequest, _ *models.JWTClaims) (*models.ChartEntry, error) {
	f.lastCreate = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.created, nil
}

func withClaims(c *gin.Context, role models.UserRole) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "staff-1", Role: role})
}

func TestChartHandlerCreateRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewChartHandler(&fakeChartSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/charts", strings.NewReader(`{}`))

	handler.Create(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChartHandlerCreateSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeChartSrv{created: &models.ChartEntry{ID: "entry-1", PatientID: "patient-1"}}
	handler := NewChartHandler(srv)

	body := `{"patient_id":"patient-1","category":"BEHAVIOR","observation":"calm evening"}`
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/charts", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	withClaims(c, models.RoleCaregiver)

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "patient-1", srv.lastCreate.PatientID)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, "entry-1", envelope.Data["id"])
}

func TestChartHandlerCreateWindowClosed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeChartSrv{createErr: appErrors.Clone(appErrors.ErrWindowClosed, "chart entries open 19:00-22:00")}
	handler := NewChartHandler(srv)

	body := `{"patient_id":"patient-1","category":"BEHAVIOR","observation":"late note"}`
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/charts", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	withClaims(c, models.RoleCaregiver)

	handler.Create(c)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, "SUBMISSION_WINDOW_CLOSED", envelope.Error["code"])
}

func TestChartHandlerListRejectsBadDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewChartHandler(&fakeChartSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/charts?from=yesterday", nil)

	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChartHandlerListSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeChartSrv{entries: []models.ChartEntry{{ID: "entry-1", EntryTime: time.Now().UTC()}}}
	handler := NewChartHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/charts?late=true&from=2026-08-01", nil)

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
}
