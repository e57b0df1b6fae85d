package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/carebridge/carebridge-api/internal/models"
	"github.com/carebridge/carebridge-api/internal/service"
	appErrors "github.com/carebridge/carebridge-api/pkg/errors"
	"github.com/carebridge/carebridge-api/pkg/response"
)

type chartService interface {
	List(ctx context.Context, req service.ChartListRequest) ([]models.ChartEntry, *models.Pagination, error)
	Create(ctx context.Context, req service.CreateChartEntryRequest, actor *models.JWTClaims) (*models.ChartEntry, error)
}

// ChartHandler exposes nightly chart entry endpoints.
type ChartHandler struct {
	charts chartService
}

// NewChartHandler constructs ChartHandler.
func NewChartHandler(charts chartService) *ChartHandler {
	return &ChartHandler{charts: charts}
}

// List godoc
// @Summary List chart entries
// @Tags Charts
// @Produce json
// @Param patientId query string false "Filter by resident"
// @Param recordedBy query string false "Filter by staff member"
// @Param category query string false "Filter by category"
// @Param from query string false "From (RFC3339 or YYYY-MM-DD)"
// @Param to query string false "To (RFC3339 or YYYY-MM-DD)"
// @Param late query bool false "Only late submissions"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /charts [get]
func (h *ChartHandler) List(c *gin.Context) {
	var req service.ChartListRequest
	req.PatientID = c.Query("patientId")
	req.RecordedBy = c.Query("recordedBy")
	req.Category = c.Query("category")
	req.LateOnly = c.Query("late") == "true"
	from, ok := parseTimeQuery(strings.TrimSpace(c.Query("from")))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid from date"))
		return
	}
	to, ok := parseTimeQuery(strings.TrimSpace(c.Query("to")))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid to date"))
		return
	}
	req.DateFrom = from
	req.DateTo = to
	req.Page, req.PageSize = pageParams(c)

	entries, pagination, err := h.charts.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

// Create godoc
// @Summary Submit chart entry
// @Description Records a nightly chart entry. Outside the nightly window the
// @Description submission is denied unless an override window covers it.
// @Tags Charts
// @Accept json
// @Produce json
// @Param payload body service.CreateChartEntryRequest true "Chart entry payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /charts [post]
func (h *ChartHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateChartEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, err := h.charts.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}
