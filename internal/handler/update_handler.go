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

type updateService interface {
	List(ctx context.Context, req service.UpdateListRequest) ([]models.ResidentUpdate, *models.Pagination, error)
	Create(ctx context.Context, req service.CreateUpdateRequest, actor *models.JWTClaims) (*models.ResidentUpdate, error)
}

// UpdateHandler exposes weekly and monthly resident update endpoints.
type UpdateHandler struct {
	updates updateService
}

// NewUpdateHandler constructs UpdateHandler.
func NewUpdateHandler(updates updateService) *UpdateHandler {
	return &UpdateHandler{updates: updates}
}

// List godoc
// @Summary List resident updates
// @Tags Updates
// @Produce json
// @Param patientId query string false "Filter by resident"
// @Param recordedBy query string false "Filter by staff member"
// @Param period query string false "WEEKLY or MONTHLY"
// @Param from query string false "From (RFC3339 or YYYY-MM-DD)"
// @Param to query string false "To (RFC3339 or YYYY-MM-DD)"
// @Param late query bool false "Only late submissions"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /updates [get]
func (h *UpdateHandler) List(c *gin.Context) {
	var req service.UpdateListRequest
	req.PatientID = c.Query("patientId")
	req.RecordedBy = c.Query("recordedBy")
	req.Period = c.Query("period")
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

	updates, pagination, err := h.updates.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updates, pagination)
}

// Create godoc
// @Summary Submit resident update
// @Description Records a weekly or monthly update. Outside the period's window
// @Description the submission is denied unless an override window covers it.
// @Tags Updates
// @Accept json
// @Produce json
// @Param payload body service.CreateUpdateRequest true "Update payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /updates [post]
func (h *UpdateHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	update, err := h.updates.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, update)
}
