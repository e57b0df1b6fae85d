package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/carebridge/carebridge-api/internal/service"
	appErrors "github.com/carebridge/carebridge-api/pkg/errors"
	"github.com/carebridge/carebridge-api/pkg/response"
)

// VitalsHandler exposes vital sign endpoints.
type VitalsHandler struct {
	vitals *service.VitalsService
}

// NewVitalsHandler constructs VitalsHandler.
func NewVitalsHandler(vitals *service.VitalsService) *VitalsHandler {
	return &VitalsHandler{vitals: vitals}
}

// List godoc
// @Summary List vital sign observations
// @Tags Vitals
// @Produce json
// @Param patientId query string false "Filter by resident"
// @Param from query string false "From (RFC3339 or YYYY-MM-DD)"
// @Param to query string false "To (RFC3339 or YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /vitals [get]
func (h *VitalsHandler) List(c *gin.Context) {
	var req service.VitalsListRequest
	req.PatientID = c.Query("patientId")
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

	vitals, pagination, err := h.vitals.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, vitals, pagination)
}

// Latest godoc
// @Summary Latest observation for a resident
// @Tags Vitals
// @Produce json
// @Param id path string true "Patient ID"
// @Success 200 {object} response.Envelope
// @Router /patients/{id}/vitals/latest [get]
func (h *VitalsHandler) Latest(c *gin.Context) {
	vitals, err := h.vitals.Latest(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, vitals, nil)
}

// Create godoc
// @Summary Record vital signs
// @Tags Vitals
// @Accept json
// @Produce json
// @Param payload body service.CreateVitalsRequest true "Vitals payload"
// @Success 201 {object} response.Envelope
// @Router /vitals [post]
func (h *VitalsHandler) Create(c *gin.Context) {
	var req service.CreateVitalsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	vitals, err := h.vitals.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, vitals)
}
