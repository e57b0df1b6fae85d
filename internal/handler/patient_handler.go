package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/carebridge/carebridge-api/internal/service"
	appErrors "github.com/carebridge/carebridge-api/pkg/errors"
	"github.com/carebridge/carebridge-api/pkg/response"
)

// PatientHandler exposes resident roster endpoints.
type PatientHandler struct {
	patients *service.PatientService
}

// NewPatientHandler constructs PatientHandler.
func NewPatientHandler(patients *service.PatientService) *PatientHandler {
	return &PatientHandler{patients: patients}
}

// List godoc
// @Summary List residents
// @Tags Patients
// @Produce json
// @Param search query string false "Search by name or room"
// @Param active query bool false "Filter by active state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /patients [get]
func (h *PatientHandler) List(c *gin.Context) {
	var req service.PatientListRequest
	req.Search = strings.TrimSpace(c.Query("search"))
	if active := c.Query("active"); active != "" {
		if active == "true" {
			v := true
			req.Active = &v
		} else if active == "false" {
			v := false
			req.Active = &v
		}
	}
	req.Page, req.PageSize = pageParams(c)
	req.SortBy = c.Query("sort")
	req.SortOrder = c.Query("order")

	patients, pagination, err := h.patients.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, patients, pagination)
}

// Get godoc
// @Summary Get resident detail
// @Tags Patients
// @Produce json
// @Param id path string true "Patient ID"
// @Success 200 {object} response.Envelope
// @Router /patients/{id} [get]
func (h *PatientHandler) Get(c *gin.Context) {
	patient, err := h.patients.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, patient, nil)
}

// Create godoc
// @Summary Admit resident
// @Tags Patients
// @Accept json
// @Produce json
// @Param payload body service.CreatePatientRequest true "Patient payload"
// @Success 201 {object} response.Envelope
// @Router /patients [post]
func (h *PatientHandler) Create(c *gin.Context) {
	var req service.CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	patient, err := h.patients.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, patient)
}

// Update godoc
// @Summary Update resident
// @Tags Patients
// @Accept json
// @Produce json
// @Param id path string true "Patient ID"
// @Param payload body service.UpdatePatientRequest true "Patient payload"
// @Success 200 {object} response.Envelope
// @Router /patients/{id} [put]
func (h *PatientHandler) Update(c *gin.Context) {
	var req service.UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	patient, err := h.patients.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, patient, nil)
}

// Delete godoc
// @Summary Discharge resident
// @Tags Patients
// @Produce json
// @Param id path string true "Patient ID"
// @Success 204
// @Router /patients/{id} [delete]
func (h *PatientHandler) Delete(c *gin.Context) {
	if err := h.patients.Deactivate(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
