package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/carebridge/carebridge-api/internal/service"
	appErrors "github.com/carebridge/carebridge-api/pkg/errors"
	"github.com/carebridge/carebridge-api/pkg/response"
)

// MedicationHandler exposes medication order endpoints.
type MedicationHandler struct {
	medications *service.MedicationService
}

// NewMedicationHandler constructs MedicationHandler.
func NewMedicationHandler(medications *service.MedicationService) *MedicationHandler {
	return &MedicationHandler{medications: medications}
}

// List godoc
// @Summary List medication orders
// @Tags Medications
// @Produce json
// @Param patientId query string false "Filter by resident"
// @Param active query bool false "Filter by active state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /medications [get]
func (h *MedicationHandler) List(c *gin.Context) {
	var req service.MedicationListRequest
	req.PatientID = c.Query("patientId")
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

	medications, pagination, err := h.medications.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, medications, pagination)
}

// Get godoc
// @Summary Get medication order
// @Tags Medications
// @Produce json
// @Param id path string true "Medication ID"
// @Success 200 {object} response.Envelope
// @Router /medications/{id} [get]
func (h *MedicationHandler) Get(c *gin.Context) {
	medication, err := h.medications.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, medication, nil)
}

// Create godoc
// @Summary Create medication order
// @Tags Medications
// @Accept json
// @Produce json
// @Param payload body service.CreateMedicationRequest true "Medication payload"
// @Success 201 {object} response.Envelope
// @Router /medications [post]
func (h *MedicationHandler) Create(c *gin.Context) {
	var req service.CreateMedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	medication, err := h.medications.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, medication)
}

// Update godoc
// @Summary Update medication order
// @Tags Medications
// @Accept json
// @Produce json
// @Param id path string true "Medication ID"
// @Param payload body service.UpdateMedicationRequest true "Medication payload"
// @Success 200 {object} response.Envelope
// @Router /medications/{id} [put]
func (h *MedicationHandler) Update(c *gin.Context) {
	var req service.UpdateMedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	medication, err := h.medications.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, medication, nil)
}

// Discontinue godoc
// @Summary Discontinue medication order
// @Tags Medications
// @Accept json
// @Produce json
// @Param id path string true "Medication ID"
// @Param payload body map[string]string true "End date"
// @Success 204
// @Router /medications/{id}/discontinue [post]
func (h *MedicationHandler) Discontinue(c *gin.Context) {
	var payload struct {
		EndDate time.Time `json:"end_date" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "end_date required"))
		return
	}
	if err := h.medications.Discontinue(c.Request.Context(), c.Param("id"), payload.EndDate, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
