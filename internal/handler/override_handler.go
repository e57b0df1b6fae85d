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

type overrideService interface {
	List(ctx context.Context, req service.OverrideListRequest) ([]models.OverrideWindow, *models.Pagination, error)
	Create(ctx context.Context, req service.CreateOverrideRequest, actor *models.JWTClaims) (*models.OverrideWindow, error)
}

// OverrideHandler exposes late-override administration endpoints.
type OverrideHandler struct {
	overrides overrideService
}

// NewOverrideHandler constructs OverrideHandler.
func NewOverrideHandler(overrides overrideService) *OverrideHandler {
	return &OverrideHandler{overrides: overrides}
}

// List godoc
// @Summary List override windows
// @Tags Overrides
// @Produce json
// @Param patientId query string false "Filter by resident"
// @Param kind query string false "Filter by submission kind"
// @Param grantedTo query string false "Filter by grantee"
// @Param activeAt query string false "Only windows covering this instant (RFC3339)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /overrides [get]
func (h *OverrideHandler) List(c *gin.Context) {
	var req service.OverrideListRequest
	req.PatientID = c.Query("patientId")
	req.Kind = c.Query("kind")
	req.GrantedTo = c.Query("grantedTo")
	activeAt, ok := parseTimeQuery(strings.TrimSpace(c.Query("activeAt")))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid activeAt timestamp"))
		return
	}
	req.ActiveAt = activeAt
	req.Page, req.PageSize = pageParams(c)

	windows, pagination, err := h.overrides.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, windows, pagination)
}

// Create godoc
// @Summary Grant an override window
// @Description Opens a bounded late-submission window for one staff member,
// @Description resident, and submission kind. A justification is mandatory.
// @Tags Overrides
// @Accept json
// @Produce json
// @Param payload body service.CreateOverrideRequest true "Override payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /overrides [post]
func (h *OverrideHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	window, err := h.overrides.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, window)
}
