package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/certilog/certilog-api/internal/dto"
	"github.com/certilog/certilog-api/internal/models"
	"github.com/certilog/certilog-api/internal/service"
	appErrors "github.com/certilog/certilog-api/pkg/errors"
	"github.com/certilog/certilog-api/pkg/response"
)

// StatusHandler exposes status catalog and validation endpoints.
type StatusHandler struct {
	statuses *service.StatusService
}

// NewStatusHandler constructs handler.
func NewStatusHandler(statuses *service.StatusService) *StatusHandler {
	return &StatusHandler{statuses: statuses}
}

// List godoc
// @Summary List status definitions
// @Tags Statuses
// @Produce json
// @Param active query bool false "Only active statuses"
// @Success 200 {object} response.Envelope
// @Router /statuses [get]
func (h *StatusHandler) List(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	statuses, err := h.statuses.List(c.Request.Context(), activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, statuses, nil)
}

// Get godoc
// @Summary Get status definition
// @Tags Statuses
// @Produce json
// @Param name path string true "Status name"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /statuses/{name} [get]
func (h *StatusHandler) Get(c *gin.Context) {
	status, err := h.statuses.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Create godoc
// @Summary Create status definition
// @Tags Statuses
// @Accept json
// @Produce json
// @Param payload body dto.CreateStatusRequest true "Status payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /statuses [post]
func (h *StatusHandler) Create(c *gin.Context) {
	var req dto.CreateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	status, err := h.statuses.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, status)
}

// Update godoc
// @Summary Update status definition
// @Tags Statuses
// @Accept json
// @Produce json
// @Param name path string true "Status name"
// @Param payload body dto.UpdateStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /statuses/{name} [patch]
func (h *StatusHandler) Update(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	status, err := h.statuses.Update(c.Request.Context(), c.Param("name"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Requirements godoc
// @Summary List validation requirements for a status
// @Tags Statuses
// @Produce json
// @Param name path string true "Status name"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /statuses/{name}/validations [get]
func (h *StatusHandler) Requirements(c *gin.Context) {
	requirements, err := h.statuses.Requirements(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requirements, nil)
}

// AddRequirement godoc
// @Summary Attach a validation requirement to a status
// @Tags Statuses
// @Accept json
// @Produce json
// @Param name path string true "Status name"
// @Param payload body dto.CreateValidationRequest true "Requirement payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /statuses/{name}/validations [post]
func (h *StatusHandler) AddRequirement(c *gin.Context) {
	var req dto.CreateValidationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	requirement, err := h.statuses.AddRequirement(c.Request.Context(), c.Param("name"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, requirement)
}

// RemoveRequirement godoc
// @Summary Detach a validation requirement
// @Tags Statuses
// @Produce json
// @Param name path string true "Status name"
// @Param validationId path string true "Requirement ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /statuses/{name}/validations/{validationId} [delete]
func (h *StatusHandler) RemoveRequirement(c *gin.Context) {
	if err := h.statuses.RemoveRequirement(c.Request.Context(), c.Param("validationId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RequiredFields godoc
// @Summary Enumerate assignable required fields
// @Tags Statuses
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /statuses/required-fields [get]
func (h *StatusHandler) RequiredFields(c *gin.Context) {
	response.JSON(c, http.StatusOK, models.RequiredFields(), nil)
}
