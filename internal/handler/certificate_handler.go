package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/certilog/certilog-api/internal/dto"
	"github.com/certilog/certilog-api/internal/models"
	"github.com/certilog/certilog-api/internal/service"
	appErrors "github.com/certilog/certilog-api/pkg/errors"
	"github.com/certilog/certilog-api/pkg/response"
)

// CertificateHandler exposes certificate endpoints.
type CertificateHandler struct {
	certificates *service.CertificateService
	bulk         *service.BulkService
	audits       *service.AuditService
}

// NewCertificateHandler constructs handler.
func NewCertificateHandler(certificates *service.CertificateService, bulk *service.BulkService, audits *service.AuditService) *CertificateHandler {
	return &CertificateHandler{certificates: certificates, bulk: bulk, audits: audits}
}

// List godoc
// @Summary List certificates
// @Tags Certificates
// @Produce json
// @Param search query string false "Search number or title"
// @Param status query string false "Filter by status"
// @Param tag query string false "Filter by tag"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /certificates [get]
func (h *CertificateHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	filter := models.CertificateFilter{
		Search:    c.Query("search"),
		Status:    c.Query("status"),
		Tag:       c.Query("tag"),
		Page:      page,
		PageSize:  pageSize,
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}
	certs, total, err := h.certificates.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certs, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Get godoc
// @Summary Get certificate by id
// @Tags Certificates
// @Produce json
// @Param id path string true "Certificate ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /certificates/{id} [get]
func (h *CertificateHandler) Get(c *gin.Context) {
	cert, err := h.certificates.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cert, nil)
}

// Create godoc
// @Summary Create certificate
// @Tags Certificates
// @Accept json
// @Produce json
// @Param payload body dto.CreateCertificateRequest true "Certificate payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /certificates [post]
func (h *CertificateHandler) Create(c *gin.Context) {
	var req dto.CreateCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	cert, err := h.certificates.Create(c.Request.Context(), req, claimsFromContext(c).Actor())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cert)
}

// Update godoc
// @Summary Update certificate
// @Description Apply a partial update and optionally a status transition. A
// @Description rejected or blocked transition is reported in the outcome, not
// @Description as an HTTP error.
// @Tags Certificates
// @Accept json
// @Produce json
// @Param id path string true "Certificate ID"
// @Param payload body dto.UpdateCertificateRequest true "Mutation payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /certificates/{id} [patch]
func (h *CertificateHandler) Update(c *gin.Context) {
	var req dto.UpdateCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.certificates.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c).Actor())
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if !result.Outcome.Applied() {
		status = outcomeStatus(result.Outcome)
	}
	response.JSON(c, status, result, nil)
}

// outcomeStatus maps a non-applied outcome to the HTTP status of the typed
// error describing it. The outcome itself still travels in the body; the
// status code is a summary, not the contract.
func outcomeStatus(outcome models.TransitionOutcome) int {
	switch {
	case outcome.Conflict:
		return appErrors.ErrRuleConflict.Status
	case outcome.Decision == models.DecisionBlocked:
		return appErrors.ErrStatusLocked.Status
	case len(outcome.MissingFields) > 0:
		return appErrors.ErrMissingFields.Status
	default:
		return appErrors.ErrConfirmationRequired.Status
	}
}

// Bulk godoc
// @Summary Bulk update certificates
// @Description Best-effort batch mutation. Every requested id lands in
// @Description exactly one of applied, blocked or failed.
// @Tags Certificates
// @Accept json
// @Produce json
// @Param payload body dto.BulkUpdateRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /certificates/bulk [post]
func (h *CertificateHandler) Bulk(c *gin.Context) {
	var req dto.BulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.bulk.Apply(c.Request.Context(), req, claimsFromContext(c).Actor())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Events godoc
// @Summary Certificate audit timeline
// @Tags Certificates
// @Produce json
// @Param id path string true "Certificate ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /certificates/{id}/events [get]
func (h *CertificateHandler) Events(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	events, err := h.audits.Timeline(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}
