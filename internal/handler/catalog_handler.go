package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/certilog/certilog-api/internal/dto"
	"github.com/certilog/certilog-api/internal/service"
	appErrors "github.com/certilog/certilog-api/pkg/errors"
	"github.com/certilog/certilog-api/pkg/response"
)

// CatalogHandler exposes payment type and tag endpoints.
type CatalogHandler struct {
	catalog *service.CatalogService
}

// NewCatalogHandler constructs handler.
func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ListPaymentTypes godoc
// @Summary List payment types
// @Tags Catalog
// @Produce json
// @Param active query bool false "Only active payment types"
// @Success 200 {object} response.Envelope
// @Router /payment-types [get]
func (h *CatalogHandler) ListPaymentTypes(c *gin.Context) {
	types, err := h.catalog.ListPaymentTypes(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, types, nil)
}

// CreatePaymentType godoc
// @Summary Create payment type
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body dto.CreatePaymentTypeRequest true "Payment type payload"
// @Success 201 {object} response.Envelope
// @Router /payment-types [post]
func (h *CatalogHandler) CreatePaymentType(c *gin.Context) {
	var req dto.CreatePaymentTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	pt, err := h.catalog.CreatePaymentType(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, pt)
}

// UpdatePaymentType godoc
// @Summary Update payment type
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path string true "Payment type ID"
// @Param payload body dto.UpdatePaymentTypeRequest true "Payment type payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payment-types/{id} [patch]
func (h *CatalogHandler) UpdatePaymentType(c *gin.Context) {
	var req dto.UpdatePaymentTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	pt, err := h.catalog.UpdatePaymentType(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pt, nil)
}

// DeletePaymentType godoc
// @Summary Delete payment type
// @Tags Catalog
// @Produce json
// @Param id path string true "Payment type ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payment-types/{id} [delete]
func (h *CatalogHandler) DeletePaymentType(c *gin.Context) {
	if err := h.catalog.DeletePaymentType(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListTags godoc
// @Summary List tags
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tags [get]
func (h *CatalogHandler) ListTags(c *gin.Context) {
	tags, err := h.catalog.ListTags(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tags, nil)
}

// CreateTag godoc
// @Summary Create tag
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body dto.CreateTagRequest true "Tag payload"
// @Success 201 {object} response.Envelope
// @Router /tags [post]
func (h *CatalogHandler) CreateTag(c *gin.Context) {
	var req dto.CreateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	tag, err := h.catalog.CreateTag(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tag)
}

// DeleteTag godoc
// @Summary Delete tag
// @Tags Catalog
// @Produce json
// @Param id path string true "Tag ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tags/{id} [delete]
func (h *CatalogHandler) DeleteTag(c *gin.Context) {
	if err := h.catalog.DeleteTag(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
