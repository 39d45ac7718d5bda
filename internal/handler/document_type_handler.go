package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cdm-registrar/registrar-api/internal/models"
	"github.com/cdm-registrar/registrar-api/pkg/response"
)

type documentTypeService interface {
	List(ctx context.Context) ([]models.DocumentType, error)
}

// DocumentTypeHandler serves the requestable-document catalog.
type DocumentTypeHandler struct {
	service documentTypeService
}

// NewDocumentTypeHandler constructs the handler.
func NewDocumentTypeHandler(service documentTypeService) *DocumentTypeHandler {
	return &DocumentTypeHandler{service: service}
}

// List godoc
// @Summary List requestable document types
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /document-types [get]
func (h *DocumentTypeHandler) List(c *gin.Context) {
	types, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, types, nil)
}
