package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cdm-registrar/registrar-api/internal/dto"
	"github.com/cdm-registrar/registrar-api/internal/models"
	appErrors "github.com/cdm-registrar/registrar-api/pkg/errors"
	"github.com/cdm-registrar/registrar-api/pkg/response"
)

type exportService interface {
	RequestsCSV(ctx context.Context, query dto.RequestListQuery) ([]byte, error)
	RequestsPDF(ctx context.Context, query dto.RequestListQuery) ([]byte, error)
	ClaimStubPDF(ctx context.Context, requestID int64, requesterID string, role models.UserRole) ([]byte, error)
}

// ExportHandler serves CSV and PDF downloads.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Requests godoc
// @Summary Download the request register (staff)
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Param status query string false "Comma separated statuses"
// @Param format query string false "csv (default) or pdf"
// @Success 200
// @Security BearerAuth
// @Router /admin/requests/export [get]
func (h *ExportHandler) Requests(c *gin.Context) {
	query := dto.RequestListQuery{UserID: strings.TrimSpace(c.Query("user_id"))}
	if raw := c.Query("status"); raw != "" {
		parts := strings.Split(raw, ",")
		statuses := make([]models.RequestStatus, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			statuses = append(statuses, models.RequestStatus(part))
		}
		query.Status = statuses
	}

	var (
		payload     []byte
		err         error
		ext         string
		contentType string
	)
	switch format := strings.ToLower(c.DefaultQuery("format", "csv")); format {
	case "csv":
		payload, err = h.service.RequestsCSV(c.Request.Context(), query)
		ext, contentType = "csv", "text/csv"
	case "pdf":
		payload, err = h.service.RequestsPDF(c.Request.Context(), query)
		ext, contentType = "pdf", "application/pdf"
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("requests-%s.%s", time.Now().UTC().Format("20060102"), ext)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}

// ClaimStub godoc
// @Summary Download the pickup slip for a ready request
// @Tags Exports
// @Produce application/pdf
// @Param id path int true "Request ID"
// @Success 200
// @Security BearerAuth
// @Router /requests/{id}/claim-stub [get]
func (h *ExportHandler) ClaimStub(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := requestIDParam(c)
	if !ok {
		return
	}
	payload, err := h.service.ClaimStubPDF(c.Request.Context(), id, claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("claim-stub-%d.pdf", id)))
	c.Data(http.StatusOK, "application/pdf", payload)
}
