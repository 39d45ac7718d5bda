package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cdm-registrar/registrar-api/internal/dto"
	"github.com/cdm-registrar/registrar-api/internal/models"
	appErrors "github.com/cdm-registrar/registrar-api/pkg/errors"
	"github.com/cdm-registrar/registrar-api/pkg/response"
)

type requestService interface {
	Submit(ctx context.Context, userID string, req dto.SubmitRequestRequest) (*models.DocumentRequest, error)
	AdvanceStatus(ctx context.Context, requestID int64, actorID string, req dto.AdvanceStatusRequest) (*dto.AdvanceStatusResponse, error)
	ListForUser(ctx context.Context, userID string) ([]models.DocumentRequest, error)
	HistoryForUser(ctx context.Context, userID string) ([]models.DocumentRequest, error)
	QueueStats(ctx context.Context, userID string) (*models.QueueStats, error)
	Overview(ctx context.Context) (*models.RequestOverview, error)
	ListAll(ctx context.Context, query dto.RequestListQuery) ([]models.RequestWithStudent, error)
	Detail(ctx context.Context, requestID int64, requesterID string, role models.UserRole) (*dto.RequestDetailResponse, error)
	Workflow(ctx context.Context, requestID int64, requesterID string, role models.UserRole) ([]models.WorkflowHistory, error)
}

// RequestHandler exposes the document-request lifecycle endpoints.
type RequestHandler struct {
	service requestService
}

// NewRequestHandler constructs the handler.
func NewRequestHandler(service requestService) *RequestHandler {
	return &RequestHandler{service: service}
}

// Submit godoc
// @Summary Submit a document request
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body dto.SubmitRequestRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /requests [post]
func (h *RequestHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SubmitRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request payload"))
		return
	}
	request, err := h.service.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.SubmitRequestResponse{Request: request})
}

// ListMine godoc
// @Summary List the caller's document requests
// @Tags Requests
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /requests/mine [get]
func (h *RequestHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	requests, err := h.service.ListForUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// History godoc
// @Summary List the caller's completed and cancelled requests
// @Tags Requests
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /requests/history [get]
func (h *RequestHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	requests, err := h.service.HistoryForUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// QueueStats godoc
// @Summary Count the caller's requests by status
// @Tags Requests
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /requests/stats [get]
func (h *RequestHandler) QueueStats(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	stats, err := h.service.QueueStats(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Detail godoc
// @Summary Get a request with its payment and workflow trail
// @Tags Requests
// @Produce json
// @Param id path int true "Request ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /requests/{id} [get]
func (h *RequestHandler) Detail(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := requestIDParam(c)
	if !ok {
		return
	}
	detail, err := h.service.Detail(c.Request.Context(), id, claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Workflow godoc
// @Summary Get a request's workflow history
// @Tags Requests
// @Produce json
// @Param id path int true "Request ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /requests/{id}/workflow [get]
func (h *RequestHandler) Workflow(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := requestIDParam(c)
	if !ok {
		return
	}
	history, err := h.service.Workflow(c.Request.Context(), id, claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// AdvanceStatus godoc
// @Summary Advance a request to a new status
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path int true "Request ID"
// @Param payload body dto.AdvanceStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /requests/{id}/status [put]
func (h *RequestHandler) AdvanceStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := requestIDParam(c)
	if !ok {
		return
	}
	var req dto.AdvanceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid status payload"))
		return
	}
	result, err := h.service.AdvanceStatus(c.Request.Context(), id, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	var meta map[string]interface{}
	if !result.NotificationQueued {
		meta = map[string]interface{}{"warning": "notification could not be queued"}
	}
	response.JSON(c, http.StatusOK, result, nil, meta)
}

// List godoc
// @Summary List requests with requester identity (staff)
// @Tags Requests
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param user_id query string false "Filter by student"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	query := dto.RequestListQuery{
		UserID: strings.TrimSpace(c.Query("user_id")),
	}
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
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			query.Limit = limit
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil && offset > 0 {
			query.Offset = offset
		}
	}
	requests, err := h.service.ListAll(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Overview godoc
// @Summary Registrar-wide workload overview (staff)
// @Tags Requests
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/overview [get]
func (h *RequestHandler) Overview(c *gin.Context) {
	overview, err := h.service.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}

func requestIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request id"))
		return 0, false
	}
	return id, true
}
