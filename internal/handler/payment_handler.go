package handler

import (
	"context"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cdm-registrar/registrar-api/internal/dto"
	"github.com/cdm-registrar/registrar-api/internal/models"
	appErrors "github.com/cdm-registrar/registrar-api/pkg/errors"
	"github.com/cdm-registrar/registrar-api/pkg/response"
)

type paymentService interface {
	UploadProof(ctx context.Context, requestID int64, userID string, req dto.UploadProofRequest, filename string, file io.Reader) (*dto.UploadProofResponse, error)
	Verify(ctx context.Context, paymentID int64, officerID string) (*dto.PaymentDecisionResponse, error)
	Reject(ctx context.Context, paymentID int64, officerID, reason string) (*dto.PaymentDecisionResponse, error)
	ListPending(ctx context.Context) ([]models.PendingPayment, error)
	ProofURL(ctx context.Context, paymentID int64) (string, error)
	ResolveProofToken(token string) (string, error)
}

type proofOpener interface {
	Open(ref string) (*os.File, error)
}

// PaymentHandler exposes proof upload and officer verification endpoints.
type PaymentHandler struct {
	service paymentService
	proofs  proofOpener
}

// NewPaymentHandler constructs the handler.
func NewPaymentHandler(service paymentService, proofs proofOpener) *PaymentHandler {
	return &PaymentHandler{service: service, proofs: proofs}
}

// UploadProof godoc
// @Summary Upload proof of payment for a request
// @Tags Payments
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Request ID"
// @Param proof formData file true "Proof image or PDF"
// @Param payment_method formData string true "Payment method"
// @Param reference_number formData string false "Bank or wallet reference"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /requests/{id}/payment [post]
func (h *PaymentHandler) UploadProof(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := requestIDParam(c)
	if !ok {
		return
	}

	var req dto.UploadProofRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payment form"))
		return
	}
	fileHeader, err := c.FormFile("proof")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "proof file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "could not read proof file"))
		return
	}
	defer file.Close()

	result, err := h.service.UploadProof(c.Request.Context(), id, claims.UserID, req, fileHeader.Filename, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Verify godoc
// @Summary Approve a payment (officer)
// @Tags Payments
// @Produce json
// @Param id path int true "Payment ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /payments/{id}/verify [put]
func (h *PaymentHandler) Verify(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := paymentIDParam(c)
	if !ok {
		return
	}
	result, err := h.service.Verify(c.Request.Context(), id, claims.UserID)
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

// Reject godoc
// @Summary Reject a payment with a reason (officer)
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path int true "Payment ID"
// @Param payload body dto.RejectPaymentRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /payments/{id}/reject [put]
func (h *PaymentHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := paymentIDParam(c)
	if !ok {
		return
	}
	var req dto.RejectPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.ErrMissingRejectionReason)
		return
	}
	result, err := h.service.Reject(c.Request.Context(), id, claims.UserID, req.Reason)
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

// ListPending godoc
// @Summary List payments awaiting verification (officer)
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /payments/pending [get]
func (h *PaymentHandler) ListPending(c *gin.Context) {
	pending, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pending, nil)
}

// ProofURL godoc
// @Summary Issue a short-lived signed link for a proof file (officer)
// @Tags Payments
// @Produce json
// @Param id path int true "Payment ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /payments/{id}/proof-url [get]
func (h *PaymentHandler) ProofURL(c *gin.Context) {
	id, ok := paymentIDParam(c)
	if !ok {
		return
	}
	token, err := h.service.ProofURL(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"token": token}, nil)
}

// ProofFile godoc
// @Summary Stream a proof file via signed token
// @Tags Payments
// @Produce octet-stream
// @Param token query string true "Signed proof token"
// @Success 200
// @Router /payments/proof [get]
func (h *PaymentHandler) ProofFile(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	ref, err := h.service.ResolveProofToken(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.proofs.Open(ref)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "proof file not found"))
		return
	}
	defer file.Close()
	c.Header("Content-Disposition", "inline")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, file); err != nil {
		_ = c.Error(err)
	}
}

func paymentIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payment id"))
		return 0, false
	}
	return id, true
}
