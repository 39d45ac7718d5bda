package dto

import (
	"github.com/cdm-registrar/registrar-api/internal/models"
)

// UploadProofRequest carries the multipart form fields accompanying a proof
// file. The file itself arrives as the "proof" form file.
type UploadProofRequest struct {
	PaymentMethod   string `form:"payment_method" binding:"required"`
	ReferenceNumber string `form:"reference_number"`
}

// UploadProofResponse returns the recorded payment and the request as moved
// into verification.
type UploadProofResponse struct {
	Payment *models.Payment         `json:"payment"`
	Request *models.DocumentRequest `json:"request"`
}

// RejectPaymentRequest carries the mandatory rejection reason.
type RejectPaymentRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// PaymentDecisionResponse reports a verify or reject outcome.
// NotificationQueued is false when the student email could not be enqueued.
type PaymentDecisionResponse struct {
	Payment            *models.Payment         `json:"payment"`
	Request            *models.DocumentRequest `json:"request"`
	NotificationQueued bool                    `json:"notification_queued"`
}
