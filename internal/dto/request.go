package dto

import (
	"github.com/cdm-registrar/registrar-api/internal/models"
)

// SubmitRequestRequest is the payload for creating a document request.
type SubmitRequestRequest struct {
	DocumentTypeID int64  `json:"document_type_id" binding:"required"`
	Purpose        string `json:"purpose" binding:"required"`
	Quantity       int    `json:"quantity" binding:"required,min=1"`
}

// SubmitRequestResponse returns the created request with its queue number.
type SubmitRequestResponse struct {
	Request *models.DocumentRequest `json:"request"`
}

// AdvanceStatusRequest is the staff payload for driving the lifecycle.
type AdvanceStatusRequest struct {
	Status   models.RequestStatus `json:"status" binding:"required"`
	Comments string               `json:"comments"`
}

// AdvanceStatusResponse reports the transition outcome. NotificationQueued is
// false when the student email could not be enqueued; the transition itself
// still succeeded.
type AdvanceStatusResponse struct {
	Request            *models.DocumentRequest `json:"request"`
	NotificationQueued bool                    `json:"notification_queued"`
}

// RequestDetailResponse bundles a request with its payment record and
// transition trail.
type RequestDetailResponse struct {
	Request *models.DocumentRequest  `json:"request"`
	Payment *models.Payment          `json:"payment,omitempty"`
	History []models.WorkflowHistory `json:"history"`
}

// RequestListQuery mirrors supported staff listing filters.
type RequestListQuery struct {
	Status []models.RequestStatus `form:"status"`
	UserID string                 `form:"user_id"`
	Limit  int                    `form:"limit"`
	Offset int                    `form:"offset"`
}
