package models

import "time"

// Workflow history actions recorded on transitions.
const (
	ActionRequestSubmitted = "Request Submitted"
	ActionProofUploaded    = "Payment Proof Uploaded"
	ActionPaymentVerified  = "Payment Verified"
	ActionPaymentRejected  = "Payment Rejected"
	ActionStatusChanged    = "Status Changed"
	ActionRequestCancelled = "Request Cancelled"
)

// WorkflowHistory is an append-only audit entry for a request transition.
// Rows are never updated or deleted.
type WorkflowHistory struct {
	ID          int64        `db:"id" json:"id"`
	RequestID   int64        `db:"request_id" json:"request_id"`
	Stage       RequestStage `db:"stage" json:"stage"`
	Action      string       `db:"action" json:"action"`
	Comments    *string      `db:"comments" json:"comments,omitempty"`
	ProcessedBy *string      `db:"processed_by" json:"processed_by,omitempty"`
	ProcessedAt time.Time    `db:"processed_at" json:"processed_at"`
}
