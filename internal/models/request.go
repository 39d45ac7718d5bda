package models

import "time"

// RequestStatus is the coarse workflow state of a document request.
type RequestStatus string

const (
	RequestStatusActive     RequestStatus = "Active"
	RequestStatusProcessing RequestStatus = "Processing"
	RequestStatusReady      RequestStatus = "Ready"
	RequestStatusCompleted  RequestStatus = "Completed"
	RequestStatusCancelled  RequestStatus = "Cancelled"

	// RequestStatusPending is the vocabulary of the first generation of the
	// system; it is accepted at the boundary and treated as Active.
	RequestStatusPending RequestStatus = "Pending"
)

// RequestStage is the fine-grained workflow position shown to students.
type RequestStage string

const (
	StagePendingPayment      RequestStage = "Pending Payment"
	StagePaymentVerification RequestStage = "Payment Verification"
	StagePendingReview       RequestStage = "Pending Review"
	StageDocumentProcessing  RequestStage = "Document Processing"
	StageReadyForPickup      RequestStage = "Ready for Pickup"
	StageCompleted           RequestStage = "Completed"

	// StageAwaitingPayment is a legacy spelling of StagePendingPayment still
	// present in old rows.
	StageAwaitingPayment RequestStage = "Awaiting Payment"
)

// PaymentState tracks payment progress as mirrored on the request.
type PaymentState string

const (
	PaymentStateNotRequired         PaymentState = "Not Required"
	PaymentStatePending             PaymentState = "Pending"
	PaymentStatePendingVerification PaymentState = "Pending Verification"
	PaymentStateVerified            PaymentState = "Verified"
	PaymentStateRejected            PaymentState = "Rejected"
)

// NormalizeStatus maps legacy status vocabulary onto the canonical set.
func NormalizeStatus(status RequestStatus) RequestStatus {
	if status == RequestStatusPending {
		return RequestStatusActive
	}
	return status
}

// NormalizeStage maps legacy stage vocabulary onto the canonical set.
func NormalizeStage(stage RequestStage) RequestStage {
	if stage == StageAwaitingPayment {
		return StagePendingPayment
	}
	return stage
}

// IsTerminal reports whether the status admits no further transitions.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusCompleted || s == RequestStatusCancelled
}

// DocumentRequest is the central workflow entity. DocumentTypeName and
// TotalAmount are snapshots taken at submission time.
type DocumentRequest struct {
	ID                int64         `db:"id" json:"id"`
	QueueNumber       string        `db:"queue_number" json:"queue_number"`
	UserID            string        `db:"user_id" json:"user_id"`
	DocumentTypeID    int64         `db:"document_type_id" json:"document_type_id"`
	DocumentTypeName  string        `db:"document_type_name" json:"document_type_name"`
	Purpose           string        `db:"purpose" json:"purpose"`
	Quantity          int           `db:"quantity" json:"quantity"`
	TotalAmount       float64       `db:"total_amount" json:"total_amount"`
	Status            RequestStatus `db:"status" json:"status"`
	CurrentStage      RequestStage  `db:"current_stage" json:"current_stage"`
	PaymentStatus     PaymentState  `db:"payment_status" json:"payment_status"`
	RequestDate       time.Time     `db:"request_date" json:"request_date"`
	TargetReleaseDate *time.Time    `db:"target_release_date" json:"target_release_date,omitempty"`
	CompletedDate     *time.Time    `db:"completed_date" json:"completed_date,omitempty"`
	ProcessedBy       *string       `db:"processed_by" json:"processed_by,omitempty"`
	ProcessedDate     *time.Time    `db:"processed_date" json:"processed_date,omitempty"`
}

// QueueStats aggregates a student's requests by status.
type QueueStats struct {
	Active     int `json:"active"`
	Processing int `json:"processing"`
	Ready      int `json:"ready"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
	Total      int `json:"total"`
}

// RequestOverview aggregates registrar-wide workload for staff dashboards.
type RequestOverview struct {
	Active         int            `json:"active"`
	Processing     int            `json:"processing"`
	Ready          int            `json:"ready"`
	Total          int            `json:"total"`
	ByDocumentType map[string]int `json:"by_document_type"`
}

// RequestWithStudent joins request data with requester identity for staff
// views and exports.
type RequestWithStudent struct {
	DocumentRequest
	StudentName   string `db:"student_name" json:"student_name"`
	StudentNumber string `db:"student_number" json:"student_number"`
	StudentEmail  string `db:"student_email" json:"student_email"`
}

// RequestFilter constrains staff-side listing queries.
type RequestFilter struct {
	UserID   string
	Statuses []RequestStatus
	Limit    int
	Offset   int
}
