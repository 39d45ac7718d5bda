package models

import "time"

// PaymentStatus captures the state of a single payment record.
type PaymentStatus string

const (
	PaymentStatusPending             PaymentStatus = "Pending"
	PaymentStatusPendingVerification PaymentStatus = "Pending Verification"
	PaymentStatusVerified            PaymentStatus = "Verified"
	PaymentStatusRejected            PaymentStatus = "Rejected"
)

// IsOpen reports whether the payment still awaits an officer decision.
func (s PaymentStatus) IsOpen() bool {
	return s == PaymentStatusPending || s == PaymentStatusPendingVerification
}

// Payment is the proof-of-payment record tied to the current active request.
// At most one payment per request is ever in an open state; a rejected
// payment is overwritten in place on re-upload.
type Payment struct {
	ID              int64         `db:"id" json:"id"`
	RequestID       int64         `db:"request_id" json:"request_id"`
	Amount          float64       `db:"amount" json:"amount"`
	PaymentMethod   string        `db:"payment_method" json:"payment_method"`
	ReferenceNumber *string       `db:"reference_number" json:"reference_number,omitempty"`
	ProofURL        string        `db:"proof_url" json:"proof_url"`
	Status          PaymentStatus `db:"status" json:"status"`
	VerifiedBy      *string       `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedDate    *time.Time    `db:"verified_date" json:"verified_date,omitempty"`
	RejectionReason *string       `db:"rejection_reason" json:"rejection_reason,omitempty"`
	PaymentDate     time.Time     `db:"payment_date" json:"payment_date"`
	UpdatedDate     *time.Time    `db:"updated_date" json:"updated_date,omitempty"`
}

// PendingPayment joins an open payment with its request and requester, for
// the verification work queue.
type PendingPayment struct {
	Payment
	QueueNumber      string  `db:"queue_number" json:"queue_number"`
	DocumentTypeName string  `db:"document_type_name" json:"document_type_name"`
	TotalAmount      float64 `db:"total_amount" json:"total_amount"`
	StudentName      string  `db:"student_name" json:"student_name"`
	StudentNumber    string  `db:"student_number" json:"student_number"`
	StudentEmail     string  `db:"student_email" json:"student_email"`
}
