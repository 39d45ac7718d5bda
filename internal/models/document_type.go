package models

import "time"

// DocumentType is a catalog entry describing a requestable registrar document.
// Price and name are copied onto requests at submission time, so catalog edits
// never change historical totals.
type DocumentType struct {
	ID                int64     `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	Description       *string   `db:"description" json:"description,omitempty"`
	RequiresPayment   bool      `db:"requires_payment" json:"requires_payment"`
	Amount            float64   `db:"amount" json:"amount"`
	ProcessingDays    int       `db:"processing_days" json:"processing_days"`
	RequiresClearance bool      `db:"requires_clearance" json:"requires_clearance"`
	Category          string    `db:"category" json:"category"`
	Active            bool      `db:"active" json:"active"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}
