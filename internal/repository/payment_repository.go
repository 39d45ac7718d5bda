package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cdm-registrar/registrar-api/internal/models"
)

// PaymentRepository persists payment proof records in PostgreSQL.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, request_id, amount, payment_method, reference_number, proof_url, status,
       verified_by, verified_date, rejection_reason, payment_date, updated_date`

// Create inserts a payment row and assigns the generated id.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = time.Now().UTC()
	}
	const query = `INSERT INTO payments
	(request_id, amount, payment_method, reference_number, proof_url, status, payment_date)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		payment.RequestID,
		payment.Amount,
		payment.PaymentMethod,
		payment.ReferenceNumber,
		payment.ProofURL,
		payment.Status,
		payment.PaymentDate,
	).Scan(&payment.ID)
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// GetByID fetches a payment by identifier.
func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1 LIMIT 1`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get payment %d: %w", id, err)
	}
	return &payment, nil
}

// GetByRequestID returns the current payment for a request; at most one row
// exists per request since rejected payments are overwritten in place.
func (r *PaymentRepository) GetByRequestID(ctx context.Context, requestID int64) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE request_id = $1 ORDER BY payment_date DESC LIMIT 1`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, requestID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get payment for request %d: %w", requestID, err)
	}
	return &payment, nil
}

// Replace overwrites a rejected payment in place for a re-upload: proof
// fields are replaced, the rejection reason cleared, and the status returned
// to an open state. Conditional on the row still being Rejected.
func (r *PaymentRepository) Replace(ctx context.Context, payment *models.Payment) error {
	const query = `UPDATE payments
	SET amount = $2, payment_method = $3, reference_number = $4, proof_url = $5, status = $6,
	    rejection_reason = NULL, verified_by = NULL, verified_date = NULL,
	    payment_date = $7, updated_date = $8
	WHERE id = $1 AND status = $9`
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		payment.ID,
		payment.Amount,
		payment.PaymentMethod,
		payment.ReferenceNumber,
		payment.ProofURL,
		payment.Status,
		payment.PaymentDate,
		now,
		models.PaymentStatusRejected,
	)
	if err != nil {
		return fmt.Errorf("replace rejected payment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check payment replace rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	payment.UpdatedDate = &now
	return nil
}

// MarkVerified records an officer approval. Conditional on the payment still
// awaiting a decision so double verification is impossible.
func (r *PaymentRepository) MarkVerified(ctx context.Context, id int64, officerID string, ts time.Time) error {
	const query = `UPDATE payments
	SET status = $2, verified_by = $3, verified_date = $4, updated_date = $4
	WHERE id = $1 AND status IN ($5, $6)`
	result, err := r.db.ExecContext(ctx, query,
		id,
		models.PaymentStatusVerified,
		officerID,
		ts,
		models.PaymentStatusPending,
		models.PaymentStatusPendingVerification,
	)
	if err != nil {
		return fmt.Errorf("verify payment %d: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check payment verify rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkRejected records an officer rejection with its reason.
func (r *PaymentRepository) MarkRejected(ctx context.Context, id int64, officerID, reason string, ts time.Time) error {
	const query = `UPDATE payments
	SET status = $2, verified_by = $3, verified_date = $4, updated_date = $4, rejection_reason = $5
	WHERE id = $1 AND status IN ($6, $7)`
	result, err := r.db.ExecContext(ctx, query,
		id,
		models.PaymentStatusRejected,
		officerID,
		ts,
		reason,
		models.PaymentStatusPending,
		models.PaymentStatusPendingVerification,
	)
	if err != nil {
		return fmt.Errorf("reject payment %d: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check payment reject rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RevertDecision undoes an officer decision, returning the payment to an
// open status with the decision fields cleared. Used to compensate when the
// mirror write onto the parent request fails after the decision committed.
func (r *PaymentRepository) RevertDecision(ctx context.Context, id int64, toStatus models.PaymentStatus) error {
	const query = `UPDATE payments
	SET status = $2, verified_by = NULL, verified_date = NULL, rejection_reason = NULL, updated_date = $3
	WHERE id = $1 AND status IN ($4, $5)`
	result, err := r.db.ExecContext(ctx, query,
		id,
		toStatus,
		time.Now().UTC(),
		models.PaymentStatusVerified,
		models.PaymentStatusRejected,
	)
	if err != nil {
		return fmt.Errorf("revert payment decision %d: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check payment revert rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListPending returns payments awaiting verification joined with request and
// requester identity for the officer work queue.
func (r *PaymentRepository) ListPending(ctx context.Context) ([]models.PendingPayment, error) {
	const query = `SELECT p.id, p.request_id, p.amount, p.payment_method, p.reference_number, p.proof_url,
       p.status, p.verified_by, p.verified_date, p.rejection_reason, p.payment_date, p.updated_date,
       dr.queue_number, dr.document_type_name, dr.total_amount,
       (u.first_name || ' ' || u.last_name) AS student_name, u.student_number, u.email AS student_email
	FROM payments p
	JOIN document_requests dr ON dr.id = p.request_id
	JOIN users u ON u.id = dr.user_id
	WHERE p.status IN ($1, $2)
	ORDER BY p.payment_date ASC`
	var payments []models.PendingPayment
	if err := r.db.SelectContext(ctx, &payments, query, models.PaymentStatusPending, models.PaymentStatusPendingVerification); err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	return payments, nil
}
