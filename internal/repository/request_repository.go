package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cdm-registrar/registrar-api/internal/models"
)

// ErrDuplicateQueueNumber signals the generated queue number collided with an
// existing row; callers regenerate and retry.
var ErrDuplicateQueueNumber = errors.New("duplicate queue number")

// RequestRepository persists document requests in PostgreSQL.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `id, queue_number, user_id, document_type_id, document_type_name, purpose, quantity,
       total_amount, status, current_stage, payment_status, request_date, target_release_date,
       completed_date, processed_by, processed_date`

// Create inserts a request row and assigns the generated id. A unique index
// on queue_number turns collisions into ErrDuplicateQueueNumber.
func (r *RequestRepository) Create(ctx context.Context, request *models.DocumentRequest) error {
	if request.RequestDate.IsZero() {
		request.RequestDate = time.Now().UTC()
	}
	const query = `INSERT INTO document_requests
	(queue_number, user_id, document_type_id, document_type_name, purpose, quantity, total_amount,
	 status, current_stage, payment_status, request_date, target_release_date)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		request.QueueNumber,
		request.UserID,
		request.DocumentTypeID,
		request.DocumentTypeName,
		request.Purpose,
		request.Quantity,
		request.TotalAmount,
		request.Status,
		request.CurrentStage,
		request.PaymentStatus,
		request.RequestDate,
		request.TargetReleaseDate,
	).Scan(&request.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateQueueNumber
		}
		return fmt.Errorf("create document request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *RequestRepository) GetByID(ctx context.Context, id int64) (*models.DocumentRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM document_requests WHERE id = $1 LIMIT 1`, requestColumns)
	var request models.DocumentRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get document request %d: %w", id, err)
	}
	return &request, nil
}

// ListByUser returns a student's requests, newest first.
func (r *RequestRepository) ListByUser(ctx context.Context, userID string) ([]models.DocumentRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM document_requests WHERE user_id = $1 ORDER BY request_date DESC`, requestColumns)
	var requests []models.DocumentRequest
	if err := r.db.SelectContext(ctx, &requests, query, userID); err != nil {
		return nil, fmt.Errorf("list requests for user %s: %w", userID, err)
	}
	return requests, nil
}

// ListTerminalByUser returns completed and cancelled requests, most recently
// finished first.
func (r *RequestRepository) ListTerminalByUser(ctx context.Context, userID string) ([]models.DocumentRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM document_requests
	WHERE user_id = $1 AND status IN ($2, $3)
	ORDER BY COALESCE(completed_date, request_date) DESC`, requestColumns)
	var requests []models.DocumentRequest
	if err := r.db.SelectContext(ctx, &requests, query, userID, models.RequestStatusCompleted, models.RequestStatusCancelled); err != nil {
		return nil, fmt.Errorf("list request history for user %s: %w", userID, err)
	}
	return requests, nil
}

// CountByStatus aggregates a student's requests by status. Always reads the
// live table; queue stats are never cached.
func (r *RequestRepository) CountByStatus(ctx context.Context, userID string) (*models.QueueStats, error) {
	const query = `SELECT status, COUNT(*) AS total FROM document_requests WHERE user_id = $1 GROUP BY status`
	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("count requests for user %s: %w", userID, err)
	}
	defer rows.Close() //nolint:errcheck

	stats := &models.QueueStats{}
	for rows.Next() {
		var status models.RequestStatus
		var total int
		if err := rows.Scan(&status, &total); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		applyStatusCount(stats, status, total)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return stats, nil
}

func applyStatusCount(stats *models.QueueStats, status models.RequestStatus, total int) {
	switch models.NormalizeStatus(status) {
	case models.RequestStatusActive:
		stats.Active += total
	case models.RequestStatusProcessing:
		stats.Processing += total
	case models.RequestStatusReady:
		stats.Ready += total
	case models.RequestStatusCompleted:
		stats.Completed += total
	case models.RequestStatusCancelled:
		stats.Cancelled += total
	}
	stats.Total += total
}

// Overview aggregates registrar-wide workload for staff dashboards.
func (r *RequestRepository) Overview(ctx context.Context) (*models.RequestOverview, error) {
	overview := &models.RequestOverview{ByDocumentType: make(map[string]int)}

	const statusQuery = `SELECT status, COUNT(*) AS total FROM document_requests GROUP BY status`
	rows, err := r.db.QueryxContext(ctx, statusQuery)
	if err != nil {
		return nil, fmt.Errorf("overview status counts: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	for rows.Next() {
		var status models.RequestStatus
		var total int
		if err := rows.Scan(&status, &total); err != nil {
			return nil, fmt.Errorf("scan overview count: %w", err)
		}
		switch models.NormalizeStatus(status) {
		case models.RequestStatusActive:
			overview.Active += total
		case models.RequestStatusProcessing:
			overview.Processing += total
		case models.RequestStatusReady:
			overview.Ready += total
		}
		overview.Total += total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate overview counts: %w", err)
	}

	const typeQuery = `SELECT document_type_name, COUNT(*) AS total FROM document_requests GROUP BY document_type_name`
	typeRows, err := r.db.QueryxContext(ctx, typeQuery)
	if err != nil {
		return nil, fmt.Errorf("overview type counts: %w", err)
	}
	defer typeRows.Close() //nolint:errcheck
	for typeRows.Next() {
		var name string
		var total int
		if err := typeRows.Scan(&name, &total); err != nil {
			return nil, fmt.Errorf("scan type count: %w", err)
		}
		overview.ByDocumentType[name] = total
	}
	if err := typeRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate type counts: %w", err)
	}

	return overview, nil
}

// ListWithStudents returns requests joined with requester identity for staff
// views and CSV export.
func (r *RequestRepository) ListWithStudents(ctx context.Context, filter models.RequestFilter) ([]models.RequestWithStudent, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(`SELECT dr.id, dr.queue_number, dr.user_id, dr.document_type_id, dr.document_type_name,
       dr.purpose, dr.quantity, dr.total_amount, dr.status, dr.current_stage, dr.payment_status,
       dr.request_date, dr.target_release_date, dr.completed_date, dr.processed_by, dr.processed_date,
       (u.first_name || ' ' || u.last_name) AS student_name, u.student_number, u.email AS student_email
	FROM document_requests dr
	JOIN users u ON u.id = dr.user_id`)

	conditions := make([]string, 0, 2)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("dr.user_id = $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("dr.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY dr.request_date DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.RequestWithStudent
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list requests with students: %w", err)
	}
	return requests, nil
}

// UpdateRequestStatusParams groups the columns written by a status transition.
type UpdateRequestStatusParams struct {
	ID             int64
	ExpectedStatus []models.RequestStatus
	Status         models.RequestStatus
	Stage          models.RequestStage
	ProcessedBy    string
	ProcessedDate  time.Time
	CompletedDate  *time.Time
}

// UpdateStatus performs the transition as one conditional update keyed by id
// and the expected prior status, so concurrent staff actions serialize
// instead of interleaving field writes. Returns sql.ErrNoRows when the
// request was no longer in an expected status.
func (r *RequestRepository) UpdateStatus(ctx context.Context, params UpdateRequestStatusParams) error {
	setParts := []string{
		"status = :status",
		"current_stage = :stage",
		"processed_by = :processed_by",
		"processed_date = :processed_date",
	}
	if params.CompletedDate != nil {
		setParts = append(setParts, "completed_date = :completed_date")
	}

	expected := make([]string, len(params.ExpectedStatus))
	for i, status := range params.ExpectedStatus {
		expected[i] = fmt.Sprintf("'%s'", status)
	}
	query := fmt.Sprintf("UPDATE document_requests SET %s WHERE id = :id AND status IN (%s)",
		strings.Join(setParts, ", "),
		strings.Join(expected, ","),
	)

	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":             params.ID,
		"status":         params.Status,
		"stage":          params.Stage,
		"processed_by":   params.ProcessedBy,
		"processed_date": params.ProcessedDate,
		"completed_date": params.CompletedDate,
	})
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check request update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdatePaymentStage moves the request between payment-related stages while
// mirroring the payment state; a single atomic update per the consistency
// contract between requests and payments.
func (r *RequestRepository) UpdatePaymentStage(ctx context.Context, id int64, stage models.RequestStage, paymentStatus models.PaymentState) error {
	const query = `UPDATE document_requests SET current_stage = $2, payment_status = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, stage, paymentStatus)
	if err != nil {
		return fmt.Errorf("update request payment stage: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check payment stage rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
