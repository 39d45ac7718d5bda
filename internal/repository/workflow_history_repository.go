package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cdm-registrar/registrar-api/internal/models"
)

// WorkflowHistoryRepository appends and reads the audit trail of request
// transitions. Rows are insert-only.
type WorkflowHistoryRepository struct {
	db *sqlx.DB
}

// NewWorkflowHistoryRepository constructs the repository.
func NewWorkflowHistoryRepository(db *sqlx.DB) *WorkflowHistoryRepository {
	return &WorkflowHistoryRepository{db: db}
}

// Create appends one history entry.
func (r *WorkflowHistoryRepository) Create(ctx context.Context, entry *models.WorkflowHistory) error {
	if entry.ProcessedAt.IsZero() {
		entry.ProcessedAt = time.Now().UTC()
	}
	const query = `INSERT INTO workflow_history (request_id, stage, action, comments, processed_by, processed_at)
	VALUES (:request_id, :stage, :action, :comments, :processed_by, :processed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create workflow history: %w", err)
	}
	return nil
}

// ListByRequest returns a request's trail in chronological order.
func (r *WorkflowHistoryRepository) ListByRequest(ctx context.Context, requestID int64) ([]models.WorkflowHistory, error) {
	const query = `SELECT id, request_id, stage, action, comments, processed_by, processed_at
	FROM workflow_history WHERE request_id = $1 ORDER BY processed_at ASC, id ASC`
	var entries []models.WorkflowHistory
	if err := r.db.SelectContext(ctx, &entries, query, requestID); err != nil {
		return nil, fmt.Errorf("list workflow history for request %d: %w", requestID, err)
	}
	return entries, nil
}
