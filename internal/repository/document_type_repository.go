package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/cdm-registrar/registrar-api/internal/models"
)

// DocumentTypeRepository reads the requestable-document catalog. The catalog
// is maintained by administrative tooling; the workflow only reads it.
type DocumentTypeRepository struct {
	db *sqlx.DB
}

// NewDocumentTypeRepository constructs the repository.
func NewDocumentTypeRepository(db *sqlx.DB) *DocumentTypeRepository {
	return &DocumentTypeRepository{db: db}
}

const documentTypeColumns = `id, name, description, requires_payment, amount, processing_days, requires_clearance, category, active, created_at`

// ListActive returns active catalog entries ordered for display.
func (r *DocumentTypeRepository) ListActive(ctx context.Context) ([]models.DocumentType, error) {
	query := fmt.Sprintf(`SELECT %s FROM document_types WHERE active = TRUE ORDER BY category, name`, documentTypeColumns)
	var types []models.DocumentType
	if err := r.db.SelectContext(ctx, &types, query); err != nil {
		return nil, fmt.Errorf("list document types: %w", err)
	}
	return types, nil
}

// GetActiveByID resolves an active catalog entry by id. Inactive entries are
// treated as unknown so deactivated documents cannot be requested.
func (r *DocumentTypeRepository) GetActiveByID(ctx context.Context, id int64) (*models.DocumentType, error) {
	query := fmt.Sprintf(`SELECT %s FROM document_types WHERE id = $1 AND active = TRUE LIMIT 1`, documentTypeColumns)
	var dt models.DocumentType
	if err := r.db.GetContext(ctx, &dt, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get document type %d: %w", id, err)
	}
	return &dt, nil
}
