package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cdm-registrar/registrar-api/internal/models"
	appErrors "github.com/cdm-registrar/registrar-api/pkg/errors"
)

const documentTypeCacheKey = "catalog:document_types"

type documentTypeStore interface {
	ListActive(ctx context.Context) ([]models.DocumentType, error)
	GetActiveByID(ctx context.Context, id int64) (*models.DocumentType, error)
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// DocumentTypeService serves the requestable-document catalog. The catalog
// changes rarely, so listings come from Redis when warm.
type DocumentTypeService struct {
	store    documentTypeStore
	cache    catalogCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewDocumentTypeService constructs the service. A nil cache disables
// caching.
func NewDocumentTypeService(store documentTypeStore, cache catalogCache, cacheTTL time.Duration, logger *zap.Logger) *DocumentTypeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &DocumentTypeService{store: store, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// List returns active catalog entries grouped by category ordering.
func (s *DocumentTypeService) List(ctx context.Context) ([]models.DocumentType, error) {
	if s.cache != nil {
		var cached []models.DocumentType
		if err := s.cache.Get(ctx, documentTypeCacheKey, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("document type cache read failed", zap.Error(err))
		}
	}

	types, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list document types")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, documentTypeCacheKey, types, s.cacheTTL); err != nil {
			s.logger.Warn("document type cache write failed", zap.Error(err))
		}
	}
	return types, nil
}

// GetActive loads one active catalog entry, mapping absence to the
// domain-level invalid document type error.
func (s *DocumentTypeService) GetActive(ctx context.Context, id int64) (*models.DocumentType, error) {
	dt, err := s.store.GetActiveByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidDocumentType
		}
		return nil, appErrors.Storage(err, "failed to load document type")
	}
	return dt, nil
}
