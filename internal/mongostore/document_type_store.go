package mongostore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cdm-registrar/registrar-api/internal/models"
)

// DocumentTypeStore serves the document-type catalog from MongoDB.
type DocumentTypeStore struct {
	*Store
}

// NewDocumentTypeStore constructs the store.
func NewDocumentTypeStore(store *Store) *DocumentTypeStore {
	return &DocumentTypeStore{Store: store}
}

type documentTypeDoc struct {
	ID                int64     `bson:"_id"`
	Name              string    `bson:"name"`
	Description       *string   `bson:"description,omitempty"`
	RequiresPayment   bool      `bson:"requires_payment"`
	Amount            float64   `bson:"amount"`
	ProcessingDays    int       `bson:"processing_days"`
	RequiresClearance bool      `bson:"requires_clearance"`
	Category          string    `bson:"category"`
	Active            bool      `bson:"active"`
	CreatedAt         time.Time `bson:"created_at"`
}

func (d documentTypeDoc) toModel() models.DocumentType {
	return models.DocumentType{
		ID:                d.ID,
		Name:              d.Name,
		Description:       d.Description,
		RequiresPayment:   d.RequiresPayment,
		Amount:            d.Amount,
		ProcessingDays:    d.ProcessingDays,
		RequiresClearance: d.RequiresClearance,
		Category:          d.Category,
		Active:            d.Active,
		CreatedAt:         d.CreatedAt,
	}
}

// ListActive returns catalog entries available for new requests, ordered by
// category then name.
func (s *DocumentTypeStore) ListActive(ctx context.Context) ([]models.DocumentType, error) {
	opts := options.Find().SetSort(bson.D{{Key: "category", Value: 1}, {Key: "name", Value: 1}})
	cursor, err := s.db.Collection(collDocumentTypes).Find(ctx, bson.M{"active": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("list document types: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []documentTypeDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode document types: %w", err)
	}
	types := make([]models.DocumentType, 0, len(docs))
	for _, d := range docs {
		types = append(types, d.toModel())
	}
	return types, nil
}

// GetActiveByID loads a single active catalog entry.
func (s *DocumentTypeStore) GetActiveByID(ctx context.Context, id int64) (*models.DocumentType, error) {
	var doc documentTypeDoc
	err := s.db.Collection(collDocumentTypes).FindOne(ctx, bson.M{"_id": id, "active": true}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get document type %d: %w", id, err)
	}
	dt := doc.toModel()
	return &dt, nil
}
