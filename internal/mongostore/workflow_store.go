package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cdm-registrar/registrar-api/internal/models"
)

// WorkflowHistoryStore persists the append-only transition trail in MongoDB.
type WorkflowHistoryStore struct {
	*Store
}

// NewWorkflowHistoryStore constructs the store.
func NewWorkflowHistoryStore(store *Store) *WorkflowHistoryStore {
	return &WorkflowHistoryStore{Store: store}
}

type workflowDoc struct {
	ID          int64               `bson:"_id"`
	RequestID   int64               `bson:"request_id"`
	Stage       models.RequestStage `bson:"stage"`
	Action      string              `bson:"action"`
	Comments    *string             `bson:"comments,omitempty"`
	ProcessedBy *string             `bson:"processed_by,omitempty"`
	ProcessedAt time.Time           `bson:"processed_at"`
}

// Create appends one history entry.
func (s *WorkflowHistoryStore) Create(ctx context.Context, entry *models.WorkflowHistory) error {
	if entry.ProcessedAt.IsZero() {
		entry.ProcessedAt = time.Now().UTC()
	}
	id, err := s.nextID(ctx, collWorkflowHistory)
	if err != nil {
		return err
	}
	entry.ID = id

	doc := workflowDoc{
		ID:          entry.ID,
		RequestID:   entry.RequestID,
		Stage:       entry.Stage,
		Action:      entry.Action,
		Comments:    entry.Comments,
		ProcessedBy: entry.ProcessedBy,
		ProcessedAt: entry.ProcessedAt,
	}
	if _, err := s.db.Collection(collWorkflowHistory).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("create workflow entry: %w", err)
	}
	return nil
}

// ListByRequest returns a request's trail in chronological order.
func (s *WorkflowHistoryStore) ListByRequest(ctx context.Context, requestID int64) ([]models.WorkflowHistory, error) {
	opts := options.Find().SetSort(bson.D{{Key: "processed_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.db.Collection(collWorkflowHistory).Find(ctx, bson.M{"request_id": requestID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list workflow entries: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []workflowDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode workflow entries: %w", err)
	}
	entries := make([]models.WorkflowHistory, 0, len(docs))
	for _, d := range docs {
		entries = append(entries, models.WorkflowHistory{
			ID:          d.ID,
			RequestID:   d.RequestID,
			Stage:       d.Stage,
			Action:      d.Action,
			Comments:    d.Comments,
			ProcessedBy: d.ProcessedBy,
			ProcessedAt: d.ProcessedAt,
		})
	}
	return entries, nil
}
