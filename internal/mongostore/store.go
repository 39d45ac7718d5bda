// Package mongostore implements the persistence layer on MongoDB. It mirrors
// the method sets of the PostgreSQL repositories so services select a driver
// at startup without caring which backs them. Not-found lookups and failed
// conditional updates surface as sql.ErrNoRows so callers handle both
// drivers uniformly.
package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collDocumentTypes   = "document_types"
	collRequests        = "document_requests"
	collPayments        = "payments"
	collWorkflowHistory = "workflow_history"
	collUsers           = "users"
	collRefreshTokens   = "refresh_tokens"
	collAuditLogs       = "audit_logs"
	collCounters        = "counters"
)

// Store bundles the collections shared by the concrete stores.
type Store struct {
	db *mongo.Database
}

// New wraps the database handle.
func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

// EnsureIndexes creates the indexes the stores rely on. Safe to run on every
// startup; index creation is idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		collRequests: {
			{Keys: bson.D{{Key: "queue_number", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "request_date", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		collPayments: {
			{Keys: bson.D{{Key: "request_id", Value: 1}, {Key: "_id", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		collWorkflowHistory: {
			{Keys: bson.D{{Key: "request_id", Value: 1}, {Key: "processed_at", Value: 1}}},
		},
		collUsers: {
			{Keys: bson.D{{Key: "student_number", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		collRefreshTokens: {
			{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
	}

	for coll, models := range specs {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// nextID atomically increments the named counter and returns the new value.
// Counters are seeded on first use via upsert.
func (s *Store) nextID(ctx context.Context, name string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.db.Collection(collCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("increment counter %s: %w", name, err)
	}
	return counter.Seq, nil
}
