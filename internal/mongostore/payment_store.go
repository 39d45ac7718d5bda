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

// PaymentStore persists proof-of-payment records in MongoDB.
type PaymentStore struct {
	*Store
}

// NewPaymentStore constructs the store.
func NewPaymentStore(store *Store) *PaymentStore {
	return &PaymentStore{Store: store}
}

type paymentDoc struct {
	ID              int64                `bson:"_id"`
	RequestID       int64                `bson:"request_id"`
	Amount          float64              `bson:"amount"`
	PaymentMethod   string               `bson:"payment_method"`
	ReferenceNumber *string              `bson:"reference_number,omitempty"`
	ProofURL        string               `bson:"proof_url"`
	Status          models.PaymentStatus `bson:"status"`
	VerifiedBy      *string              `bson:"verified_by,omitempty"`
	VerifiedDate    *time.Time           `bson:"verified_date,omitempty"`
	RejectionReason *string              `bson:"rejection_reason,omitempty"`
	PaymentDate     time.Time            `bson:"payment_date"`
	UpdatedDate     *time.Time           `bson:"updated_date,omitempty"`
}

func paymentToDoc(p *models.Payment) paymentDoc {
	return paymentDoc{
		ID:              p.ID,
		RequestID:       p.RequestID,
		Amount:          p.Amount,
		PaymentMethod:   p.PaymentMethod,
		ReferenceNumber: p.ReferenceNumber,
		ProofURL:        p.ProofURL,
		Status:          p.Status,
		VerifiedBy:      p.VerifiedBy,
		VerifiedDate:    p.VerifiedDate,
		RejectionReason: p.RejectionReason,
		PaymentDate:     p.PaymentDate,
		UpdatedDate:     p.UpdatedDate,
	}
}

func (d paymentDoc) toModel() models.Payment {
	return models.Payment{
		ID:              d.ID,
		RequestID:       d.RequestID,
		Amount:          d.Amount,
		PaymentMethod:   d.PaymentMethod,
		ReferenceNumber: d.ReferenceNumber,
		ProofURL:        d.ProofURL,
		Status:          d.Status,
		VerifiedBy:      d.VerifiedBy,
		VerifiedDate:    d.VerifiedDate,
		RejectionReason: d.RejectionReason,
		PaymentDate:     d.PaymentDate,
		UpdatedDate:     d.UpdatedDate,
	}
}

// Create inserts a payment document and assigns the generated id.
func (s *PaymentStore) Create(ctx context.Context, payment *models.Payment) error {
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = time.Now().UTC()
	}
	id, err := s.nextID(ctx, collPayments)
	if err != nil {
		return err
	}
	payment.ID = id

	if _, err := s.db.Collection(collPayments).InsertOne(ctx, paymentToDoc(payment)); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// GetByID loads one payment.
func (s *PaymentStore) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	var doc paymentDoc
	err := s.db.Collection(collPayments).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get payment %d: %w", id, err)
	}
	p := doc.toModel()
	return &p, nil
}

// GetByRequestID loads the latest payment for a request.
func (s *PaymentStore) GetByRequestID(ctx context.Context, requestID int64) (*models.Payment, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}})
	var doc paymentDoc
	err := s.db.Collection(collPayments).FindOne(ctx, bson.M{"request_id": requestID}, opts).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get payment for request %d: %w", requestID, err)
	}
	p := doc.toModel()
	return &p, nil
}

// Replace overwrites a rejected payment in place with fresh proof details,
// clearing the prior rejection and verification fields.
func (s *PaymentStore) Replace(ctx context.Context, payment *models.Payment) error {
	now := time.Now().UTC()
	payment.UpdatedDate = &now

	filter := bson.M{"_id": payment.ID, "status": models.PaymentStatusRejected}
	update := bson.M{
		"$set": bson.M{
			"amount":           payment.Amount,
			"payment_method":   payment.PaymentMethod,
			"reference_number": payment.ReferenceNumber,
			"proof_url":        payment.ProofURL,
			"status":           payment.Status,
			"payment_date":     payment.PaymentDate,
			"updated_date":     payment.UpdatedDate,
		},
		"$unset": bson.M{
			"rejection_reason": "",
			"verified_by":      "",
			"verified_date":    "",
		},
	}
	result, err := s.db.Collection(collPayments).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("replace payment: %w", err)
	}
	if result.MatchedCount == 0 {
		return sql.ErrNoRows
	}
	return nil
}

var openPaymentStatuses = []models.PaymentStatus{
	models.PaymentStatusPending,
	models.PaymentStatusPendingVerification,
}

// MarkVerified records an officer approval; conditional on the payment still
// being open so a second decision loses cleanly.
func (s *PaymentStore) MarkVerified(ctx context.Context, id int64, officerID string, ts time.Time) error {
	filter := bson.M{"_id": id, "status": bson.M{"$in": openPaymentStatuses}}
	update := bson.M{
		"$set": bson.M{
			"status":        models.PaymentStatusVerified,
			"verified_by":   officerID,
			"verified_date": ts,
			"updated_date":  ts,
		},
		"$unset": bson.M{"rejection_reason": ""},
	}
	result, err := s.db.Collection(collPayments).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("verify payment: %w", err)
	}
	if result.MatchedCount == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkRejected records an officer rejection with the stated reason.
func (s *PaymentStore) MarkRejected(ctx context.Context, id int64, officerID, reason string, ts time.Time) error {
	filter := bson.M{"_id": id, "status": bson.M{"$in": openPaymentStatuses}}
	update := bson.M{
		"$set": bson.M{
			"status":           models.PaymentStatusRejected,
			"verified_by":      officerID,
			"verified_date":    ts,
			"rejection_reason": reason,
			"updated_date":     ts,
		},
	}
	result, err := s.db.Collection(collPayments).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("reject payment: %w", err)
	}
	if result.MatchedCount == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RevertDecision returns a decided payment to an open status with the
// decision fields cleared, compensating a failed mirror write on the parent
// request.
func (s *PaymentStore) RevertDecision(ctx context.Context, id int64, toStatus models.PaymentStatus) error {
	decidedStatuses := []models.PaymentStatus{
		models.PaymentStatusVerified,
		models.PaymentStatusRejected,
	}
	filter := bson.M{"_id": id, "status": bson.M{"$in": decidedStatuses}}
	update := bson.M{
		"$set": bson.M{
			"status":       toStatus,
			"updated_date": time.Now().UTC(),
		},
		"$unset": bson.M{
			"verified_by":      "",
			"verified_date":    "",
			"rejection_reason": "",
		},
	}
	result, err := s.db.Collection(collPayments).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("revert payment decision: %w", err)
	}
	if result.MatchedCount == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListPending returns payments awaiting verification joined with request and
// requester identity, oldest first.
func (s *PaymentStore) ListPending(ctx context.Context) ([]models.PendingPayment, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": models.PaymentStatusPendingVerification}}},
		{{Key: "$sort", Value: bson.D{{Key: "payment_date", Value: 1}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         collRequests,
			"localField":   "request_id",
			"foreignField": "_id",
			"as":           "request",
		}}},
		{{Key: "$unwind", Value: "$request"}},
		{{Key: "$lookup", Value: bson.M{
			"from":         collUsers,
			"localField":   "request.user_id",
			"foreignField": "_id",
			"as":           "student",
		}}},
		{{Key: "$unwind", Value: "$student"}},
	}

	cursor, err := s.db.Collection(collPayments).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		paymentDoc `bson:",inline"`
		Request    requestDoc `bson:"request"`
		Student    userDoc    `bson:"student"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode pending payments: %w", err)
	}

	pending := make([]models.PendingPayment, 0, len(rows))
	for _, row := range rows {
		pending = append(pending, models.PendingPayment{
			Payment:          row.paymentDoc.toModel(),
			QueueNumber:      row.Request.QueueNumber,
			DocumentTypeName: row.Request.DocumentTypeName,
			TotalAmount:      row.Request.TotalAmount,
			StudentName:      row.Student.FirstName + " " + row.Student.LastName,
			StudentNumber:    row.Student.StudentNumber,
			StudentEmail:     row.Student.Email,
		})
	}
	return pending, nil
}
