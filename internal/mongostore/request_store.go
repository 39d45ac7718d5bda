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
	"github.com/cdm-registrar/registrar-api/internal/repository"
)

// RequestStore persists document requests in MongoDB. Request ids stay
// monotonic via the counters collection so queue displays sort the same way
// they do on the relational driver.
type RequestStore struct {
	*Store
}

// NewRequestStore constructs the store.
func NewRequestStore(store *Store) *RequestStore {
	return &RequestStore{Store: store}
}

type requestDoc struct {
	ID                int64                `bson:"_id"`
	QueueNumber       string               `bson:"queue_number"`
	UserID            string               `bson:"user_id"`
	DocumentTypeID    int64                `bson:"document_type_id"`
	DocumentTypeName  string               `bson:"document_type_name"`
	Purpose           string               `bson:"purpose"`
	Quantity          int                  `bson:"quantity"`
	TotalAmount       float64              `bson:"total_amount"`
	Status            models.RequestStatus `bson:"status"`
	CurrentStage      models.RequestStage  `bson:"current_stage"`
	PaymentStatus     models.PaymentState  `bson:"payment_status"`
	RequestDate       time.Time            `bson:"request_date"`
	TargetReleaseDate *time.Time           `bson:"target_release_date,omitempty"`
	CompletedDate     *time.Time           `bson:"completed_date,omitempty"`
	ProcessedBy       *string              `bson:"processed_by,omitempty"`
	ProcessedDate     *time.Time           `bson:"processed_date,omitempty"`
}

func requestToDoc(r *models.DocumentRequest) requestDoc {
	return requestDoc{
		ID:                r.ID,
		QueueNumber:       r.QueueNumber,
		UserID:            r.UserID,
		DocumentTypeID:    r.DocumentTypeID,
		DocumentTypeName:  r.DocumentTypeName,
		Purpose:           r.Purpose,
		Quantity:          r.Quantity,
		TotalAmount:       r.TotalAmount,
		Status:            r.Status,
		CurrentStage:      r.CurrentStage,
		PaymentStatus:     r.PaymentStatus,
		RequestDate:       r.RequestDate,
		TargetReleaseDate: r.TargetReleaseDate,
		CompletedDate:     r.CompletedDate,
		ProcessedBy:       r.ProcessedBy,
		ProcessedDate:     r.ProcessedDate,
	}
}

func (d requestDoc) toModel() models.DocumentRequest {
	return models.DocumentRequest{
		ID:                d.ID,
		QueueNumber:       d.QueueNumber,
		UserID:            d.UserID,
		DocumentTypeID:    d.DocumentTypeID,
		DocumentTypeName:  d.DocumentTypeName,
		Purpose:           d.Purpose,
		Quantity:          d.Quantity,
		TotalAmount:       d.TotalAmount,
		Status:            d.Status,
		CurrentStage:      d.CurrentStage,
		PaymentStatus:     d.PaymentStatus,
		RequestDate:       d.RequestDate,
		TargetReleaseDate: d.TargetReleaseDate,
		CompletedDate:     d.CompletedDate,
		ProcessedBy:       d.ProcessedBy,
		ProcessedDate:     d.ProcessedDate,
	}
}

// Create inserts a request document and assigns the generated id. The unique
// index on queue_number turns collisions into ErrDuplicateQueueNumber.
func (s *RequestStore) Create(ctx context.Context, request *models.DocumentRequest) error {
	if request.RequestDate.IsZero() {
		request.RequestDate = time.Now().UTC()
	}
	id, err := s.nextID(ctx, collRequests)
	if err != nil {
		return err
	}
	request.ID = id

	if _, err := s.db.Collection(collRequests).InsertOne(ctx, requestToDoc(request)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicateQueueNumber
		}
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// GetByID loads one request.
func (s *RequestStore) GetByID(ctx context.Context, id int64) (*models.DocumentRequest, error) {
	var doc requestDoc
	err := s.db.Collection(collRequests).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get request %d: %w", id, err)
	}
	req := doc.toModel()
	return &req, nil
}

// ListByUser returns a student's requests, newest first.
func (s *RequestStore) ListByUser(ctx context.Context, userID string) ([]models.DocumentRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "request_date", Value: -1}})
	return s.listRequests(ctx, bson.M{"user_id": userID}, opts)
}

// ListTerminalByUser returns a student's completed and cancelled requests.
func (s *RequestStore) ListTerminalByUser(ctx context.Context, userID string) ([]models.DocumentRequest, error) {
	filter := bson.M{
		"user_id": userID,
		"status":  bson.M{"$in": []models.RequestStatus{models.RequestStatusCompleted, models.RequestStatusCancelled}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "completed_date", Value: -1}, {Key: "request_date", Value: -1}})
	return s.listRequests(ctx, filter, opts)
}

func (s *RequestStore) listRequests(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.DocumentRequest, error) {
	cursor, err := s.db.Collection(collRequests).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []requestDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode requests: %w", err)
	}
	requests := make([]models.DocumentRequest, 0, len(docs))
	for _, d := range docs {
		requests = append(requests, d.toModel())
	}
	return requests, nil
}

// CountByStatus aggregates a student's requests by status. Legacy vocabulary
// is folded into the canonical set.
func (s *RequestStore) CountByStatus(ctx context.Context, userID string) (*models.QueueStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "total": bson.M{"$sum": 1}}}},
	}
	cursor, err := s.db.Collection(collRequests).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("count requests by status: %w", err)
	}
	defer cursor.Close(ctx)

	stats := &models.QueueStats{}
	for cursor.Next(ctx) {
		var row struct {
			Status models.RequestStatus `bson:"_id"`
			Total  int                  `bson:"total"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("decode status count: %w", err)
		}
		stats.Total += row.Total
		switch models.NormalizeStatus(row.Status) {
		case models.RequestStatusActive:
			stats.Active += row.Total
		case models.RequestStatusProcessing:
			stats.Processing += row.Total
		case models.RequestStatusReady:
			stats.Ready += row.Total
		case models.RequestStatusCompleted:
			stats.Completed += row.Total
		case models.RequestStatusCancelled:
			stats.Cancelled += row.Total
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return stats, nil
}

// Overview aggregates registrar-wide workload for the staff dashboard.
func (s *RequestStore) Overview(ctx context.Context) (*models.RequestOverview, error) {
	overview := &models.RequestOverview{ByDocumentType: map[string]int{}}

	statusPipe := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "total": bson.M{"$sum": 1}}}},
	}
	cursor, err := s.db.Collection(collRequests).Aggregate(ctx, statusPipe)
	if err != nil {
		return nil, fmt.Errorf("aggregate overview statuses: %w", err)
	}
	for cursor.Next(ctx) {
		var row struct {
			Status models.RequestStatus `bson:"_id"`
			Total  int                  `bson:"total"`
		}
		if err := cursor.Decode(&row); err != nil {
			cursor.Close(ctx)
			return nil, fmt.Errorf("decode overview status: %w", err)
		}
		overview.Total += row.Total
		switch models.NormalizeStatus(row.Status) {
		case models.RequestStatusActive:
			overview.Active += row.Total
		case models.RequestStatusProcessing:
			overview.Processing += row.Total
		case models.RequestStatusReady:
			overview.Ready += row.Total
		}
	}
	if err := cursor.Err(); err != nil {
		cursor.Close(ctx)
		return nil, fmt.Errorf("iterate overview statuses: %w", err)
	}
	cursor.Close(ctx)

	typePipe := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": bson.M{"$nin": []models.RequestStatus{
			models.RequestStatusCompleted, models.RequestStatusCancelled,
		}}}}},
		{{Key: "$group", Value: bson.M{"_id": "$document_type_name", "total": bson.M{"$sum": 1}}}},
	}
	cursor, err = s.db.Collection(collRequests).Aggregate(ctx, typePipe)
	if err != nil {
		return nil, fmt.Errorf("aggregate overview types: %w", err)
	}
	defer cursor.Close(ctx)
	for cursor.Next(ctx) {
		var row struct {
			Name  string `bson:"_id"`
			Total int    `bson:"total"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("decode overview type: %w", err)
		}
		overview.ByDocumentType[row.Name] = row.Total
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate overview types: %w", err)
	}
	return overview, nil
}

// ListWithStudents joins requests with requester identity via $lookup for
// staff views and exports.
func (s *RequestStore) ListWithStudents(ctx context.Context, filter models.RequestFilter) ([]models.RequestWithStudent, error) {
	match := bson.M{}
	if filter.UserID != "" {
		match["user_id"] = filter.UserID
	}
	if len(filter.Statuses) > 0 {
		match["status"] = bson.M{"$in": filter.Statuses}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "request_date", Value: -1}}}},
	}
	if filter.Offset > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$skip", Value: filter.Offset}})
	}
	if filter.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: filter.Limit}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$lookup", Value: bson.M{
			"from":         collUsers,
			"localField":   "user_id",
			"foreignField": "_id",
			"as":           "student",
		}}},
		bson.D{{Key: "$unwind", Value: "$student"}},
	)

	cursor, err := s.db.Collection(collRequests).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("list requests with students: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		requestDoc `bson:",inline"`
		Student    userDoc `bson:"student"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode requests with students: %w", err)
	}

	results := make([]models.RequestWithStudent, 0, len(rows))
	for _, row := range rows {
		results = append(results, models.RequestWithStudent{
			DocumentRequest: row.requestDoc.toModel(),
			StudentName:     row.Student.FirstName + " " + row.Student.LastName,
			StudentNumber:   row.Student.StudentNumber,
			StudentEmail:    row.Student.Email,
		})
	}
	return results, nil
}

// UpdateStatus performs the transition as one conditional update keyed by id
// and the expected prior status, matching the relational driver's semantics.
// Returns sql.ErrNoRows when the request was no longer in an expected status.
func (s *RequestStore) UpdateStatus(ctx context.Context, params repository.UpdateRequestStatusParams) error {
	set := bson.M{
		"status":         params.Status,
		"current_stage":  params.Stage,
		"processed_by":   params.ProcessedBy,
		"processed_date": params.ProcessedDate,
	}
	if params.CompletedDate != nil {
		set["completed_date"] = params.CompletedDate
	}

	filter := bson.M{
		"_id":    params.ID,
		"status": bson.M{"$in": params.ExpectedStatus},
	}
	result, err := s.db.Collection(collRequests).UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	if result.MatchedCount == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdatePaymentStage moves the request between payment-related stages while
// mirroring the payment state.
func (s *RequestStore) UpdatePaymentStage(ctx context.Context, id int64, stage models.RequestStage, paymentStatus models.PaymentState) error {
	result, err := s.db.Collection(collRequests).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"current_stage": stage, "payment_status": paymentStatus}},
	)
	if err != nil {
		return fmt.Errorf("update request payment stage: %w", err)
	}
	if result.MatchedCount == 0 {
		return sql.ErrNoRows
	}
	return nil
}
