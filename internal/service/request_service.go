package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cdm-registrar/registrar-api/internal/dto"
	"github.com/cdm-registrar/registrar-api/internal/models"
	"github.com/cdm-registrar/registrar-api/internal/repository"
	appErrors "github.com/cdm-registrar/registrar-api/pkg/errors"
)

type requestStore interface {
	Create(ctx context.Context, request *models.DocumentRequest) error
	GetByID(ctx context.Context, id int64) (*models.DocumentRequest, error)
	ListByUser(ctx context.Context, userID string) ([]models.DocumentRequest, error)
	ListTerminalByUser(ctx context.Context, userID string) ([]models.DocumentRequest, error)
	CountByStatus(ctx context.Context, userID string) (*models.QueueStats, error)
	Overview(ctx context.Context) (*models.RequestOverview, error)
	ListWithStudents(ctx context.Context, filter models.RequestFilter) ([]models.RequestWithStudent, error)
	UpdateStatus(ctx context.Context, params repository.UpdateRequestStatusParams) error
	UpdatePaymentStage(ctx context.Context, id int64, stage models.RequestStage, paymentStatus models.PaymentState) error
}

type workflowRecorder interface {
	Create(ctx context.Context, entry *models.WorkflowHistory) error
	ListByRequest(ctx context.Context, requestID int64) ([]models.WorkflowHistory, error)
}

type catalogProvider interface {
	GetActive(ctx context.Context, id int64) (*models.DocumentType, error)
}

type paymentReader interface {
	GetByRequestID(ctx context.Context, requestID int64) (*models.Payment, error)
}

type requestUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type readyNotifier interface {
	QueueDocumentReady(email, studentName, documentType, queueNumber string) bool
}

type workflowMetrics interface {
	RecordSubmission(documentType string)
	RecordTransition(status string)
	RecordNotificationFailure()
	RecordQueueNumberRetry()
}

// RequestService owns the document-request lifecycle: submission, the status
// state machine, and the reads built on top of it.
type RequestService struct {
	requests requestStore
	history  workflowRecorder
	catalog  catalogProvider
	payments paymentReader
	users    requestUserReader
	notifier readyNotifier
	metrics  workflowMetrics
	queueGen *queueNumberGenerator
	logger   *zap.Logger
	now      func() time.Time
}

// NewRequestService constructs the service.
func NewRequestService(
	requests requestStore,
	history workflowRecorder,
	catalog catalogProvider,
	payments paymentReader,
	users requestUserReader,
	notifier readyNotifier,
	metrics workflowMetrics,
	logger *zap.Logger,
) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{
		requests: requests,
		history:  history,
		catalog:  catalog,
		payments: payments,
		users:    users,
		notifier: notifier,
		metrics:  metrics,
		queueGen: newQueueNumberGenerator(time.Now().UnixNano()),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Submit creates a document request. The initial stage depends on whether the
// document type charges a fee: paid requests start at Pending Payment, free
// ones go straight to Pending Review.
func (s *RequestService) Submit(ctx context.Context, userID string, req dto.SubmitRequestRequest) (*models.DocumentRequest, error) {
	if req.Quantity < 1 {
		return nil, appErrors.ErrInvalidQuantity
	}

	docType, err := s.catalog.GetActive(ctx, req.DocumentTypeID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	target := now.AddDate(0, 0, docType.ProcessingDays)

	request := &models.DocumentRequest{
		UserID:            userID,
		DocumentTypeID:    docType.ID,
		DocumentTypeName:  docType.Name,
		Purpose:           req.Purpose,
		Quantity:          req.Quantity,
		TotalAmount:       docType.Amount * float64(req.Quantity),
		Status:            models.RequestStatusActive,
		RequestDate:       now,
		TargetReleaseDate: &target,
	}
	if docType.RequiresPayment {
		request.CurrentStage = models.StagePendingPayment
		request.PaymentStatus = models.PaymentStatePending
	} else {
		request.CurrentStage = models.StagePendingReview
		request.PaymentStatus = models.PaymentStateNotRequired
	}

	for attempt := 0; ; attempt++ {
		request.QueueNumber = s.queueGen.Next(now)
		err = s.requests.Create(ctx, request)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrDuplicateQueueNumber) && attempt < maxQueueNumberAttempts-1 {
			if s.metrics != nil {
				s.metrics.RecordQueueNumberRetry()
			}
			s.logger.Debug("queue number collision, retrying",
				zap.String("queue_number", request.QueueNumber))
			continue
		}
		return nil, appErrors.Storage(err, "failed to create request")
	}

	s.record(ctx, request.ID, request.CurrentStage, models.ActionRequestSubmitted, nil, &userID)
	if s.metrics != nil {
		s.metrics.RecordSubmission(docType.Name)
	}

	return request, nil
}

// transitionRule captures the statuses a target may be reached from.
type transitionRule struct {
	from  []models.RequestStatus
	stage models.RequestStage
}

var transitionRules = map[models.RequestStatus]transitionRule{
	models.RequestStatusProcessing: {
		from:  []models.RequestStatus{models.RequestStatusActive, models.RequestStatusPending},
		stage: models.StageDocumentProcessing,
	},
	models.RequestStatusReady: {
		from:  []models.RequestStatus{models.RequestStatusProcessing},
		stage: models.StageReadyForPickup,
	},
	models.RequestStatusCompleted: {
		from:  []models.RequestStatus{models.RequestStatusReady},
		stage: models.StageCompleted,
	},
	models.RequestStatusCancelled: {
		from: []models.RequestStatus{
			models.RequestStatusActive, models.RequestStatusPending,
			models.RequestStatusProcessing, models.RequestStatusReady,
		},
	},
}

// AdvanceStatus drives a request to the target status. Terminal re-requests
// are idempotent no-ops; any other unlisted transition fails with
// InvalidTransition. The underlying write is a single conditional update, so
// two racing staff actions serialize and the loser gets InvalidTransition.
func (s *RequestService) AdvanceStatus(ctx context.Context, requestID int64, actorID string, req dto.AdvanceStatusRequest) (*dto.AdvanceStatusResponse, error) {
	target := models.NormalizeStatus(req.Status)

	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	current := models.NormalizeStatus(request.Status)

	if current.IsTerminal() {
		if current == target {
			return &dto.AdvanceStatusResponse{Request: request, NotificationQueued: true}, nil
		}
		return nil, appErrors.ErrInvalidTransition
	}

	rule, ok := transitionRules[target]
	if !ok {
		return nil, appErrors.ErrInvalidTransition
	}
	if !statusIn(current, rule.from) {
		return nil, appErrors.ErrInvalidTransition
	}
	if target == models.RequestStatusProcessing &&
		request.PaymentStatus != models.PaymentStateNotRequired &&
		request.PaymentStatus != models.PaymentStateVerified {
		return nil, appErrors.ErrInvalidTransition
	}

	now := s.now()
	stage := rule.stage
	if target == models.RequestStatusCancelled {
		// Cancellation freezes the request wherever it was.
		stage = request.CurrentStage
	}

	params := repository.UpdateRequestStatusParams{
		ID:             requestID,
		ExpectedStatus: expectedVariants(rule.from),
		Status:         target,
		Stage:          stage,
		ProcessedBy:    actorID,
		ProcessedDate:  now,
	}
	if target.IsTerminal() {
		params.CompletedDate = &now
	}

	if err := s.requests.UpdateStatus(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Lost a race or the row moved on since the read.
			return nil, appErrors.ErrInvalidTransition
		}
		return nil, appErrors.Storage(err, "failed to update request status")
	}

	request.Status = target
	request.CurrentStage = stage
	request.ProcessedBy = &actorID
	request.ProcessedDate = &now
	if target.IsTerminal() {
		request.CompletedDate = &now
	}

	action := models.ActionStatusChanged
	if target == models.RequestStatusCancelled {
		action = models.ActionRequestCancelled
	}
	var comments *string
	if req.Comments != "" {
		comments = &req.Comments
	}
	s.record(ctx, requestID, stage, action, comments, &actorID)
	if s.metrics != nil {
		s.metrics.RecordTransition(string(target))
	}

	queued := true
	if target == models.RequestStatusReady {
		queued = s.notifyReady(ctx, request)
	}

	return &dto.AdvanceStatusResponse{Request: request, NotificationQueued: queued}, nil
}

// ListForUser returns a student's requests, newest first.
func (s *RequestService) ListForUser(ctx context.Context, userID string) ([]models.DocumentRequest, error) {
	requests, err := s.requests.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list requests")
	}
	return requests, nil
}

// HistoryForUser returns a student's completed and cancelled requests.
func (s *RequestService) HistoryForUser(ctx context.Context, userID string) ([]models.DocumentRequest, error) {
	requests, err := s.requests.ListTerminalByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list request history")
	}
	return requests, nil
}

// QueueStats counts a student's requests by status. Always a fresh read of
// persisted state.
func (s *RequestService) QueueStats(ctx context.Context, userID string) (*models.QueueStats, error) {
	stats, err := s.requests.CountByStatus(ctx, userID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to count requests")
	}
	return stats, nil
}

// Overview aggregates registrar-wide workload for staff dashboards.
func (s *RequestService) Overview(ctx context.Context) (*models.RequestOverview, error) {
	overview, err := s.requests.Overview(ctx)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to aggregate overview")
	}
	return overview, nil
}

// ListAll returns requests with requester identity for staff views.
func (s *RequestService) ListAll(ctx context.Context, query dto.RequestListQuery) ([]models.RequestWithStudent, error) {
	statuses := make([]models.RequestStatus, 0, len(query.Status))
	for _, st := range query.Status {
		statuses = append(statuses, models.NormalizeStatus(st))
	}
	requests, err := s.requests.ListWithStudents(ctx, models.RequestFilter{
		UserID:   query.UserID,
		Statuses: statuses,
		Limit:    query.Limit,
		Offset:   query.Offset,
	})
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list requests")
	}
	return requests, nil
}

// Detail returns a request with its payment record and transition trail.
// Students may only read their own requests; officer roles see everything.
func (s *RequestService) Detail(ctx context.Context, requestID int64, requesterID string, role models.UserRole) (*dto.RequestDetailResponse, error) {
	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !role.IsOfficer() && request.UserID != requesterID {
		return nil, appErrors.ErrForbidden
	}

	detail := &dto.RequestDetailResponse{Request: request}

	payment, err := s.payments.GetByRequestID(ctx, requestID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Storage(err, "failed to load payment")
	}
	detail.Payment = payment

	history, err := s.history.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load workflow history")
	}
	detail.History = history

	return detail, nil
}

// Workflow returns the transition trail for a request the caller may read.
func (s *RequestService) Workflow(ctx context.Context, requestID int64, requesterID string, role models.UserRole) ([]models.WorkflowHistory, error) {
	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !role.IsOfficer() && request.UserID != requesterID {
		return nil, appErrors.ErrForbidden
	}
	history, err := s.history.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load workflow history")
	}
	return history, nil
}

func (s *RequestService) getRequest(ctx context.Context, id int64) (*models.DocumentRequest, error) {
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrRequestNotFound
		}
		return nil, appErrors.Storage(err, "failed to load request")
	}
	return request, nil
}

// record appends a workflow history entry. History is best-effort audit: a
// failed write is logged, never propagated, so a lost audit row cannot undo a
// committed transition.
func (s *RequestService) record(ctx context.Context, requestID int64, stage models.RequestStage, action string, comments, actorID *string) {
	entry := &models.WorkflowHistory{
		RequestID:   requestID,
		Stage:       stage,
		Action:      action,
		Comments:    comments,
		ProcessedBy: actorID,
		ProcessedAt: s.now(),
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to append workflow history",
			zap.Int64("request_id", requestID),
			zap.String("action", action),
			zap.Error(err))
	}
}

func (s *RequestService) notifyReady(ctx context.Context, request *models.DocumentRequest) bool {
	if s.notifier == nil {
		return true
	}
	student, err := s.users.FindByID(ctx, request.UserID)
	if err != nil {
		s.logger.Warn("failed to load student for ready notification",
			zap.Int64("request_id", request.ID),
			zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordNotificationFailure()
		}
		return false
	}
	queued := s.notifier.QueueDocumentReady(student.Email, student.FullName(), request.DocumentTypeName, request.QueueNumber)
	if !queued && s.metrics != nil {
		s.metrics.RecordNotificationFailure()
	}
	return queued
}

func statusIn(status models.RequestStatus, set []models.RequestStatus) bool {
	for _, candidate := range set {
		if status == candidate {
			return true
		}
	}
	return false
}

// expectedVariants widens the canonical from-set with the legacy spelling so
// conditional updates still match old rows.
func expectedVariants(from []models.RequestStatus) []models.RequestStatus {
	out := make([]models.RequestStatus, 0, len(from)+1)
	hasActive := false
	for _, st := range from {
		out = append(out, st)
		if st == models.RequestStatusActive {
			hasActive = true
		}
	}
	if hasActive && !statusIn(models.RequestStatusPending, out) {
		out = append(out, models.RequestStatusPending)
	}
	return out
}
