package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/cdm-registrar/registrar-api/internal/dto"
	"github.com/cdm-registrar/registrar-api/internal/models"
	appErrors "github.com/cdm-registrar/registrar-api/pkg/errors"
	"github.com/cdm-registrar/registrar-api/pkg/storage"
)

type paymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id int64) (*models.Payment, error)
	GetByRequestID(ctx context.Context, requestID int64) (*models.Payment, error)
	Replace(ctx context.Context, payment *models.Payment) error
	MarkVerified(ctx context.Context, id int64, officerID string, ts time.Time) error
	MarkRejected(ctx context.Context, id int64, officerID, reason string, ts time.Time) error
	RevertDecision(ctx context.Context, id int64, toStatus models.PaymentStatus) error
	ListPending(ctx context.Context) ([]models.PendingPayment, error)
}

type paymentRequestStore interface {
	GetByID(ctx context.Context, id int64) (*models.DocumentRequest, error)
	UpdatePaymentStage(ctx context.Context, id int64, stage models.RequestStage, paymentStatus models.PaymentState) error
}

type proofStorage interface {
	SaveProof(requestID int64, originalName string, r io.Reader) (string, error)
}

type proofSigner interface {
	Generate(proofRef string) (string, time.Time, error)
	Parse(token string) (string, error)
}

type outcomeNotifier interface {
	QueuePaymentOutcome(email, studentName, queueNumber string, approved bool, reason string) bool
}

type paymentMetrics interface {
	RecordPaymentDecision(decision string)
	RecordNotificationFailure()
}

// PaymentService owns proof-of-payment handling and officer verification.
// Every payment mutation mirrors its outcome onto the parent request's
// stage and payment status in the same call.
type PaymentService struct {
	payments paymentStore
	requests paymentRequestStore
	history  workflowRecorder
	users    requestUserReader
	storage  proofStorage
	signer   proofSigner
	notifier outcomeNotifier
	metrics  paymentMetrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewPaymentService constructs the service.
func NewPaymentService(
	payments paymentStore,
	requests paymentRequestStore,
	history workflowRecorder,
	users requestUserReader,
	storage proofStorage,
	signer proofSigner,
	notifier outcomeNotifier,
	metrics paymentMetrics,
	logger *zap.Logger,
) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		payments: payments,
		requests: requests,
		history:  history,
		users:    users,
		storage:  storage,
		signer:   signer,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// UploadProof records proof of payment for a request the caller owns. A
// rejected payment is overwritten in place so at most one payment record per
// request ever exists in a non-terminal state.
func (s *PaymentService) UploadProof(ctx context.Context, requestID int64, userID string, req dto.UploadProofRequest, filename string, file io.Reader) (*dto.UploadProofResponse, error) {
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.UserID != userID {
		return nil, appErrors.ErrForbidden
	}
	if request.PaymentStatus == models.PaymentStateNotRequired {
		return nil, appErrors.Clone(appErrors.ErrValidation, "request does not require payment")
	}
	if models.NormalizeStatus(request.Status).IsTerminal() {
		return nil, appErrors.ErrInvalidTransition
	}

	existing, err := s.payments.GetByRequestID(ctx, requestID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Storage(err, "failed to load payment")
	}
	if existing != nil {
		switch existing.Status {
		case models.PaymentStatusVerified:
			return nil, appErrors.ErrPaymentAlreadyVerified
		case models.PaymentStatusPending, models.PaymentStatusPendingVerification:
			return nil, appErrors.Clone(appErrors.ErrConflict, "proof already awaiting verification")
		}
	}

	proofRef, err := s.storage.SaveProof(requestID, filename, file)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedProofType) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "proof must be a jpg, jpeg, png, or pdf file")
		}
		return nil, appErrors.Storage(err, "failed to store proof file")
	}

	now := s.now()
	var refNumber *string
	if req.ReferenceNumber != "" {
		refNumber = &req.ReferenceNumber
	}

	payment := &models.Payment{
		RequestID:       requestID,
		Amount:          request.TotalAmount,
		PaymentMethod:   req.PaymentMethod,
		ReferenceNumber: refNumber,
		ProofURL:        proofRef,
		Status:          models.PaymentStatusPendingVerification,
		PaymentDate:     now,
	}

	if existing != nil {
		// Rejected payment: same record, fresh proof, rejection cleared.
		payment.ID = existing.ID
		if err := s.payments.Replace(ctx, payment); err != nil {
			return nil, appErrors.Storage(err, "failed to replace payment")
		}
	} else {
		if err := s.payments.Create(ctx, payment); err != nil {
			return nil, appErrors.Storage(err, "failed to create payment")
		}
	}

	if err := s.requests.UpdatePaymentStage(ctx, requestID, models.StagePaymentVerification, models.PaymentStatePendingVerification); err != nil {
		return nil, appErrors.Storage(err, "failed to update request stage")
	}
	request.CurrentStage = models.StagePaymentVerification
	request.PaymentStatus = models.PaymentStatePendingVerification

	s.recordHistory(ctx, requestID, models.StagePaymentVerification, models.ActionProofUploaded, nil, &userID)

	return &dto.UploadProofResponse{Payment: payment, Request: request}, nil
}

// Verify approves a payment. The parent request moves to Pending Review but
// its status stays put: starting document processing is a separate staff
// decision.
func (s *PaymentService) Verify(ctx context.Context, paymentID int64, officerID string) (*dto.PaymentDecisionResponse, error) {
	payment, err := s.loadPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status == models.PaymentStatusVerified {
		return nil, appErrors.ErrPaymentAlreadyVerified
	}
	if !payment.Status.IsOpen() {
		return nil, appErrors.ErrInvalidTransition
	}

	now := s.now()
	openStatus := payment.Status
	if err := s.payments.MarkVerified(ctx, paymentID, officerID, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Another officer decided first.
			return nil, appErrors.ErrInvalidTransition
		}
		return nil, appErrors.Storage(err, "failed to verify payment")
	}
	payment.Status = models.PaymentStatusVerified
	payment.VerifiedBy = &officerID
	payment.VerifiedDate = &now
	payment.RejectionReason = nil

	request, err := s.loadRequest(ctx, payment.RequestID)
	if err != nil {
		s.revertDecision(ctx, paymentID, openStatus)
		return nil, err
	}
	if err := s.requests.UpdatePaymentStage(ctx, request.ID, models.StagePendingReview, models.PaymentStateVerified); err != nil {
		s.revertDecision(ctx, paymentID, openStatus)
		return nil, appErrors.Storage(err, "failed to update request stage")
	}
	request.CurrentStage = models.StagePendingReview
	request.PaymentStatus = models.PaymentStateVerified

	s.recordHistory(ctx, request.ID, models.StagePendingReview, models.ActionPaymentVerified, nil, &officerID)
	if s.metrics != nil {
		s.metrics.RecordPaymentDecision("verified")
	}

	queued := s.notifyOutcome(ctx, request, true, "")

	return &dto.PaymentDecisionResponse{Payment: payment, Request: request, NotificationQueued: queued}, nil
}

// Reject declines a payment with a mandatory reason and routes the student
// back to the upload step.
func (s *PaymentService) Reject(ctx context.Context, paymentID int64, officerID, reason string) (*dto.PaymentDecisionResponse, error) {
	if reason == "" {
		return nil, appErrors.ErrMissingRejectionReason
	}

	payment, err := s.loadPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status == models.PaymentStatusVerified {
		return nil, appErrors.ErrPaymentAlreadyVerified
	}
	if !payment.Status.IsOpen() {
		return nil, appErrors.ErrInvalidTransition
	}

	now := s.now()
	openStatus := payment.Status
	if err := s.payments.MarkRejected(ctx, paymentID, officerID, reason, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidTransition
		}
		return nil, appErrors.Storage(err, "failed to reject payment")
	}
	payment.Status = models.PaymentStatusRejected
	payment.VerifiedBy = &officerID
	payment.VerifiedDate = &now
	payment.RejectionReason = &reason

	request, err := s.loadRequest(ctx, payment.RequestID)
	if err != nil {
		s.revertDecision(ctx, paymentID, openStatus)
		return nil, err
	}
	if err := s.requests.UpdatePaymentStage(ctx, request.ID, models.StagePendingPayment, models.PaymentStateRejected); err != nil {
		s.revertDecision(ctx, paymentID, openStatus)
		return nil, appErrors.Storage(err, "failed to update request stage")
	}
	request.CurrentStage = models.StagePendingPayment
	request.PaymentStatus = models.PaymentStateRejected

	s.recordHistory(ctx, request.ID, models.StagePendingPayment, models.ActionPaymentRejected, &reason, &officerID)
	if s.metrics != nil {
		s.metrics.RecordPaymentDecision("rejected")
	}

	queued := s.notifyOutcome(ctx, request, false, reason)

	return &dto.PaymentDecisionResponse{Payment: payment, Request: request, NotificationQueued: queued}, nil
}

// ListPending returns the verification work queue, oldest upload first.
func (s *PaymentService) ListPending(ctx context.Context) ([]models.PendingPayment, error) {
	pending, err := s.payments.ListPending(ctx)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list pending payments")
	}
	return pending, nil
}

// ProofURL issues a short-lived signed token for viewing a proof file.
func (s *PaymentService) ProofURL(ctx context.Context, paymentID int64) (string, error) {
	payment, err := s.loadPayment(ctx, paymentID)
	if err != nil {
		return "", err
	}
	token, _, err := s.signer.Generate(payment.ProofURL)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign proof reference")
	}
	return token, nil
}

// ResolveProofToken validates a signed token and returns the proof reference.
func (s *PaymentService) ResolveProofToken(token string) (string, error) {
	ref, err := s.signer.Parse(token)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired proof link")
	}
	return ref, nil
}

func (s *PaymentService) loadRequest(ctx context.Context, id int64) (*models.DocumentRequest, error) {
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrRequestNotFound
		}
		return nil, appErrors.Storage(err, "failed to load request")
	}
	return request, nil
}

func (s *PaymentService) loadPayment(ctx context.Context, id int64) (*models.Payment, error) {
	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrPaymentNotFound
		}
		return nil, appErrors.Storage(err, "failed to load payment")
	}
	return payment, nil
}

// revertDecision compensates a committed officer decision whose mirror write
// onto the parent request failed, returning the payment to the open status
// it held beforehand so it can be decided again.
func (s *PaymentService) revertDecision(ctx context.Context, paymentID int64, toStatus models.PaymentStatus) {
	if err := s.payments.RevertDecision(ctx, paymentID, toStatus); err != nil {
		s.logger.Error("failed to revert payment decision",
			zap.Int64("payment_id", paymentID),
			zap.String("to_status", string(toStatus)),
			zap.Error(err))
	}
}

func (s *PaymentService) recordHistory(ctx context.Context, requestID int64, stage models.RequestStage, action string, comments, actorID *string) {
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

func (s *PaymentService) notifyOutcome(ctx context.Context, request *models.DocumentRequest, approved bool, reason string) bool {
	if s.notifier == nil {
		return true
	}
	student, err := s.users.FindByID(ctx, request.UserID)
	if err != nil {
		s.logger.Warn("failed to load student for payment notification",
			zap.Int64("request_id", request.ID),
			zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordNotificationFailure()
		}
		return false
	}
	queued := s.notifier.QueuePaymentOutcome(student.Email, student.FullName(), request.QueueNumber, approved, reason)
	if !queued && s.metrics != nil {
		s.metrics.RecordNotificationFailure()
	}
	return queued
}
