package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cdm-registrar/registrar-api/pkg/jobs"
)

const (
	jobDocumentReady  = "document_ready"
	jobPaymentOutcome = "payment_outcome"
)

type documentReadyPayload struct {
	Email        string
	StudentName  string
	DocumentType string
	QueueNumber  string
}

type paymentOutcomePayload struct {
	Email       string
	StudentName string
	QueueNumber string
	Approved    bool
	Reason      string
}

// Sender delivers student emails. Satisfied by pkg/mailer.
type Sender interface {
	SendDocumentReady(toEmail, studentName, documentType, queueNumber string) error
	SendPaymentOutcome(toEmail, studentName, queueNumber string, approved bool, reason string) error
}

// NotificationService dispatches student emails through the background job
// queue. Delivery is best effort: a full queue or a failing SMTP server is
// reported to the caller as a flag, never as a request error, and a failure
// never touches workflow state.
type NotificationService struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService builds the service and its backing queue. A nil
// sender disables dispatch entirely; enqueue calls succeed as no-ops.
func NewNotificationService(sender Sender, cfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{logger: logger}
	if sender == nil {
		return s
	}
	handler := func(ctx context.Context, job jobs.Job) error {
		switch job.Type {
		case jobDocumentReady:
			payload, ok := job.Payload.(documentReadyPayload)
			if !ok {
				return fmt.Errorf("unexpected payload for %s job", job.Type)
			}
			return sender.SendDocumentReady(payload.Email, payload.StudentName, payload.DocumentType, payload.QueueNumber)
		case jobPaymentOutcome:
			payload, ok := job.Payload.(paymentOutcomePayload)
			if !ok {
				return fmt.Errorf("unexpected payload for %s job", job.Type)
			}
			return sender.SendPaymentOutcome(payload.Email, payload.StudentName, payload.QueueNumber, payload.Approved, payload.Reason)
		default:
			return fmt.Errorf("unknown job type %q", job.Type)
		}
	}
	s.queue = jobs.NewQueue("notifications", handler, cfg)
	return s
}

// Start launches the queue workers.
func (s *NotificationService) Start(ctx context.Context) {
	if s.queue == nil {
		return
	}
	s.queue.Start(ctx)
}

// Stop drains and stops the queue workers.
func (s *NotificationService) Stop() {
	if s.queue == nil {
		return
	}
	s.queue.Stop()
}

// QueueDocumentReady enqueues a pickup notification. Returns false when the
// job could not be enqueued.
func (s *NotificationService) QueueDocumentReady(email, studentName, documentType, queueNumber string) bool {
	return s.enqueue(jobDocumentReady, documentReadyPayload{
		Email:        email,
		StudentName:  studentName,
		DocumentType: documentType,
		QueueNumber:  queueNumber,
	})
}

// QueuePaymentOutcome enqueues a verification outcome notification.
func (s *NotificationService) QueuePaymentOutcome(email, studentName, queueNumber string, approved bool, reason string) bool {
	return s.enqueue(jobPaymentOutcome, paymentOutcomePayload{
		Email:       email,
		StudentName: studentName,
		QueueNumber: queueNumber,
		Approved:    approved,
		Reason:      reason,
	})
}

func (s *NotificationService) enqueue(jobType string, payload interface{}) bool {
	if s.queue == nil {
		return true
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:       uuid.NewString(),
		Type:     jobType,
		Payload:  payload,
		Enqueued: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("failed to enqueue notification",
			zap.String("job_type", jobType),
			zap.Error(err))
		return false
	}
	return true
}
