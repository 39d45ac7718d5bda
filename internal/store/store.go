// Package store defines the persistence contract shared by the PostgreSQL
// and MongoDB adapters. Services depend on these shapes, so the backing
// driver is an assembly-time decision.
package store

import (
	"context"
	"time"

	"github.com/cdm-registrar/registrar-api/internal/models"
	"github.com/cdm-registrar/registrar-api/internal/repository"
)

// DocumentTypeStore serves the requestable-document catalog.
type DocumentTypeStore interface {
	ListActive(ctx context.Context) ([]models.DocumentType, error)
	GetActiveByID(ctx context.Context, id int64) (*models.DocumentType, error)
}

// RequestStore persists document requests and their status transitions.
type RequestStore interface {
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

// PaymentStore persists proof-of-payment records.
type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id int64) (*models.Payment, error)
	GetByRequestID(ctx context.Context, requestID int64) (*models.Payment, error)
	Replace(ctx context.Context, payment *models.Payment) error
	MarkVerified(ctx context.Context, id int64, officerID string, ts time.Time) error
	MarkRejected(ctx context.Context, id int64, officerID, reason string, ts time.Time) error
	RevertDecision(ctx context.Context, id int64, toStatus models.PaymentStatus) error
	ListPending(ctx context.Context) ([]models.PendingPayment, error)
}

// WorkflowHistoryStore persists the append-only transition trail.
type WorkflowHistoryStore interface {
	Create(ctx context.Context, entry *models.WorkflowHistory) error
	ListByRequest(ctx context.Context, requestID int64) ([]models.WorkflowHistory, error)
}

// UserStore persists accounts, refresh tokens, and session audit logs.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Stores bundles one adapter's implementations.
type Stores struct {
	DocumentTypes DocumentTypeStore
	Requests      RequestStore
	Payments      PaymentStore
	Workflow      WorkflowHistoryStore
	Users         UserStore
}
