package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/cdm-registrar/registrar-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRequestRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	request := &models.DocumentRequest{
		QueueNumber:      "CDM-20250602-1234",
		UserID:           "student-1",
		DocumentTypeID:   2,
		DocumentTypeName: "Transcript of Records",
		Quantity:         1,
		TotalAmount:      150,
		Status:           models.RequestStatusActive,
		CurrentStage:     models.StagePendingPayment,
		PaymentStatus:    models.PaymentStatePending,
		RequestDate:      time.Now().UTC(),
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO document_requests")).
		WithArgs(request.QueueNumber, request.UserID, request.DocumentTypeID, request.DocumentTypeName,
			request.Purpose, request.Quantity, request.TotalAmount, request.Status, request.CurrentStage,
			request.PaymentStatus, request.RequestDate, request.TargetReleaseDate).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	require.NoError(t, repo.Create(context.Background(), request))
	require.Equal(t, int64(7), request.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryCreateDuplicateQueueNumber(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO document_requests")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "document_requests_queue_number_key"})

	err := repo.Create(context.Background(), &models.DocumentRequest{
		QueueNumber: "CDM-20250602-1234",
		RequestDate: time.Now().UTC(),
	})
	require.ErrorIs(t, err, ErrDuplicateQueueNumber)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectQuery("FROM document_requests WHERE id").
		WithArgs(int64(42)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 42)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryCountByStatusNormalizesLegacyRows(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	rows := sqlmock.NewRows([]string{"status", "total"}).
		AddRow("Active", 2).
		AddRow("Pending", 3).
		AddRow("Completed", 1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) AS total FROM document_requests WHERE user_id = $1 GROUP BY status")).
		WithArgs("student-1").
		WillReturnRows(rows)

	stats, err := repo.CountByStatus(context.Background(), "student-1")
	require.NoError(t, err)
	require.Equal(t, 5, stats.Active)
	require.Equal(t, 1, stats.Completed)
	require.Equal(t, 6, stats.Total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectExec("UPDATE document_requests SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), UpdateRequestStatusParams{
		ID:             7,
		ExpectedStatus: []models.RequestStatus{models.RequestStatusActive, models.RequestStatusPending},
		Status:         models.RequestStatusProcessing,
		Stage:          models.StageDocumentProcessing,
		ProcessedBy:    "staff-1",
		ProcessedDate:  time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryUpdateStatusNoMatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectExec("UPDATE document_requests SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), UpdateRequestStatusParams{
		ID:             7,
		ExpectedStatus: []models.RequestStatus{models.RequestStatusReady},
		Status:         models.RequestStatusCompleted,
		Stage:          models.StageCompleted,
		ProcessedBy:    "staff-1",
		ProcessedDate:  time.Now().UTC(),
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryUpdatePaymentStage(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE document_requests SET current_stage = $2, payment_status = $3 WHERE id = $1")).
		WithArgs(int64(7), models.StagePaymentVerification, models.PaymentStatePendingVerification).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdatePaymentStage(context.Background(), 7, models.StagePaymentVerification, models.PaymentStatePendingVerification)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
