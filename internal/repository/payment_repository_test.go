package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/cdm-registrar/registrar-api/internal/models"
)

func TestPaymentRepositoryMarkVerified(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	ts := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments")).
		WithArgs(int64(3), models.PaymentStatusVerified, "officer-1", ts,
			models.PaymentStatusPending, models.PaymentStatusPendingVerification).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkVerified(context.Background(), 3, "officer-1", ts))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryMarkVerifiedAlreadyDecided(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkVerified(context.Background(), 3, "officer-1", time.Now().UTC())
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryMarkRejected(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	ts := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments")).
		WithArgs(int64(3), models.PaymentStatusRejected, "officer-1", ts, "amount mismatch",
			models.PaymentStatusPending, models.PaymentStatusPendingVerification).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkRejected(context.Background(), 3, "officer-1", "amount mismatch", ts))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryRevertDecision(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments")).
		WithArgs(int64(3), models.PaymentStatusPendingVerification, sqlmock.AnyArg(),
			models.PaymentStatusVerified, models.PaymentStatusRejected).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RevertDecision(context.Background(), 3, models.PaymentStatusPendingVerification))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryRevertDecisionRequiresDecidedRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RevertDecision(context.Background(), 3, models.PaymentStatusPending)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryReplaceRequiresRejectedRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Replace(context.Background(), &models.Payment{
		ID:            3,
		Amount:        150,
		PaymentMethod: "GCash",
		ProofURL:      "proofs/3/receipt.jpg",
		Status:        models.PaymentStatusPendingVerification,
		PaymentDate:   time.Now().UTC(),
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryReplaceSetsUpdatedDate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	payment := &models.Payment{
		ID:            3,
		Amount:        150,
		PaymentMethod: "GCash",
		ProofURL:      "proofs/3/receipt.jpg",
		Status:        models.PaymentStatusPendingVerification,
		PaymentDate:   time.Now().UTC(),
	}
	require.NoError(t, repo.Replace(context.Background(), payment))
	require.NotNil(t, payment.UpdatedDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryListPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "request_id", "amount", "payment_method", "reference_number", "proof_url",
		"status", "verified_by", "verified_date", "rejection_reason", "payment_date", "updated_date",
		"queue_number", "document_type_name", "total_amount", "student_name", "student_number", "student_email",
	}).AddRow(
		int64(3), int64(7), 150.0, "GCash", nil, "proofs/7/receipt.jpg",
		models.PaymentStatusPendingVerification, nil, nil, nil, time.Now().UTC(), nil,
		"CDM-20250602-1234", "Transcript of Records", 150.0, "Juan Dela Cruz", "2021-00123", "juan@cdm.edu.ph",
	)
	mock.ExpectQuery("FROM payments p").
		WithArgs(models.PaymentStatusPending, models.PaymentStatusPendingVerification).
		WillReturnRows(rows)

	pending, err := repo.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "CDM-20250602-1234", pending[0].QueueNumber)
	require.NoError(t, mock.ExpectationsWereMet())
}
