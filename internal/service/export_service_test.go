package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cdm-registrar/registrar-api/internal/dto"
	"github.com/cdm-registrar/registrar-api/internal/models"
	appErrors "github.com/cdm-registrar/registrar-api/pkg/errors"
)

type stubExportLister struct {
	rows       []models.RequestWithStudent
	listErr    error
	lastFilter models.RequestFilter
	request    *models.DocumentRequest
	getErr     error
}

func (m *stubExportLister) ListWithStudents(ctx context.Context, filter models.RequestFilter) ([]models.RequestWithStudent, error) {
	m.lastFilter = filter
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.rows, nil
}

func (m *stubExportLister) GetByID(ctx context.Context, id int64) (*models.DocumentRequest, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.request == nil || m.request.ID != id {
		return nil, sql.ErrNoRows
	}
	r := *m.request
	return &r, nil
}

func exportRow(queue string) models.RequestWithStudent {
	return models.RequestWithStudent{
		DocumentRequest: models.DocumentRequest{
			QueueNumber:      queue,
			DocumentTypeName: "Transcript of Records",
			Quantity:         2,
			TotalAmount:      300,
			Status:           models.RequestStatusPending,
			CurrentStage:     models.StageAwaitingPayment,
			PaymentStatus:    models.PaymentStatePending,
			RequestDate:      time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC),
		},
		StudentName:   "Juan Dela Cruz",
		StudentNumber: "2021-00123",
	}
}

func newExportFixture(lister *stubExportLister, users map[string]models.User) *ExportService {
	return NewExportService(lister, &mockUserReader{users: users}, zap.NewNop())
}

func TestRequestsCSVNormalizesLegacyVocabulary(t *testing.T) {
	lister := &stubExportLister{rows: []models.RequestWithStudent{exportRow("CDM-20250603-1234")}}
	svc := newExportFixture(lister, nil)

	payload, err := svc.RequestsCSV(context.Background(), dto.RequestListQuery{
		Status: []models.RequestStatus{models.RequestStatusPending},
	})
	require.NoError(t, err)

	out := string(payload)
	assert.Contains(t, out, "Queue Number")
	assert.Contains(t, out, "CDM-20250603-1234")
	assert.Contains(t, out, string(models.RequestStatusActive))
	assert.Contains(t, out, string(models.StagePendingPayment))
	assert.NotContains(t, out, string(models.StageAwaitingPayment))
	require.Len(t, lister.lastFilter.Statuses, 1)
	assert.Equal(t, models.RequestStatusActive, lister.lastFilter.Statuses[0])
}

func TestRequestsPDFRendersRegister(t *testing.T) {
	lister := &stubExportLister{rows: []models.RequestWithStudent{
		exportRow("CDM-20250603-1234"),
		exportRow("CDM-20250603-5678"),
	}}
	svc := newExportFixture(lister, nil)

	payload, err := svc.RequestsPDF(context.Background(), dto.RequestListQuery{})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(payload, []byte("%PDF")))
}

func TestRequestsPDFStorageFailure(t *testing.T) {
	lister := &stubExportLister{listErr: errors.New("connection reset")}
	svc := newExportFixture(lister, nil)

	_, err := svc.RequestsPDF(context.Background(), dto.RequestListQuery{})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrStorageFailure.Code, appErr.Code)
}

func TestClaimStubPDFForReadyRequest(t *testing.T) {
	release := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	lister := &stubExportLister{request: &models.DocumentRequest{
		ID:                4,
		QueueNumber:       "CDM-20250603-1234",
		UserID:            "student-1",
		DocumentTypeName:  "Transcript of Records",
		Quantity:          1,
		TotalAmount:       150,
		Status:            models.RequestStatusReady,
		TargetReleaseDate: &release,
	}}
	svc := newExportFixture(lister, map[string]models.User{
		"student-1": {ID: "student-1", FirstName: "Juan", LastName: "Dela Cruz"},
	})

	payload, err := svc.ClaimStubPDF(context.Background(), 4, "student-1", models.RoleStudent)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(payload, []byte("%PDF")))
}

func TestClaimStubPDFOwnershipAndReadiness(t *testing.T) {
	lister := &stubExportLister{request: &models.DocumentRequest{
		ID:     4,
		UserID: "student-1",
		Status: models.RequestStatusProcessing,
	}}
	svc := newExportFixture(lister, nil)

	_, err := svc.ClaimStubPDF(context.Background(), 4, "student-2", models.RoleStudent)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.ClaimStubPDF(context.Background(), 4, "student-1", models.RoleStudent)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestClaimStubPDFUnknownRequest(t *testing.T) {
	svc := newExportFixture(&stubExportLister{}, nil)

	_, err := svc.ClaimStubPDF(context.Background(), 99, "student-1", models.RoleStudent)
	assert.ErrorIs(t, err, appErrors.ErrRequestNotFound)
}

func TestClaimStubPDFStorageFailureIsNotMaskedAsMissing(t *testing.T) {
	lister := &stubExportLister{getErr: errors.New("connection reset")}
	svc := newExportFixture(lister, nil)

	_, err := svc.ClaimStubPDF(context.Background(), 4, "student-1", models.RoleStudent)
	require.Error(t, err)
	require.False(t, errors.Is(err, appErrors.ErrRequestNotFound))

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrStorageFailure.Code, appErr.Code)
	assert.True(t, strings.Contains(appErr.Message, "failed to load request"))
}
