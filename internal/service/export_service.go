package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cdm-registrar/registrar-api/internal/dto"
	"github.com/cdm-registrar/registrar-api/internal/models"
	appErrors "github.com/cdm-registrar/registrar-api/pkg/errors"
	"github.com/cdm-registrar/registrar-api/pkg/export"
)

type exportRequestLister interface {
	ListWithStudents(ctx context.Context, filter models.RequestFilter) ([]models.RequestWithStudent, error)
	GetByID(ctx context.Context, id int64) (*models.DocumentRequest, error)
}

type exportUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// ExportService produces staff-facing exports: the request register as CSV
// and per-request claim stubs as PDF.
type ExportService struct {
	requests exportRequestLister
	users    exportUserReader
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(requests exportRequestLister, users exportUserReader, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		requests: requests,
		users:    users,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

var requestExportColumns = []string{
	"Queue Number", "Student Number", "Student Name", "Document Type",
	"Quantity", "Total Amount", "Status", "Stage", "Payment Status",
	"Request Date", "Completed Date",
}

// RequestsCSV renders the filtered request register as CSV.
func (s *ExportService) RequestsCSV(ctx context.Context, query dto.RequestListQuery) ([]byte, error) {
	table, err := s.requestTable(ctx, query)
	if err != nil {
		return nil, err
	}
	payload, err := s.csv.Render(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return payload, nil
}

// RequestsPDF renders the same register as a printable PDF report.
func (s *ExportService) RequestsPDF(ctx context.Context, query dto.RequestListQuery) ([]byte, error) {
	table, err := s.requestTable(ctx, query)
	if err != nil {
		return nil, err
	}
	payload, err := s.pdf.RenderTable(table, "Document Request Register")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}
	return payload, nil
}

func (s *ExportService) requestTable(ctx context.Context, query dto.RequestListQuery) (export.Table, error) {
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
		return export.Table{}, appErrors.Storage(err, "failed to list requests for export")
	}

	rows := make([][]string, 0, len(requests))
	for _, r := range requests {
		completed := ""
		if r.CompletedDate != nil {
			completed = r.CompletedDate.Format(time.RFC3339)
		}
		rows = append(rows, []string{
			r.QueueNumber,
			r.StudentNumber,
			r.StudentName,
			r.DocumentTypeName,
			fmt.Sprintf("%d", r.Quantity),
			fmt.Sprintf("%.2f", r.TotalAmount),
			string(models.NormalizeStatus(r.Status)),
			string(models.NormalizeStage(r.CurrentStage)),
			string(r.PaymentStatus),
			r.RequestDate.Format(time.RFC3339),
			completed,
		})
	}

	return export.Table{Columns: requestExportColumns, Rows: rows}, nil
}

// ClaimStubPDF renders the pickup slip for a request that has reached Ready
// or Completed. Students may only print their own stub.
func (s *ExportService) ClaimStubPDF(ctx context.Context, requestID int64, requesterID string, role models.UserRole) ([]byte, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrRequestNotFound
		}
		return nil, appErrors.Storage(err, "failed to load request")
	}
	if !role.IsOfficer() && request.UserID != requesterID {
		return nil, appErrors.ErrForbidden
	}

	status := models.NormalizeStatus(request.Status)
	if status != models.RequestStatusReady && status != models.RequestStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "claim stub available once the document is ready")
	}

	student, err := s.users.FindByID(ctx, request.UserID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load student")
	}

	release := ""
	if request.TargetReleaseDate != nil {
		release = request.TargetReleaseDate.Format("January 2, 2006")
	}
	payload, err := s.pdf.RenderClaimStub(export.ClaimStub{
		QueueNumber:  request.QueueNumber,
		StudentName:  student.FullName(),
		DocumentType: request.DocumentTypeName,
		Quantity:     request.Quantity,
		TotalAmount:  request.TotalAmount,
		ReleaseDate:  release,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render claim stub")
	}
	return payload, nil
}
