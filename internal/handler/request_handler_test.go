package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdm-registrar/registrar-api/internal/dto"
	"github.com/cdm-registrar/registrar-api/internal/middleware"
	"github.com/cdm-registrar/registrar-api/internal/models"
	appErrors "github.com/cdm-registrar/registrar-api/pkg/errors"
)

type fakeRequestSrv struct {
	submitResp  *models.DocumentRequest
	submitErr   error
	lastSubmit  dto.SubmitRequestRequest
	advanceResp *dto.AdvanceStatusResponse
	advanceErr  error
	lastStatus  dto.AdvanceStatusRequest
	listResp    []models.DocumentRequest
	lastQuery   dto.RequestListQuery
}

func (f *fakeRequestSrv) Submit(_ context.Context, userID string, req dto.SubmitRequestRequest) (*models.DocumentRequest, error) {
	f.lastSubmit = req
	return f.submitResp, f.submitErr
}

func (f *fakeRequestSrv) AdvanceStatus(_ context.Context, requestID int64, actorID string, req dto.AdvanceStatusRequest) (*dto.AdvanceStatusResponse, error) {
	f.lastStatus = req
	return f.advanceResp, f.advanceErr
}

func (f *fakeRequestSrv) ListForUser(context.Context, string) ([]models.DocumentRequest, error) {
	return f.listResp, nil
}

func (f *fakeRequestSrv) HistoryForUser(context.Context, string) ([]models.DocumentRequest, error) {
	return f.listResp, nil
}

func (f *fakeRequestSrv) QueueStats(context.Context, string) (*models.QueueStats, error) {
	return &models.QueueStats{}, nil
}

func (f *fakeRequestSrv) Overview(context.Context) (*models.RequestOverview, error) {
	return &models.RequestOverview{}, nil
}

func (f *fakeRequestSrv) ListAll(_ context.Context, query dto.RequestListQuery) ([]models.RequestWithStudent, error) {
	f.lastQuery = query
	return nil, nil
}

func (f *fakeRequestSrv) Detail(context.Context, int64, string, models.UserRole) (*dto.RequestDetailResponse, error) {
	return &dto.RequestDetailResponse{}, nil
}

func (f *fakeRequestSrv) Workflow(context.Context, int64, string, models.UserRole) ([]models.WorkflowHistory, error) {
	return nil, nil
}

func authedContext(t *testing.T, rec *httptest.ResponseRecorder, role models.UserRole) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(rec)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: role})
	return c
}

func TestRequestHandlerSubmit(t *testing.T) {
	srv := &fakeRequestSrv{submitResp: &models.DocumentRequest{ID: 7, QueueNumber: "CDM-20250602-1234"}}
	handler := NewRequestHandler(srv)

	rec := httptest.NewRecorder()
	c := authedContext(t, rec, models.RoleStudent)
	body := `{"document_type_id": 2, "purpose": "board exam", "quantity": 1}`
	c.Request = httptest.NewRequest(http.MethodPost, "/requests", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Submit(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(2), srv.lastSubmit.DocumentTypeID)
	assert.Equal(t, 1, srv.lastSubmit.Quantity)

	var envelope struct {
		Data struct {
			Request models.DocumentRequest `json:"request"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "CDM-20250602-1234", envelope.Data.Request.QueueNumber)
}

func TestRequestHandlerSubmitRejectsBadPayload(t *testing.T) {
	handler := NewRequestHandler(&fakeRequestSrv{})

	rec := httptest.NewRecorder()
	c := authedContext(t, rec, models.RoleStudent)
	c.Request = httptest.NewRequest(http.MethodPost, "/requests", strings.NewReader(`{"quantity": 0}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Submit(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestHandlerSubmitRequiresAuth(t *testing.T) {
	handler := NewRequestHandler(&fakeRequestSrv{})

	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/requests", strings.NewReader(`{}`))

	handler.Submit(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestHandlerAdvanceStatus(t *testing.T) {
	srv := &fakeRequestSrv{advanceResp: &dto.AdvanceStatusResponse{
		Request:            &models.DocumentRequest{ID: 7, Status: models.RequestStatusProcessing},
		NotificationQueued: true,
	}}
	handler := NewRequestHandler(srv)

	rec := httptest.NewRecorder()
	c := authedContext(t, rec, models.RoleStaff)
	c.Params = gin.Params{{Key: "id", Value: "7"}}
	c.Request = httptest.NewRequest(http.MethodPut, "/requests/7/status", strings.NewReader(`{"status": "Processing"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.AdvanceStatus(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.RequestStatusProcessing, srv.lastStatus.Status)
	assert.NotContains(t, rec.Body.String(), "notification could not be queued")
}

func TestRequestHandlerAdvanceStatusWarnsOnDroppedNotification(t *testing.T) {
	srv := &fakeRequestSrv{advanceResp: &dto.AdvanceStatusResponse{
		Request:            &models.DocumentRequest{ID: 7, Status: models.RequestStatusReady},
		NotificationQueued: false,
	}}
	handler := NewRequestHandler(srv)

	rec := httptest.NewRecorder()
	c := authedContext(t, rec, models.RoleStaff)
	c.Params = gin.Params{{Key: "id", Value: "7"}}
	c.Request = httptest.NewRequest(http.MethodPut, "/requests/7/status", strings.NewReader(`{"status": "Ready"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.AdvanceStatus(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "notification could not be queued")
}

func TestRequestHandlerAdvanceStatusConflict(t *testing.T) {
	handler := NewRequestHandler(&fakeRequestSrv{advanceErr: appErrors.ErrInvalidTransition})

	rec := httptest.NewRecorder()
	c := authedContext(t, rec, models.RoleStaff)
	c.Params = gin.Params{{Key: "id", Value: "7"}}
	c.Request = httptest.NewRequest(http.MethodPut, "/requests/7/status", strings.NewReader(`{"status": "Completed"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.AdvanceStatus(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_TRANSITION")
}

func TestRequestHandlerAdvanceStatusInvalidID(t *testing.T) {
	handler := NewRequestHandler(&fakeRequestSrv{})

	rec := httptest.NewRecorder()
	c := authedContext(t, rec, models.RoleStaff)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	c.Request = httptest.NewRequest(http.MethodPut, "/requests/abc/status", strings.NewReader(`{"status": "Ready"}`))

	handler.AdvanceStatus(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestHandlerListParsesStatusFilter(t *testing.T) {
	srv := &fakeRequestSrv{}
	handler := NewRequestHandler(srv)

	rec := httptest.NewRecorder()
	c := authedContext(t, rec, models.RoleAdmin)
	c.Request = httptest.NewRequest(http.MethodGet, "/admin/requests?status=Active,%20Processing&limit=50&offset=10", nil)

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.RequestStatus{models.RequestStatusActive, models.RequestStatusProcessing}, srv.lastQuery.Status)
	assert.Equal(t, 50, srv.lastQuery.Limit)
	assert.Equal(t, 10, srv.lastQuery.Offset)
}
