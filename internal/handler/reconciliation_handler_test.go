package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"billrecon/internal/domain"
	"billrecon/internal/handler"
	"billrecon/internal/service"
	"billrecon/mocks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newReconHandler() (*handler.ReconciliationHandler, *mocks.MockReconciliationService) {
	mockSvc := new(mocks.MockReconciliationService)
	return handler.NewReconciliationHandler(mockSvc), mockSvc
}

func decode(t *testing.T, w *httptest.ResponseRecorder) handler.APIResponse {
	t.Helper()
	var resp handler.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestReconciliationHandler_Run_Success(t *testing.T) {
	h, mockSvc := newReconHandler()
	live := false
	run := &domain.ReconciliationRun{ID: uuid.New(), Status: domain.RunStatusCompleted, TotalSuccess: 100}
	mockSvc.On("Run", mock.Anything, service.RunRequest{
		Trigger:     domain.RunTriggerAPI,
		DryRun:      &live,
		MergePolicy: domain.MergeByItemName,
	}).Return(run, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/reconciliations",
		bytes.NewBufferString(`{"dry_run":false,"merge_policy":"item_name"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Run(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, decode(t, w).Success)
	mockSvc.AssertExpectations(t)
}

func TestReconciliationHandler_Run_EmptyBodyUsesDefaults(t *testing.T) {
	h, mockSvc := newReconHandler()
	mockSvc.On("Run", mock.Anything, service.RunRequest{Trigger: domain.RunTriggerAPI}).
		Return(&domain.ReconciliationRun{ID: uuid.New()}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/reconciliations", http.NoBody)

	h.Run(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestReconciliationHandler_Run_Conflict(t *testing.T) {
	h, mockSvc := newReconHandler()
	mockSvc.On("Run", mock.Anything, mock.Anything).Return(nil, domain.ErrRunInProgress)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/reconciliations", http.NoBody)

	h.Run(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decode(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, "RUN_IN_PROGRESS", resp.Error.Code)
}

func TestReconciliationHandler_Run_InvalidBody(t *testing.T) {
	h, mockSvc := newReconHandler()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/reconciliations", bytes.NewBufferString(`{"dry_run":`))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Run(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestReconciliationHandler_Run_InvalidPolicy(t *testing.T) {
	h, mockSvc := newReconHandler()
	mockSvc.On("Run", mock.Anything, mock.Anything).
		Return(nil, errors.Join(domain.ErrInvalidRequest, errors.New("unknown merge policy")))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/reconciliations", bytes.NewBufferString(`{"merge_policy":"x"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Run(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decode(t, w).Error.Code)
}

func TestReconciliationHandler_List(t *testing.T) {
	h, mockSvc := newReconHandler()
	mockSvc.On("ListRuns", mock.Anything, 10, 5).Return([]domain.ReconciliationRun{{ID: uuid.New()}}, 11, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/reconciliations?offset=10&limit=5", http.NoBody)

	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 11, resp.Meta.Total)
	assert.Equal(t, 5, resp.Meta.Limit)
}

func TestReconciliationHandler_List_ClampsLimit(t *testing.T) {
	h, mockSvc := newReconHandler()
	mockSvc.On("ListRuns", mock.Anything, 0, 20).Return([]domain.ReconciliationRun{}, 0, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/reconciliations?offset=-3&limit=1000", http.NoBody)

	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestReconciliationHandler_GetByID(t *testing.T) {
	h, mockSvc := newReconHandler()
	id := uuid.New()
	mockSvc.On("GetRun", mock.Anything, id).Return(&domain.ReconciliationRun{ID: id}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/reconciliations/"+id.String(), http.NoBody)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	h.GetByID(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReconciliationHandler_GetByID_NotFound(t *testing.T) {
	h, mockSvc := newReconHandler()
	id := uuid.New()
	mockSvc.On("GetRun", mock.Anything, id).Return(nil, domain.ErrNotFound)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/reconciliations/"+id.String(), http.NoBody)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	h.GetByID(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReconciliationHandler_GetByID_InvalidID(t *testing.T) {
	h, _ := newReconHandler()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/reconciliations/nope", http.NoBody)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}

	h.GetByID(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", decode(t, w).Error.Code)
}

func TestReconciliationHandler_ReportURL(t *testing.T) {
	h, mockSvc := newReconHandler()
	id := uuid.New()
	mockSvc.On("ReportURL", mock.Anything, id, "success_invoices.csv").Return("https://signed.example/x", nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/", http.NoBody)
	c.Params = gin.Params{{Key: "id", Value: id.String()}, {Key: "file", Value: "success_invoices.csv"}}

	h.ReportURL(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, "https://signed.example/x", data["url"])
}

func TestReconciliationHandler_PurgeOrders_DefaultsToDryRun(t *testing.T) {
	h, mockSvc := newReconHandler()
	mockSvc.On("PurgeOrders", mock.Anything, "API-ORDER-001", true).
		Return(&service.PurgeResult{YourRef: "API-ORDER-001", DryRun: true, Matched: 3}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/orders/purge", bytes.NewBufferString(`{"your_ref":"API-ORDER-001"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	h.PurgeOrders(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestReconciliationHandler_PurgeOrders_NotConfigured(t *testing.T) {
	h, mockSvc := newReconHandler()
	mockSvc.On("PurgeOrders", mock.Anything, "", false).Return(nil, domain.ErrSourceNotConfigured)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/orders/purge", bytes.NewBufferString(`{"dry_run":false}`))
	c.Request.Header.Set("Content-Type", "application/json")

	h.PurgeOrders(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
