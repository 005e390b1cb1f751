package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"billrecon/internal/domain"
	"billrecon/internal/service"
)

// ReconciliationHandler handles reconciliation run endpoints.
type ReconciliationHandler struct {
	reconService service.ReconciliationService
}

// NewReconciliationHandler creates a new ReconciliationHandler.
func NewReconciliationHandler(reconService service.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconService: reconService}
}

// PurgeRequest is the body of an order purge.
type PurgeRequest struct {
	YourRef string `json:"your_ref"`
	DryRun  *bool  `json:"dry_run"`
}

// Run handles POST /api/v1/reconciliations
// Runs synchronously; the response carries the finished run.
func (h *ReconciliationHandler) Run(c *gin.Context) {
	var req service.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	req.Trigger = domain.RunTriggerAPI

	run, err := h.reconService.Run(c.Request.Context(), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondCreated(c, run)
}

// List handles GET /api/v1/reconciliations
func (h *ReconciliationHandler) List(c *gin.Context) {
	offset, limit := parsePagination(c)
	runs, total, err := h.reconService.ListRuns(c.Request.Context(), offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondPaginated(c, runs, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// GetByID handles GET /api/v1/reconciliations/:id
func (h *ReconciliationHandler) GetByID(c *gin.Context) {
	id, ok := parseRunID(c)
	if !ok {
		return
	}
	run, err := h.reconService.GetRun(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, run)
}

// ReportURL handles GET /api/v1/reconciliations/:id/reports/:file
func (h *ReconciliationHandler) ReportURL(c *gin.Context) {
	id, ok := parseRunID(c)
	if !ok {
		return
	}
	url, err := h.reconService.ReportURL(c.Request.Context(), id, c.Param("file"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{"url": url})
}

// PurgeOrders handles POST /api/v1/orders/purge
// dry_run defaults to true; deleting requires an explicit false.
func (h *ReconciliationHandler) PurgeOrders(c *gin.Context) {
	var req PurgeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	dryRun := true
	if req.DryRun != nil {
		dryRun = *req.DryRun
	}

	result, err := h.reconService.PurgeOrders(c.Request.Context(), req.YourRef, dryRun)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, result)
}

func parseRunID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid run ID")
		return uuid.Nil, false
	}
	return id, true
}
