package ota

import (
	"strconv"

	"mesh_manager/internal/httpx"
	"mesh_manager/internal/model"
	"mesh_manager/internal/ota"

	"github.com/gin-gonic/gin"
)

// Handler handles OTA rollout API. The gateway polls Pending and drives
// Start/Progress/Complete/Fail; operators use Create/List/Get/Cancel.
type Handler struct {
	service *ota.Service
}

// NewHandler creates a new OTA handler
func NewHandler(service *ota.Service) *Handler {
	return &Handler{service: service}
}

// Create handles POST /api/v1/ota/updates
func (h *Handler) Create(c *gin.Context) {
	var req ota.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamMissing(err.Error()))
		return
	}

	job, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		httpx.FailAny(c, err, "failed to create update")
		return
	}
	httpx.OK(c, job)
}

// List handles GET /api/v1/ota/updates?status=
func (h *Handler) List(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !validJobStatus(status) {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid status filter"))
		return
	}

	jobs, err := h.service.List(c.Request.Context(), status)
	if err != nil {
		httpx.FailAny(c, err, "failed to list updates")
		return
	}
	httpx.OKItems(c, jobs, int64(len(jobs)))
}

// Pending handles GET /api/v1/ota/updates/pending
func (h *Handler) Pending(c *gin.Context) {
	pending, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		httpx.FailAny(c, err, "failed to list pending updates")
		return
	}
	httpx.OK(c, pending)
}

// Get handles GET /api/v1/ota/updates/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	status, err := h.service.GetStatus(c.Request.Context(), id)
	if err != nil {
		httpx.FailAny(c, err, "failed to load update")
		return
	}
	httpx.OK(c, status)
}

// Start handles POST /api/v1/ota/updates/:id/start
func (h *Handler) Start(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	job, err := h.service.Start(c.Request.Context(), id)
	if err != nil {
		httpx.FailAny(c, err, "failed to start update")
		return
	}
	httpx.OK(c, job)
}

// Progress handles POST /api/v1/ota/updates/:id/node/:nodeId/progress
func (h *Handler) Progress(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	nodeID := c.Param("nodeId")
	if nodeID == "" {
		httpx.FailErr(c, httpx.ErrParamMissing("node id is required"))
		return
	}

	var report ota.ProgressReport
	if err := c.ShouldBindJSON(&report); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	row, err := h.service.ReportProgress(c.Request.Context(), id, nodeID, &report)
	if err != nil {
		httpx.FailAny(c, err, "failed to record progress")
		return
	}
	httpx.OK(c, row)
}

// Complete handles POST /api/v1/ota/updates/:id/complete
func (h *Handler) Complete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	job, err := h.service.Complete(c.Request.Context(), id)
	if err != nil {
		httpx.FailAny(c, err, "failed to complete update")
		return
	}
	httpx.OK(c, job)
}

// Fail handles POST /api/v1/ota/updates/:id/fail?error_message=
func (h *Handler) Fail(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	job, err := h.service.Fail(c.Request.Context(), id, c.Query("error_message"))
	if err != nil {
		httpx.FailAny(c, err, "failed to fail update")
		return
	}
	httpx.OK(c, job)
}

// Cancel handles DELETE /api/v1/ota/updates/:id
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.service.Cancel(c.Request.Context(), id); err != nil {
		httpx.FailAny(c, err, "failed to cancel update")
		return
	}
	httpx.OKMsg(c, "update cancelled", gin.H{"id": id})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid update id"))
		return 0, false
	}
	return id, true
}

func validJobStatus(status string) bool {
	switch model.OTAUpdateStatus(status) {
	case model.OTAUpdateStatusPending, model.OTAUpdateStatusDistributing,
		model.OTAUpdateStatusCompleted, model.OTAUpdateStatusFailed:
		return true
	}
	return false
}
