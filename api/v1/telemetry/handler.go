package telemetry

import (
	"strconv"

	"mesh_manager/internal/httpx"
	"mesh_manager/internal/telemetry"

	"github.com/gin-gonic/gin"
)

// Handler handles telemetry ingestion and history
type Handler struct {
	service *telemetry.Service
}

// NewHandler creates a new telemetry handler
func NewHandler(service *telemetry.Service) *Handler {
	return &Handler{service: service}
}

// Push handles POST /api/v1/nodes/:id/telemetry
// Unknown nodes are registered on first report.
func (h *Handler) Push(c *gin.Context) {
	var req telemetry.PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}
	if ip := c.ClientIP(); ip != "" {
		req.IPAddress = &ip
	}

	result, err := h.service.Push(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		httpx.FailAny(c, err, "failed to store telemetry")
		return
	}
	httpx.OK(c, result)
}

// History handles GET /api/v1/nodes/:id/history?hours=24
func (h *Handler) History(c *gin.Context) {
	hours := telemetry.DefaultHistoryHours
	if raw := c.Query("hours"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			httpx.FailErr(c, httpx.ErrParamInvalid("hours must be an integer"))
			return
		}
		hours = v
	}

	samples, err := h.service.History(c.Request.Context(), c.Param("id"), hours)
	if err != nil {
		httpx.FailAny(c, err, "failed to load telemetry")
		return
	}
	httpx.OK(c, samples)
}
