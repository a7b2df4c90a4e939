package state

import (
	"mesh_manager/internal/httpx"
	"mesh_manager/internal/telemetry"

	"github.com/gin-gonic/gin"
)

// Handler handles versioned state queries
type Handler struct {
	service *telemetry.Service
}

// NewHandler creates a new state handler
func NewHandler(service *telemetry.Service) *Handler {
	return &Handler{service: service}
}

// All handles GET /api/v1/state
func (h *Handler) All(c *gin.Context) {
	entries, err := h.service.AllState(c.Request.Context())
	if err != nil {
		httpx.FailAny(c, err, "failed to load state")
		return
	}
	httpx.OK(c, entries)
}

// Node handles GET /api/v1/nodes/:id/state
func (h *Handler) Node(c *gin.Context) {
	entries, err := h.service.NodeState(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.FailAny(c, err, "failed to load state")
		return
	}
	httpx.OK(c, entries)
}

// History handles GET /api/v1/nodes/:id/state/history?key=
func (h *Handler) History(c *gin.Context) {
	rows, err := h.service.StateHistory(c.Request.Context(), c.Param("id"), c.Query("key"))
	if err != nil {
		httpx.FailAny(c, err, "failed to load state history")
		return
	}
	httpx.OK(c, rows)
}
