package nodes

import (
	"mesh_manager/internal/httpx"
	"mesh_manager/internal/nodes"

	"github.com/gin-gonic/gin"
)

// RenameRequest represents rename node request
type RenameRequest struct {
	Name string `json:"name" binding:"required"`
}

// Handler handles nodes API
type Handler struct {
	service *nodes.Service
}

// NewHandler creates a new nodes handler
func NewHandler(service *nodes.Service) *Handler {
	return &Handler{service: service}
}

// List handles GET /api/v1/nodes
func (h *Handler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context())
	if err != nil {
		httpx.FailAny(c, err, "failed to fetch nodes")
		return
	}
	httpx.OKItems(c, items, int64(len(items)))
}

// Get handles GET /api/v1/nodes/:id
func (h *Handler) Get(c *gin.Context) {
	node, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.FailAny(c, err, "failed to fetch node")
		return
	}
	httpx.OK(c, node)
}

// Rename handles PUT /api/v1/nodes/:id/name
func (h *Handler) Rename(c *gin.Context) {
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamMissing(err.Error()))
		return
	}

	node, err := h.service.Rename(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		httpx.FailAny(c, err, "failed to rename node")
		return
	}
	httpx.OK(c, node)
}

// Delete handles DELETE /api/v1/nodes/:id
func (h *Handler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		httpx.FailAny(c, err, "failed to delete node")
		return
	}
	httpx.OKMsg(c, "node deleted", gin.H{"id": id})
}
