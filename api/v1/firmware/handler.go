package firmware

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"mesh_manager/internal/firmware"
	"mesh_manager/internal/httpx"

	"github.com/gin-gonic/gin"
)

// MaxUploadBytes 单个固件最大尺寸
const MaxUploadBytes = 16 << 20

// StableRequest represents mark stable request
type StableRequest struct {
	Stable *bool `json:"stable" binding:"required"`
}

// Handler handles firmware API
type Handler struct {
	service *firmware.Service
}

// NewHandler creates a new firmware handler
func NewHandler(service *firmware.Service) *Handler {
	return &Handler{service: service}
}

// Upload handles POST /api/v1/firmware (multipart/form-data)
// 表单字段: node_type, version, hardware, release_notes, is_stable, file
func (h *Handler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		httpx.FailErr(c, httpx.ErrParamMissing("file is required"))
		return
	}
	if fileHeader.Size > MaxUploadBytes {
		httpx.FailErr(c, httpx.ErrParamIllegal(fmt.Sprintf("firmware exceeds %d bytes", MaxUploadBytes)))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("failed to read file"))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxUploadBytes+1))
	if err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("failed to read file"))
		return
	}

	req := &firmware.UploadRequest{
		NodeType: c.PostForm("node_type"),
		Version:  c.PostForm("version"),
		Hardware: c.PostForm("hardware"),
		Filename: fileHeader.Filename,
		Data:     data,
	}
	if notes := c.PostForm("release_notes"); notes != "" {
		req.ReleaseNotes = &notes
	}
	if raw := c.PostForm("is_stable"); raw != "" {
		stable, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.FailErr(c, httpx.ErrParamInvalid("is_stable must be a boolean"))
			return
		}
		req.IsStable = stable
	}

	fw, err := h.service.Upload(c.Request.Context(), req)
	if err != nil {
		httpx.FailAny(c, err, "failed to upload firmware")
		return
	}
	httpx.OK(c, fw)
}

// List handles GET /api/v1/firmware?node_type=
func (h *Handler) List(c *gin.Context) {
	items, total, err := h.service.List(c.Request.Context(), c.Query("node_type"))
	if err != nil {
		httpx.FailAny(c, err, "failed to list firmware")
		return
	}
	httpx.OKItems(c, items, total)
}

// Get handles GET /api/v1/firmware/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	fw, err := h.service.Metadata(c.Request.Context(), id)
	if err != nil {
		httpx.FailAny(c, err, "failed to load firmware")
		return
	}
	httpx.OK(c, fw)
}

// Download handles GET /api/v1/firmware/:id/download
func (h *Handler) Download(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	fw, err := h.service.Download(c.Request.Context(), id)
	if err != nil {
		httpx.FailAny(c, err, "failed to load firmware")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fw.Filename))
	c.Header("X-MD5", fw.MD5Hash)
	c.Data(http.StatusOK, "application/octet-stream", fw.BinaryData)
}

// Delete handles DELETE /api/v1/firmware/:id
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	fw, err := h.service.Delete(c.Request.Context(), id)
	if err != nil {
		httpx.FailAny(c, err, "failed to delete firmware")
		return
	}
	httpx.OKMsg(c, "firmware deleted", fw)
}

// SetStable handles PUT /api/v1/firmware/:id/stable
func (h *Handler) SetStable(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req StableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamMissing(err.Error()))
		return
	}

	fw, err := h.service.SetStable(c.Request.Context(), id, *req.Stable)
	if err != nil {
		httpx.FailAny(c, err, "failed to update firmware")
		return
	}
	httpx.OK(c, fw)
}

func parseID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid firmware id"))
		return 0, false
	}
	return id, true
}
