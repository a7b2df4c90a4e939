package ota

import "time"

// CreateRequest 创建 OTA 任务请求
type CreateRequest struct {
	FirmwareID     int     `json:"firmware_id" binding:"required"`
	TargetNodeID   *string `json:"target_node_id"`
	TargetNodeType *string `json:"target_node_type"`
	ForceUpdate    bool    `json:"force_update"`
}

// PendingUpdate 网关轮询到的待执行任务
type PendingUpdate struct {
	UpdateID     int64   `json:"update_id"`
	FirmwareID   int     `json:"firmware_id"`
	NodeType     string  `json:"node_type"`
	Version      string  `json:"version"`
	Hardware     string  `json:"hardware"`
	MD5          string  `json:"md5"`
	NumParts     int     `json:"num_parts"`
	SizeBytes    int64   `json:"size_bytes"`
	TargetNodeID *string `json:"target_node_id"`
	Force        bool    `json:"force"`
}

// ProgressReport 网关上报的单节点进度
// current_part 可以为 0，因此用指针区分缺失
type ProgressReport struct {
	CurrentPart  *int    `json:"current_part" binding:"required"`
	TotalParts   *int    `json:"total_parts" binding:"required"`
	Status       string  `json:"status"`
	ErrorMessage *string `json:"error_message"`
}

// NodeProgress 单节点进度输出
type NodeProgress struct {
	NodeID       string     `json:"node_id"`
	Status       string     `json:"status"`
	CurrentPart  int        `json:"current_part"`
	TotalParts   *int       `json:"total_parts"`
	ErrorMessage *string    `json:"error_message"`
	StartedAt    *time.Time `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

// UpdateStatus 任务详情（含各节点进度）
type UpdateStatus struct {
	ID             int64          `json:"id"`
	FirmwareID     int            `json:"firmware_id"`
	NodeType       string         `json:"node_type"`
	Version        string         `json:"version"`
	Status         string         `json:"status"`
	TargetNodeID   *string        `json:"target_node_id"`
	TargetNodeType *string        `json:"target_node_type"`
	ForceUpdate    bool           `json:"force_update"`
	ErrorMessage   *string        `json:"error_message"`
	CreatedAt      time.Time      `json:"created_at"`
	StartedAt      *time.Time     `json:"started_at"`
	CompletedAt    *time.Time     `json:"completed_at"`
	Nodes          []NodeProgress `json:"nodes"`
}
