package model

import "time"

// OTANodeStatus 单个节点在某个 OTA 任务中的进度
// Status 保存网关上报的原始字符串
type OTANodeStatus struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"-"`
	UpdateID     int64      `gorm:"not null;uniqueIndex:uk_ota_node_status" json:"update_id"`
	NodeID       string     `gorm:"type:varchar(32);not null;uniqueIndex:uk_ota_node_status" json:"node_id"`
	Status       string     `gorm:"type:varchar(20);not null;default:pending" json:"status"`
	CurrentPart  int        `gorm:"not null" json:"current_part"`
	TotalParts   *int       `json:"total_parts"`
	ErrorMessage *string    `gorm:"type:text" json:"error_message"`
	StartedAt    *time.Time `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (OTANodeStatus) TableName() string {
	return "ota_node_status"
}
