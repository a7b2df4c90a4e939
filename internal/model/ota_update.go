package model

import "time"

// OTAUpdateStatus OTA 任务状态
type OTAUpdateStatus string

const (
	OTAUpdateStatusPending      OTAUpdateStatus = "pending"
	OTAUpdateStatusDistributing OTAUpdateStatus = "distributing"
	OTAUpdateStatusCompleted    OTAUpdateStatus = "completed"
	OTAUpdateStatusFailed       OTAUpdateStatus = "failed"
)

// OTAUpdate OTA 升级任务
// TargetNodeID 为空表示同类型的全部节点
type OTAUpdate struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	FirmwareID     int             `gorm:"not null;index" json:"firmware_id"`
	TargetNodeID   *string         `gorm:"type:varchar(32)" json:"target_node_id"`
	TargetNodeType *string         `gorm:"type:varchar(32)" json:"target_node_type"`
	Status         OTAUpdateStatus `gorm:"type:varchar(20);not null;default:pending;index:idx_ota_updates_status_created,priority:1" json:"status"`
	ForceUpdate    bool            `gorm:"not null;default:false" json:"force_update"`
	ErrorMessage   *string         `gorm:"type:text" json:"error_message"`
	CreatedAt      time.Time       `gorm:"not null;index:idx_ota_updates_status_created,priority:2" json:"created_at"`
	StartedAt      *time.Time      `json:"started_at"`
	CompletedAt    *time.Time      `json:"completed_at"`

	Firmware     *Firmware       `gorm:"foreignKey:FirmwareID;constraint:OnDelete:CASCADE" json:"-"`
	NodeStatuses []OTANodeStatus `gorm:"foreignKey:UpdateID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName 指定表名
func (OTAUpdate) TableName() string {
	return "ota_updates"
}
