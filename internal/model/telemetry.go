package model

import (
	"time"

	"gorm.io/datatypes"
)

// Telemetry 节点遥测样本（只追加）
type Telemetry struct {
	ID        int64             `gorm:"primaryKey;autoIncrement" json:"-"`
	NodeID    string            `gorm:"type:varchar(32);not null;index:idx_telemetry_node_time,priority:1" json:"node_id"`
	Time      time.Time         `gorm:"not null;index:idx_telemetry_node_time,priority:2" json:"time"`
	HeapFree  *int              `json:"heap_free"`
	UptimeSec *int              `json:"uptime_sec"`
	PeerCount *int              `json:"peer_count"`
	Role      *string           `gorm:"type:varchar(16)" json:"role"`
	State     datatypes.JSONMap `gorm:"column:state_json" json:"state,omitempty"`
}

// TableName 指定表名
func (Telemetry) TableName() string {
	return "telemetry"
}
