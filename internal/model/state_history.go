package model

import "time"

// StateHistory 状态变更历史（只追加，不修改、不清理）
type StateHistory struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	NodeID    string    `gorm:"type:varchar(32);not null;index:idx_state_history_node_key,priority:1" json:"node_id"`
	Key       string    `gorm:"column:state_key;type:varchar(64);not null;index:idx_state_history_node_key,priority:2" json:"key"`
	Value     *string   `gorm:"type:text" json:"value"`
	Version   int       `gorm:"not null" json:"version"`
	ChangedAt time.Time `gorm:"not null;index" json:"changed_at"`
}

// TableName 指定表名
func (StateHistory) TableName() string {
	return "state_history"
}
