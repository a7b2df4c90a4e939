package model

import "time"

// CurrentState 节点当前状态（按 node_id + key 版本化）
type CurrentState struct {
	NodeID    string    `gorm:"type:varchar(32);primaryKey" json:"node_id"`
	Key       string    `gorm:"column:state_key;type:varchar(64);primaryKey" json:"key"`
	Value     *string   `gorm:"type:text" json:"value"`
	Version   int       `gorm:"not null;default:1" json:"version"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// TableName 指定表名
func (CurrentState) TableName() string {
	return "current_state"
}
