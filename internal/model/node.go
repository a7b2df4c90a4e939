package model

import "time"

// DefaultNodeRole is assigned to nodes that never reported a role
const DefaultNodeRole = "NODE"

// Node represents a mesh node. IsOnline is a cached liveness flag maintained
// by telemetry ingestion and the liveness sweeper.
type Node struct {
	ID              string    `gorm:"type:varchar(32);primaryKey" json:"id"`
	Name            *string   `gorm:"type:varchar(64)" json:"name"`
	FirmwareVersion *string   `gorm:"type:varchar(32)" json:"firmware_version"`
	IPAddress       *string   `gorm:"type:varchar(45)" json:"ip_address"`
	FirstSeen       time.Time `gorm:"not null" json:"first_seen"`
	LastSeen        time.Time `gorm:"not null;index:idx_nodes_liveness,priority:2" json:"last_seen"`
	IsOnline        bool      `gorm:"not null;index:idx_nodes_liveness,priority:1" json:"is_online"`
	Role            string    `gorm:"type:varchar(16);not null;default:NODE" json:"role"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for Node model
func (Node) TableName() string {
	return "nodes"
}
