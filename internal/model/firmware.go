package model

import "time"

// DefaultHardware is the hardware tag used when an upload does not name one
const DefaultHardware = "ESP32"

// Firmware represents an uploaded firmware image
type Firmware struct {
	ID           int       `gorm:"primaryKey;autoIncrement" json:"id"`
	NodeType     string    `gorm:"type:varchar(32);not null;uniqueIndex:uk_firmware_identity,priority:1" json:"node_type"`
	Version      string    `gorm:"type:varchar(32);not null;uniqueIndex:uk_firmware_identity,priority:2" json:"version"`
	Hardware     string    `gorm:"type:varchar(16);not null;default:ESP32;uniqueIndex:uk_firmware_identity,priority:3" json:"hardware"`
	Filename     string    `gorm:"type:varchar(128);not null" json:"filename"`
	SizeBytes    int64     `gorm:"not null" json:"size_bytes"`
	MD5Hash      string    `gorm:"column:md5_hash;type:varchar(32);not null" json:"md5_hash"`
	BinaryData   []byte    `gorm:"type:longblob;not null" json:"-"`
	ReleaseNotes *string   `gorm:"type:text" json:"release_notes"`
	IsStable     bool      `gorm:"not null;default:false" json:"is_stable"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for Firmware model
func (Firmware) TableName() string {
	return "firmware"
}
