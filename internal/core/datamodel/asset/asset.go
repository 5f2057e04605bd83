package asset

import (
	"time"

	"gorm.io/datatypes"
)

// Asset is keyed by Name; ingestion upserts on it.
type Asset struct {
	ID             int64          `gorm:"primaryKey;autoIncrement;column:asset_id"`
	Name           string         `gorm:"column:name;type:varchar(255);uniqueIndex;not null"`
	Type           string         `gorm:"column:type;type:varchar(50);index"`
	SerialNumber   string         `gorm:"column:serial_number;type:varchar(255)"`
	Model          string         `gorm:"column:model;type:varchar(255)"`
	Manufacturer   string         `gorm:"column:manufacturer;type:varchar(255)"`
	Location       string         `gorm:"column:location;type:varchar(255)"`
	IPAddress      string         `gorm:"column:ip_address;type:varchar(64)"`
	MACAddress     string         `gorm:"column:mac_address;type:varchar(64)"`
	OSInfo         string         `gorm:"column:os_info;type:varchar(255)"`
	Status         string         `gorm:"column:status;type:varchar(50);not null;default:active;index"`
	Specifications datatypes.JSON `gorm:"column:specifications"`
	LastSeen       time.Time      `gorm:"column:last_seen;not null;index"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (Asset) TableName() string { return "assets" }
