package report

import (
	"time"

	"gorm.io/datatypes"
)

type Report struct {
	ID          string         `gorm:"primaryKey;column:id;type:varchar(36)"`
	Name        string         `gorm:"column:name;type:varchar(255);not null"`
	Type        string         `gorm:"column:type;type:varchar(50);not null"`
	Format      string         `gorm:"column:format;type:varchar(10);not null"`
	RecordCount int            `gorm:"column:record_count;not null"`
	GeneratedBy string         `gorm:"column:generated_by;type:varchar(100);not null"`
	GeneratedAt time.Time      `gorm:"column:generated_at;not null;index"`
	Path        string         `gorm:"column:path;type:varchar(255);not null"`
	Params      datatypes.JSON `gorm:"column:report_params"`
}

func (Report) TableName() string { return "reports" }
