package monitoring

import (
	"time"

	"gorm.io/datatypes"
)

type HostStatusHistory struct {
	ID           int64          `gorm:"primaryKey;autoIncrement;column:id"`
	HostID       string         `gorm:"column:host_id;type:varchar(64);not null;index"`
	HostName     string         `gorm:"column:host_name;type:varchar(255);not null;index:idx_host_status_name_ts,priority:1"`
	Status       string         `gorm:"column:status;type:varchar(20);not null"`
	ResponseTime *float64       `gorm:"column:response_time"`
	Details      datatypes.JSON `gorm:"column:details"`
	Timestamp    time.Time      `gorm:"column:timestamp;not null;index:idx_host_status_name_ts,priority:2"`
}

func (HostStatusHistory) TableName() string { return "host_status_history" }

type PerformanceMetric struct {
	ID         int64          `gorm:"primaryKey;autoIncrement;column:id"`
	HostID     string         `gorm:"column:host_id;type:varchar(64);not null;index:idx_metrics_host_type_ts,priority:1"`
	MetricType string         `gorm:"column:metric_type;type:varchar(50);not null;index:idx_metrics_host_type_ts,priority:2"`
	Value      float64        `gorm:"column:value;not null"`
	Timestamp  time.Time      `gorm:"column:timestamp;not null;index:idx_metrics_host_type_ts,priority:3"`
	Details    datatypes.JSON `gorm:"column:details"`
}

func (PerformanceMetric) TableName() string { return "performance_metrics" }
