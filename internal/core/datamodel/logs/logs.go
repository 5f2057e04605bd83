package logs

import (
	"time"

	"gorm.io/datatypes"
)

// LogMessage is unique on (timestamp, message). The message text is keyed
// through its sha256 so the index stays small.
type LogMessage struct {
	ID          int64          `gorm:"primaryKey;autoIncrement;column:id"`
	Timestamp   time.Time      `gorm:"column:timestamp;not null;index;uniqueIndex:idx_log_messages_key,priority:1"`
	MessageHash string         `gorm:"column:message_hash;type:varchar(64);not null;uniqueIndex:idx_log_messages_key,priority:2"`
	Level       string         `gorm:"column:level;type:varchar(20)"`
	Severity    string         `gorm:"column:severity;type:varchar(10);not null;index"`
	Category    string         `gorm:"column:category;type:varchar(50)"`
	Message     string         `gorm:"column:message;type:text;not null"`
	Details     datatypes.JSON `gorm:"column:details"`
}

func (LogMessage) TableName() string { return "log_messages" }

type SystemLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Source    string    `gorm:"column:source;type:varchar(255);not null;index"`
	Severity  string    `gorm:"column:severity;type:varchar(20);not null"`
	HostName  string    `gorm:"column:host_name;type:varchar(255)"`
	Message   string    `gorm:"column:message;type:text"`
	Timestamp time.Time `gorm:"column:timestamp;not null;index"`
}

func (SystemLog) TableName() string { return "system_logs" }
