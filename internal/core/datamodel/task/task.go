package task

import (
	"time"

	"gorm.io/datatypes"
)

type Task struct {
	ID             int64          `gorm:"primaryKey;autoIncrement;column:task_id"`
	Title          string         `gorm:"column:title;type:varchar(255);not null"`
	Description    string         `gorm:"column:description;type:text"`
	Assignee       string         `gorm:"column:assignee;type:varchar(100);not null;index"`
	Creator        string         `gorm:"column:creator;type:varchar(100);not null"`
	Status         string         `gorm:"column:status;type:varchar(20);not null;default:new"`
	Priority       string         `gorm:"column:priority;type:varchar(20);not null;default:medium"`
	DueDate        *time.Time     `gorm:"column:due_date"`
	RelatedType    *string        `gorm:"column:related_type;type:varchar(50)"`
	RelatedID      *string        `gorm:"column:related_id;type:varchar(100)"`
	RelatedData    datatypes.JSON `gorm:"column:related_data"`
	AttachmentPath *string        `gorm:"column:attachment_path;type:varchar(255)"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	Comments       []TaskComment  `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
}

func (Task) TableName() string { return "tasks" }

type TaskComment struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:comment_id"`
	TaskID    int64     `gorm:"column:task_id;not null;index"`
	Username  string    `gorm:"column:username;type:varchar(100);not null"`
	Comment   string    `gorm:"column:comment;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (TaskComment) TableName() string { return "task_comments" }
