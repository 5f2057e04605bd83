// Package task is the internal ticket list: tasks assigned between users,
// their comments and an optional image attachment.
package task

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/core/common/validation"
	taskDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/task"
	"gorm.io/datatypes"
)

const (
	StatusNew        = "new"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

var (
	Statuses   = []string{StatusNew, StatusInProgress, StatusCompleted, StatusCancelled}
	Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
)

const timestampLayout = "2006-01-02 15:04:05"

type Task struct {
	ID             int64           `json:"task_id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Assignee       string          `json:"assignee"`
	AssigneeName   string          `json:"assignee_name"`
	Creator        string          `json:"creator"`
	Status         string          `json:"status"`
	Priority       string          `json:"priority"`
	DueDate        *time.Time      `json:"-"`
	RelatedType    *string         `json:"related_type"`
	RelatedID      *string         `json:"related_id"`
	RelatedData    json.RawMessage `json:"related_data"`
	AttachmentPath *string         `json:"attachment_path"`
	CreatedAt      time.Time       `json:"-"`
	UpdatedAt      time.Time       `json:"-"`
}

// MarshalJSON renders dates the way the dashboard expects them and adds the
// attachment download URL.
func (t *Task) MarshalJSON() ([]byte, error) {
	type alias Task
	out := struct {
		*alias
		DueDate       *string `json:"due_date"`
		CreatedAt     string  `json:"created_at"`
		UpdatedAt     string  `json:"updated_at"`
		AttachmentURL string  `json:"attachment_url,omitempty"`
	}{
		alias:     (*alias)(t),
		CreatedAt: t.CreatedAt.UTC().Format(timestampLayout),
		UpdatedAt: t.UpdatedAt.UTC().Format(timestampLayout),
	}
	if t.DueDate != nil {
		d := t.DueDate.Format(time.DateOnly)
		out.DueDate = &d
	}
	if t.AttachmentPath != nil && *t.AttachmentPath != "" {
		out.AttachmentURL = "/api/v1/tasks/attachments/" + *t.AttachmentPath
	}
	return json.Marshal(out)
}

// IsAssignee reports whether p is the task's current assignee.
func (t *Task) IsAssignee(p *internal.Principal) bool {
	return p != nil && p.Username == t.Assignee
}

// CanUpdate allows the assignee and admins.
func (t *Task) CanUpdate(p *internal.Principal) bool {
	return p.IsAdmin() || t.IsAssignee(p)
}

// IsOwnedBy allows admins, the creator and the assignee.
func (t *Task) IsOwnedBy(p *internal.Principal) bool {
	return p.IsAdmin() || t.IsAssignee(p) || (p != nil && p.Username == t.Creator)
}

type Comment struct {
	ID          int64     `json:"comment_id"`
	TaskID      int64     `json:"task_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Comment     string    `json:"comment"`
	CreatedAt   time.Time `json:"-"`
}

func (c *Comment) MarshalJSON() ([]byte, error) {
	type alias Comment
	return json.Marshal(struct {
		*alias
		CreatedAt string `json:"created_at"`
	}{
		alias:     (*alias)(c),
		CreatedAt: c.CreatedAt.UTC().Format(timestampLayout),
	})
}

type Detail struct {
	Task     *Task      `json:"task"`
	Comments []*Comment `json:"comments"`
}

type CreateTaskRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Assignee    string          `json:"assignee"`
	Priority    string          `json:"priority"`
	DueDate     string          `json:"due_date"`
	RelatedType string          `json:"related_type"`
	RelatedID   string          `json:"related_id"`
	RelatedData json.RawMessage `json:"related_data"`
}

func (r *CreateTaskRequest) Validate() error {
	v := validation.NewValidator()
	v.Field("title", r.Title).Required().MaxLength(255)
	v.Field("assignee", r.Assignee).Required().MaxLength(100)
	v.Field("priority", r.Priority).OneOf(Priorities, internal.ErrCodeInvalidPriority)
	v.Field("due_date", r.DueDate).Date()
	v.Field("related_data", string(r.RelatedData)).Custom(func(value interface{}) *internal.AppError {
		s, _ := value.(string)
		if s == "" || json.Valid([]byte(s)) {
			return nil
		}
		return internal.NewValidationFieldError("related_data", "related_data must be valid JSON", internal.ErrCodeValidationFailed)
	})
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type UpdateTaskRequest struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

func (r *UpdateTaskRequest) Validate() error {
	v := validation.NewValidator()
	v.Field("status", r.Status).Required().OneOf(Statuses, internal.ErrCodeInvalidStatus)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type CommentRequest struct {
	Comment string `json:"comment"`
}

// NewTask builds an unsaved task created by creator. attachment is the
// stored filename, or "" when nothing was uploaded.
func NewTask(r *CreateTaskRequest, creator, attachment string) *taskDatamodel.Task {
	t := &taskDatamodel.Task{
		Title:       strings.TrimSpace(r.Title),
		Description: r.Description,
		Assignee:    strings.TrimSpace(r.Assignee),
		Creator:     creator,
		Status:      StatusNew,
		Priority:    r.Priority,
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if r.DueDate != "" {
		if d, err := time.Parse(time.DateOnly, r.DueDate); err == nil {
			t.DueDate = &d
		}
	}
	if r.RelatedType != "" {
		t.RelatedType = &r.RelatedType
	}
	if r.RelatedID != "" {
		t.RelatedID = &r.RelatedID
	}
	if len(r.RelatedData) > 0 {
		t.RelatedData = datatypes.JSON(r.RelatedData)
	} else {
		t.RelatedData = datatypes.JSON("{}")
	}
	if attachment != "" {
		t.AttachmentPath = &attachment
	}
	return t
}
