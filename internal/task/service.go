package task

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/frahmantamala/opsboard/internal"
	taskDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/task"
	"github.com/frahmantamala/opsboard/internal/core/i18n"
)

type RepositoryAPI interface {
	// List returns every task when assignee is empty.
	List(ctx context.Context, assignee string) ([]*Task, error)
	Get(ctx context.Context, id int64) (*Task, error)
	Comments(ctx context.Context, taskID int64) ([]*Comment, error)
	Create(ctx context.Context, t *taskDatamodel.Task) error
	UpdateStatus(ctx context.Context, id int64, status string, comment *taskDatamodel.TaskComment) error
	Delete(ctx context.Context, id int64) error
	AddComment(ctx context.Context, c *taskDatamodel.TaskComment) error
}

// Upload is a file sent along with a new task.
type Upload struct {
	Filename string
	Body     io.Reader
}

type ServiceAPI interface {
	List(ctx context.Context, p *internal.Principal) ([]*Task, error)
	Get(ctx context.Context, p *internal.Principal, id int64) (*Detail, error)
	Create(ctx context.Context, p *internal.Principal, req *CreateTaskRequest, upload *Upload) (*Task, error)
	Update(ctx context.Context, p *internal.Principal, id int64, req *UpdateTaskRequest) (*Task, error)
	Delete(ctx context.Context, p *internal.Principal, id int64) error
	AddComment(ctx context.Context, p *internal.Principal, id int64, text string) (*Comment, error)
	OpenAttachment(ctx context.Context, name string) (*os.File, error)
}

type Service struct {
	repo        RepositoryAPI
	attachments *Attachments
	logger      *slog.Logger
	now         func() time.Time
}

var _ ServiceAPI = (*Service)(nil)

func NewService(repo RepositoryAPI, attachments *Attachments, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		attachments: attachments,
		logger:      logger,
		now:         time.Now,
	}
}

// List shows admins every task and everyone else the tasks assigned to them.
func (s *Service) List(ctx context.Context, p *internal.Principal) ([]*Task, error) {
	assignee := p.Username
	if p.IsAdmin() {
		assignee = ""
	}
	tasks, err := s.repo.List(ctx, assignee)
	if err != nil {
		s.logger.Error("failed to list tasks", "username", p.Username, "error", err)
		return nil, err
	}
	return tasks, nil
}

func (s *Service) Get(ctx context.Context, p *internal.Principal, id int64) (*Detail, error) {
	t, err := s.task(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.IsOwnedBy(p) {
		return nil, forbidden(ctx, "access_denied_task")
	}

	comments, err := s.repo.Comments(ctx, id)
	if err != nil {
		s.logger.Error("failed to load task comments", "task_id", id, "error", err)
		return nil, err
	}
	return &Detail{Task: t, Comments: comments}, nil
}

func (s *Service) Create(ctx context.Context, p *internal.Principal, req *CreateTaskRequest, upload *Upload) (*Task, error) {
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Assignee) == "" {
		return nil, internal.NewValidationError(i18n.T(internal.LocaleFromContext(ctx), "task_title_assignee_required"), internal.ErrCodeValidationFailed)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var stored string
	if upload != nil && upload.Filename != "" {
		name, err := s.attachments.Save(upload.Filename, upload.Body)
		if err != nil {
			return nil, localizeUploadError(ctx, err)
		}
		stored = name
	}

	row := NewTask(req, p.Username, stored)
	if err := s.repo.Create(ctx, row); err != nil {
		s.logger.Error("failed to create task", "title", row.Title, "error", err)
		if stored != "" {
			_ = s.attachments.Remove(stored)
		}
		return nil, err
	}

	s.logger.Info("task created", "task_id", row.ID, "creator", p.Username, "assignee", row.Assignee)
	return s.repo.Get(ctx, row.ID)
}

// Update changes the status, optionally recording a comment with it. Only
// the assignee or an admin may do this.
func (s *Service) Update(ctx context.Context, p *internal.Principal, id int64, req *UpdateTaskRequest) (*Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	t, err := s.task(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.CanUpdate(p) {
		return nil, forbidden(ctx, "cannot_update_task")
	}

	var comment *taskDatamodel.TaskComment
	if text := strings.TrimSpace(req.Comment); text != "" {
		comment = &taskDatamodel.TaskComment{TaskID: id, Username: p.Username, Comment: text}
	}
	if err := s.repo.UpdateStatus(ctx, id, req.Status, comment); err != nil {
		s.logger.Error("failed to update task", "task_id", id, "error", err)
		return nil, err
	}

	s.logger.Info("task updated", "task_id", id, "status", req.Status, "by", p.Username)
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, p *internal.Principal, id int64) error {
	t, err := s.task(ctx, id)
	if err != nil {
		return err
	}
	if !t.IsOwnedBy(p) {
		return forbidden(ctx, "cannot_delete_task")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("failed to delete task", "task_id", id, "error", err)
		return err
	}
	if t.AttachmentPath != nil {
		if err := s.attachments.Remove(*t.AttachmentPath); err != nil {
			s.logger.Warn("failed to remove task attachment", "task_id", id, "file", *t.AttachmentPath, "error", err)
		}
	}

	s.logger.Info("task deleted", "task_id", id, "by", p.Username)
	return nil
}

func (s *Service) AddComment(ctx context.Context, p *internal.Principal, id int64, text string) (*Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, internal.NewValidationError(i18n.T(internal.LocaleFromContext(ctx), "comment_empty"), internal.ErrCodeValidationFailed)
	}
	t, err := s.task(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.IsOwnedBy(p) {
		return nil, forbidden(ctx, "cannot_comment_task")
	}

	row := &taskDatamodel.TaskComment{TaskID: id, Username: p.Username, Comment: text}
	if err := s.repo.AddComment(ctx, row); err != nil {
		s.logger.Error("failed to add task comment", "task_id", id, "error", err)
		return nil, err
	}
	return &Comment{
		ID:          row.ID,
		TaskID:      id,
		Username:    p.Username,
		DisplayName: displayName(p),
		Comment:     text,
		CreatedAt:   row.CreatedAt,
	}, nil
}

func (s *Service) OpenAttachment(ctx context.Context, name string) (*os.File, error) {
	f, err := s.attachments.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, internal.NewNotFoundError("attachment not found", internal.ErrCodeTaskNotFound)
		}
		return nil, internal.NewInternalError("failed to open attachment", err)
	}
	return f, nil
}

func (s *Service) task(ctx context.Context, id int64) (*Task, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, internal.NewNotFoundError(i18n.T(internal.LocaleFromContext(ctx), "task_not_found"), internal.ErrCodeTaskNotFound)
	}
	return t, nil
}

func forbidden(ctx context.Context, key string) error {
	return internal.NewForbiddenError(i18n.T(internal.LocaleFromContext(ctx), key), internal.ErrCodeTaskAccessDenied)
}

func localizeUploadError(ctx context.Context, err error) error {
	appErr, ok := internal.IsAppError(err)
	if !ok {
		return err
	}
	locale := internal.LocaleFromContext(ctx)
	switch appErr.Code {
	case internal.ErrCodeInvalidFileType:
		return internal.NewValidationError(i18n.T(locale, "invalid_file_type"), appErr.Code)
	case internal.ErrCodeFileTooLarge:
		return internal.NewValidationError(i18n.T(locale, "file_too_large"), appErr.Code)
	}
	return err
}

func displayName(p *internal.Principal) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Username
}
