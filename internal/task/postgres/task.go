package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	taskDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/task"
	"github.com/frahmantamala/opsboard/internal/store"
	"github.com/frahmantamala/opsboard/internal/task"
	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

const taskColumns = `
	t.task_id, t.title, COALESCE(t.description, '') AS description,
	t.assignee, COALESCE(NULLIF(u.display_name, ''), t.assignee) AS assignee_name,
	t.creator, t.status, t.priority, t.due_date,
	t.related_type, t.related_id, t.related_data, t.attachment_path,
	t.created_at, t.updated_at`

const (
	listTasksQuery = `SELECT ` + taskColumns + `
	FROM tasks t
	LEFT JOIN users u ON u.username = t.assignee
	ORDER BY t.created_at DESC, t.task_id DESC`

	listAssignedTasksQuery = `SELECT ` + taskColumns + `
	FROM tasks t
	LEFT JOIN users u ON u.username = t.assignee
	WHERE t.assignee = ?
	ORDER BY t.created_at DESC, t.task_id DESC`

	getTaskQuery = `SELECT ` + taskColumns + `
	FROM tasks t
	LEFT JOIN users u ON u.username = t.assignee
	WHERE t.task_id = ?`

	listCommentsQuery = `
	SELECT c.comment_id, c.task_id, c.username,
		COALESCE(NULLIF(u.display_name, ''), c.username) AS display_name,
		c.comment, c.created_at
	FROM task_comments c
	LEFT JOIN users u ON u.username = c.username
	WHERE c.task_id = ?
	ORDER BY c.created_at ASC, c.comment_id ASC`
)

type taskRow struct {
	ID             int64      `db:"task_id"`
	Title          string     `db:"title"`
	Description    string     `db:"description"`
	Assignee       string     `db:"assignee"`
	AssigneeName   string     `db:"assignee_name"`
	Creator        string     `db:"creator"`
	Status         string     `db:"status"`
	Priority       string     `db:"priority"`
	DueDate        *time.Time `db:"due_date"`
	RelatedType    *string    `db:"related_type"`
	RelatedID      *string    `db:"related_id"`
	RelatedData    []byte     `db:"related_data"`
	AttachmentPath *string    `db:"attachment_path"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

func (r *taskRow) toTask() *task.Task {
	t := &task.Task{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		Assignee:       r.Assignee,
		AssigneeName:   r.AssigneeName,
		Creator:        r.Creator,
		Status:         r.Status,
		Priority:       r.Priority,
		DueDate:        r.DueDate,
		RelatedType:    r.RelatedType,
		RelatedID:      r.RelatedID,
		AttachmentPath: r.AttachmentPath,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if len(r.RelatedData) > 0 && json.Valid(r.RelatedData) {
		t.RelatedData = json.RawMessage(r.RelatedData)
	}
	return t
}

type commentRow struct {
	ID          int64     `db:"comment_id"`
	TaskID      int64     `db:"task_id"`
	Username    string    `db:"username"`
	DisplayName string    `db:"display_name"`
	Comment     string    `db:"comment"`
	CreatedAt   time.Time `db:"created_at"`
}

// TaskRepository reads through sqlx so listings can join display names, and
// writes through gorm.
type TaskRepository struct {
	db    *gorm.DB
	sqlDB *sqlx.DB
}

func NewTaskRepository(db *gorm.DB, sqlDB *sqlx.DB) task.RepositoryAPI {
	return &TaskRepository{db: db, sqlDB: sqlDB}
}

func (r *TaskRepository) List(ctx context.Context, assignee string) ([]*task.Task, error) {
	var rows []taskRow
	var err error
	if assignee == "" {
		err = r.sqlDB.SelectContext(ctx, &rows, listTasksQuery)
	} else {
		err = r.sqlDB.SelectContext(ctx, &rows, r.sqlDB.Rebind(listAssignedTasksQuery), assignee)
	}
	if err != nil {
		return nil, err
	}

	out := make([]*task.Task, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toTask())
	}
	return out, nil
}

func (r *TaskRepository) Get(ctx context.Context, id int64) (*task.Task, error) {
	var row taskRow
	if err := r.sqlDB.GetContext(ctx, &row, r.sqlDB.Rebind(getTaskQuery), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toTask(), nil
}

func (r *TaskRepository) Comments(ctx context.Context, taskID int64) ([]*task.Comment, error) {
	var rows []commentRow
	if err := r.sqlDB.SelectContext(ctx, &rows, r.sqlDB.Rebind(listCommentsQuery), taskID); err != nil {
		return nil, err
	}

	out := make([]*task.Comment, 0, len(rows))
	for _, row := range rows {
		out = append(out, &task.Comment{
			ID:          row.ID,
			TaskID:      row.TaskID,
			Username:    row.Username,
			DisplayName: row.DisplayName,
			Comment:     row.Comment,
			CreatedAt:   row.CreatedAt,
		})
	}
	return out, nil
}

func (r *TaskRepository) Create(ctx context.Context, t *taskDatamodel.Task) error {
	return store.MapError(r.db.WithContext(ctx).Create(t).Error, "failed to create task")
}

// UpdateStatus writes the status and the optional comment together.
func (r *TaskRepository) UpdateStatus(ctx context.Context, id int64, status string, comment *taskDatamodel.TaskComment) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&taskDatamodel.Task{}).Where("task_id = ?", id).Update("status", status).Error; err != nil {
			return err
		}
		if comment != nil {
			return tx.Create(comment).Error
		}
		return nil
	})
	return store.MapError(err, "failed to update task")
}

// Delete removes the task and its comments.
func (r *TaskRepository) Delete(ctx context.Context, id int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&taskDatamodel.TaskComment{}).Error; err != nil {
			return err
		}
		return tx.Where("task_id = ?", id).Delete(&taskDatamodel.Task{}).Error
	})
	return store.MapError(err, "failed to delete task")
}

func (r *TaskRepository) AddComment(ctx context.Context, c *taskDatamodel.TaskComment) error {
	return store.MapError(r.db.WithContext(ctx).Create(c).Error, "failed to add comment")
}
