package postgres

import (
	"context"

	logsDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/logs"
	"github.com/frahmantamala/opsboard/internal/eventlog"
	"gorm.io/gorm"
)

type EventLogRepository struct {
	db *gorm.DB
}

func NewEventLogRepository(db *gorm.DB) eventlog.RepositoryAPI {
	return &EventLogRepository{db: db}
}

func (r *EventLogRepository) Insert(ctx context.Context, event *logsDatamodel.SystemLog) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *EventLogRepository) List(ctx context.Context, source string, limit int) ([]*logsDatamodel.SystemLog, error) {
	var rows []*logsDatamodel.SystemLog
	q := r.db.WithContext(ctx).Order("timestamp DESC").Order("id DESC").Limit(limit)
	if source != "" {
		q = q.Where("source = ?", source)
	}
	err := q.Find(&rows).Error
	return rows, err
}
