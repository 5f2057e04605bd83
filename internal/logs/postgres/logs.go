package postgres

import (
	"context"
	"time"

	logsDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/logs"
	"github.com/frahmantamala/opsboard/internal/logs"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const upsertBatchSize = 100

type LogRepository struct {
	db *gorm.DB
}

func NewLogRepository(db *gorm.DB) logs.RepositoryAPI {
	return &LogRepository{db: db}
}

func (r *LogRepository) Upsert(ctx context.Context, rows []*logsDatamodel.LogMessage) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "timestamp"}, {Name: "message_hash"}},
			DoUpdates: clause.AssignmentColumns([]string{"level", "severity", "category"}),
		}).
		CreateInBatches(rows, upsertBatchSize).Error
}

func (r *LogRepository) SeverityPoints(ctx context.Context, start, end time.Time) ([]logs.SeverityPoint, error) {
	var rows []struct {
		Timestamp time.Time
		Severity  string
	}
	err := r.db.WithContext(ctx).
		Model(&logsDatamodel.LogMessage{}).
		Select("timestamp", "severity").
		Where("timestamp >= ? AND timestamp < ?", start, end).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	points := make([]logs.SeverityPoint, len(rows))
	for i, row := range rows {
		points[i] = logs.SeverityPoint{Timestamp: row.Timestamp, Severity: row.Severity}
	}
	return points, nil
}

func (r *LogRepository) Messages(ctx context.Context, start, end time.Time, limit int) ([]*logsDatamodel.LogMessage, error) {
	var rows []*logsDatamodel.LogMessage
	err := r.db.WithContext(ctx).
		Where("timestamp BETWEEN ? AND ?", start, end).
		Order("timestamp DESC").Order("severity ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *LogRepository) Counts(ctx context.Context, start, end time.Time) (logs.MessageStats, error) {
	var stats logs.MessageStats
	err := r.db.WithContext(ctx).
		Model(&logsDatamodel.LogMessage{}).
		Select(`COUNT(CASE WHEN severity = 'high' THEN 1 END) AS error_count,
			COUNT(CASE WHEN severity = 'medium' THEN 1 END) AS warn_count,
			COUNT(CASE WHEN severity = 'low' THEN 1 END) AS info_count,
			COUNT(*) AS total_count`).
		Where("timestamp BETWEEN ? AND ?", start, end).
		Scan(&stats).Error
	return stats, err
}
