package postgres

import (
	"context"
	"time"

	monitoringDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/monitoring"
	"github.com/frahmantamala/opsboard/internal/monitoring"
	"github.com/frahmantamala/opsboard/internal/store"
	"gorm.io/gorm"
)

type MonitoringRepository struct {
	db *gorm.DB
}

func NewMonitoringRepository(db *gorm.DB) monitoring.RepositoryAPI {
	return &MonitoringRepository{db: db}
}

func (r *MonitoringRepository) Archive(ctx context.Context, status *monitoringDatamodel.HostStatusHistory, metrics []*monitoringDatamodel.PerformanceMetric) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(status).Error; err != nil {
			return err
		}
		if len(metrics) == 0 {
			return nil
		}
		return tx.Create(&metrics).Error
	})
}

func (r *MonitoringRepository) LastStatus(ctx context.Context, hostID string) (*monitoringDatamodel.HostStatusHistory, error) {
	var row monitoringDatamodel.HostStatusHistory
	err := r.db.WithContext(ctx).
		Where("host_id = ?", hostID).
		Order("timestamp DESC").Order("id DESC").
		First(&row).Error
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// LatestStatuses returns the newest archived row of every host, by name.
func (r *MonitoringRepository) LatestStatuses(ctx context.Context) ([]*monitoringDatamodel.HostStatusHistory, error) {
	latest := r.db.Model(&monitoringDatamodel.HostStatusHistory{}).
		Select("MAX(id)").
		Group("host_id")

	var rows []*monitoringDatamodel.HostStatusHistory
	err := r.db.WithContext(ctx).
		Where("id IN (?)", latest).
		Order("host_name ASC").
		Find(&rows).Error
	return rows, err
}

func (r *MonitoringRepository) StatusHistory(ctx context.Context, hostName string, limit int) ([]*monitoringDatamodel.HostStatusHistory, error) {
	var rows []*monitoringDatamodel.HostStatusHistory
	err := r.db.WithContext(ctx).
		Where("host_name = ?", hostName).
		Order("timestamp DESC").Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *MonitoringRepository) Metrics(ctx context.Context, hostID, metricType string, start, end time.Time) ([]*monitoringDatamodel.PerformanceMetric, error) {
	var rows []*monitoringDatamodel.PerformanceMetric
	err := r.db.WithContext(ctx).
		Where("host_id = ? AND metric_type = ?", hostID, metricType).
		Where("timestamp BETWEEN ? AND ?", start, end).
		Order("timestamp DESC").
		Find(&rows).Error
	return rows, err
}
