package postgres

import (
	"context"

	reportDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/report"
	"github.com/frahmantamala/opsboard/internal/report"
	"github.com/frahmantamala/opsboard/internal/store"
	"gorm.io/gorm"
)

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) report.RepositoryAPI {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Create(ctx context.Context, rep *reportDatamodel.Report) error {
	return store.MapError(r.db.WithContext(ctx).Create(rep).Error, "failed to save report")
}

func (r *ReportRepository) Recent(ctx context.Context, limit int) ([]*reportDatamodel.Report, error) {
	var rows []*reportDatamodel.Report
	err := r.db.WithContext(ctx).Order("generated_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *ReportRepository) Get(ctx context.Context, id string) (*reportDatamodel.Report, error) {
	var rep reportDatamodel.Report
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rep).Error; err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &rep, nil
}

func (r *ReportRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&reportDatamodel.Report{}).Error
}
