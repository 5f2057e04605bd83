package postgres

import (
	"context"

	"github.com/frahmantamala/opsboard/internal/assets"
	assetDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/asset"
	"github.com/frahmantamala/opsboard/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var upsertColumns = []string{
	"type", "serial_number", "model", "manufacturer", "location",
	"ip_address", "mac_address", "os_info", "status", "specifications", "last_seen",
}

type AssetRepository struct {
	db *gorm.DB
}

func NewAssetRepository(db *gorm.DB) assets.RepositoryAPI {
	return &AssetRepository{db: db}
}

// Archive inserts the asset or, when the name exists, overwrites every
// mutable column and bumps last_seen.
func (r *AssetRepository) Archive(ctx context.Context, asset *assetDatamodel.Asset) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).
		Create(asset).Error
	return store.MapError(err, "failed to archive asset")
}

func (r *AssetRepository) List(ctx context.Context) ([]*assetDatamodel.Asset, error) {
	var rows []*assetDatamodel.Asset
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *AssetRepository) Active(ctx context.Context) ([]*assetDatamodel.Asset, error) {
	var rows []*assetDatamodel.Asset
	err := r.db.WithContext(ctx).
		Where("status = ?", assets.StatusActive).
		Order("name ASC").
		Find(&rows).Error
	return rows, err
}

func (r *AssetRepository) GetByID(ctx context.Context, id int64) (*assetDatamodel.Asset, error) {
	var row assetDatamodel.Asset
	if err := r.db.WithContext(ctx).Where("asset_id = ?", id).First(&row).Error; err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}
