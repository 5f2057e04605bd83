package postgres

import (
	"context"

	inventoryDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/inventory"
	"github.com/frahmantamala/opsboard/internal/inventory"
	"github.com/frahmantamala/opsboard/internal/store"
	"gorm.io/gorm"
)

const departmentsQuery = `
	SELECT d.name, d.description_en, d.description_pl, d.location,
		COUNT(DISTINCT e.id) AS equipment_count
	FROM departments d
	LEFT JOIN equipment e ON e.assigned_to_department = d.name
	GROUP BY d.name, d.description_en, d.description_pl, d.location
	ORDER BY d.name`

type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) inventory.RepositoryAPI {
	return &InventoryRepository{db: db}
}

func (r *InventoryRepository) Departments(ctx context.Context) ([]*inventory.DepartmentRow, error) {
	var rows []*inventory.DepartmentRow
	err := r.db.WithContext(ctx).Raw(departmentsQuery).Scan(&rows).Error
	return rows, err
}

func (r *InventoryRepository) GetDepartment(ctx context.Context, name string) (*inventoryDatamodel.Department, error) {
	var d inventoryDatamodel.Department
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&d).Error; err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func (r *InventoryRepository) DepartmentEquipment(ctx context.Context, name string) ([]*inventoryDatamodel.Equipment, error) {
	var rows []*inventoryDatamodel.Equipment
	err := r.db.WithContext(ctx).
		Where("assigned_to_department = ?", name).
		Order("type ASC, name ASC").
		Find(&rows).Error
	return rows, err
}

func (r *InventoryRepository) PersonEquipment(ctx context.Context, userID int64) ([]*inventoryDatamodel.Equipment, error) {
	var rows []*inventoryDatamodel.Equipment
	err := r.db.WithContext(ctx).
		Where("assigned_to = ?", userID).
		Order("type ASC, name ASC").
		Find(&rows).Error
	return rows, err
}

func (r *InventoryRepository) GetEquipment(ctx context.Context, id int64) (*inventoryDatamodel.Equipment, error) {
	var e inventoryDatamodel.Equipment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *InventoryRepository) Create(ctx context.Context, e *inventoryDatamodel.Equipment) error {
	return store.MapError(r.db.WithContext(ctx).Create(e).Error, "failed to add equipment")
}

// CreateBatch inserts every item or none.
func (r *InventoryRepository) CreateBatch(ctx context.Context, items []*inventoryDatamodel.Equipment) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(items, 100).Error
	})
	return store.MapError(err, "failed to add equipment")
}

// SaveAssignment writes the assignment columns only.
func (r *InventoryRepository) SaveAssignment(ctx context.Context, e *inventoryDatamodel.Equipment) error {
	err := r.db.WithContext(ctx).
		Model(&inventoryDatamodel.Equipment{}).
		Where("id = ?", e.ID).
		Updates(map[string]interface{}{
			"assigned_to_department": e.AssignedToDepartment,
			"assigned_to":            e.AssignedTo,
			"assigned_date":          e.AssignedDate,
			"status":                 e.Status,
			"quantity":               e.Quantity,
		}).Error
	return store.MapError(err, "failed to update equipment assignment")
}
