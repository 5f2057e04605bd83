package store

import (
	"context"
	"fmt"

	"github.com/frahmantamala/opsboard/internal/core/datamodel/inventory"
	"github.com/frahmantamala/opsboard/internal/core/datamodel/report"
	"github.com/frahmantamala/opsboard/internal/core/datamodel/task"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Bootstrap makes sure the tables owned by the application exist, migrates
// the legacy department description column and seeds the department catalog.
// Safe to run on every boot.
func (s *Store) Bootstrap(ctx context.Context) error {
	db := s.DB(ctx)

	if err := migrateLegacyDepartments(db); err != nil {
		return err
	}

	if err := db.AutoMigrate(&inventory.Department{}, &task.Task{}, &task.TaskComment{}, &report.Report{}); err != nil {
		return fmt.Errorf("ensure tables: %w", err)
	}

	m := db.Migrator()
	if !m.HasColumn(&inventory.Department{}, "description_pl") {
		if err := m.AddColumn(&inventory.Department{}, "DescriptionPL"); err != nil {
			return fmt.Errorf("add description_pl: %w", err)
		}
	}

	if err := SeedDepartments(ctx, db); err != nil {
		return err
	}

	s.logger.Info("store bootstrap complete", "departments", len(DefaultDepartments))
	return nil
}

func migrateLegacyDepartments(db *gorm.DB) error {
	m := db.Migrator()
	if !m.HasTable(&inventory.Department{}) {
		return nil
	}
	if m.HasColumn(&inventory.Department{}, "description") && !m.HasColumn(&inventory.Department{}, "description_en") {
		if err := m.RenameColumn(&inventory.Department{}, "description", "description_en"); err != nil {
			return fmt.Errorf("rename departments.description: %w", err)
		}
	}
	return nil
}

// SeedDepartments upserts the default catalog, refreshing descriptions but
// keeping an operator-set location.
func SeedDepartments(ctx context.Context, db *gorm.DB) error {
	rows := make([]inventory.Department, len(DefaultDepartments))
	copy(rows, DefaultDepartments)

	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"description_en", "description_pl"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("seed departments: %w", err)
	}
	return nil
}

var DefaultDepartments = []inventory.Department{
	{Name: "Administration", DescriptionEN: "Administration Department", DescriptionPL: "Dział Administracji"},
	{Name: "Development", DescriptionEN: "Software Development", DescriptionPL: "Rozwój Oprogramowania"},
	{Name: "Finance", DescriptionEN: "Finance Department", DescriptionPL: "Dział Finansowy"},
	{Name: "HR", DescriptionEN: "Human Resources", DescriptionPL: "Zasoby Ludzkie"},
	{Name: "IT", DescriptionEN: "Information Technology Department", DescriptionPL: "Dział Technologii Informacyjnej"},
	{Name: "Marketing", DescriptionEN: "Marketing Department", DescriptionPL: "Dział Marketingu"},
	{Name: "Operations", DescriptionEN: "Operations Department", DescriptionPL: "Dział Operacyjny"},
	{Name: "Research", DescriptionEN: "Research and Development", DescriptionPL: "Badania i Rozwój"},
	{Name: "Sales", DescriptionEN: "Sales Department", DescriptionPL: "Dział Sprzedaży"},
	{Name: "Support", DescriptionEN: "Technical Support", DescriptionPL: "Wsparcie Techniczne"},
}
