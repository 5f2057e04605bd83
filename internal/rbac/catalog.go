package rbac

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	rbacDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/rbac"
	"github.com/frahmantamala/opsboard/internal/store"
	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

//go:embed catalog.sql
var catalogSQL string

// CatalogSQL returns the bundled catalog script.
func CatalogSQL() string {
	return catalogSQL
}

// duplicateKeys maps historical permission keys onto their canonical key.
var duplicateKeys = []struct {
	Duplicate string
	Canonical string
}{
	{Duplicate: "view_tasks", Canonical: PermTasksView},
	{Duplicate: "tasks_manage_all", Canonical: PermManageAllTasks},
	{Duplicate: "view_equipment", Canonical: PermViewAssets},
}

// SplitStatements splits a SQL script on semicolons that sit outside quoted
// regions. Line comments are dropped and empty statements skipped.
func SplitStatements(script string) []string {
	var (
		stmts   []string
		current strings.Builder
		quote   rune
	)

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			stmts = append(stmts, s)
		}
		current.Reset()
	}

	runes := []rune(script)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case quote != 0:
			current.WriteRune(c)
			// a doubled quote is an escape and toggles twice
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
			current.WriteRune(c)
		case c == '-' && i+1 < len(runes) && runes[i+1] == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			current.WriteRune('\n')
		case c == ';':
			flush()
		default:
			current.WriteRune(c)
		}
	}
	flush()
	return stmts
}

// ApplyCatalog loads the bundled catalog when the roles table is empty. All
// statements run in one transaction. It reports whether anything was applied.
func ApplyCatalog(ctx context.Context, db *sqlx.DB, logger *slog.Logger) (bool, error) {
	var roles int64
	if err := db.GetContext(ctx, &roles, "SELECT COUNT(*) FROM roles"); err != nil {
		return false, fmt.Errorf("count roles: %w", err)
	}
	if roles > 0 {
		logger.Debug("rbac catalog already present", "roles", roles)
		return false, nil
	}

	stmts := SplitStatements(catalogSQL)
	err := store.WithSQLTx(ctx, db, func(tx *sqlx.Tx) error {
		for i, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("catalog statement %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	logger.Info("rbac catalog applied", "statements", len(stmts))
	return true, nil
}

// Consolidate folds every known duplicate permission key into its canonical
// key. Role bindings move to the canonical row unless already present, then
// the duplicate is removed. When only the duplicate exists it is renamed.
func Consolidate(ctx context.Context, s *store.Store, logger *slog.Logger) (int, error) {
	merged := 0
	err := s.WithTx(ctx, func(tx *gorm.DB) error {
		for _, pair := range duplicateKeys {
			var dup rbacDatamodel.Permission
			err := tx.Where("permission_key = ?", pair.Duplicate).First(&dup).Error
			if store.IsNotFound(err) {
				continue
			}
			if err != nil {
				return fmt.Errorf("load %s: %w", pair.Duplicate, err)
			}

			var canonical rbacDatamodel.Permission
			err = tx.Where("permission_key = ?", pair.Canonical).First(&canonical).Error
			if store.IsNotFound(err) {
				if err := tx.Model(&dup).Update("permission_key", pair.Canonical).Error; err != nil {
					return fmt.Errorf("rename %s: %w", pair.Duplicate, err)
				}
				logger.Info("permission renamed", "from", pair.Duplicate, "to", pair.Canonical)
				merged++
				continue
			}
			if err != nil {
				return fmt.Errorf("load %s: %w", pair.Canonical, err)
			}

			err = tx.Exec(`INSERT INTO role_permissions (role_id, permission_id)
				SELECT rp.role_id, ? FROM role_permissions rp
				WHERE rp.permission_id = ?
				AND rp.role_id NOT IN (SELECT role_id FROM role_permissions WHERE permission_id = ?)`,
				canonical.ID, dup.ID, canonical.ID).Error
			if err != nil {
				return fmt.Errorf("move bindings of %s: %w", pair.Duplicate, err)
			}
			if err := tx.Where("permission_id = ?", dup.ID).Delete(&rbacDatamodel.RolePermission{}).Error; err != nil {
				return fmt.Errorf("drop bindings of %s: %w", pair.Duplicate, err)
			}
			if err := tx.Delete(&rbacDatamodel.Permission{}, dup.ID).Error; err != nil {
				return fmt.Errorf("drop %s: %w", pair.Duplicate, err)
			}
			logger.Info("duplicate permission consolidated", "duplicate", pair.Duplicate, "canonical", pair.Canonical)
			merged++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return merged, nil
}

// Bootstrap applies the catalog and consolidates duplicate keys.
func Bootstrap(ctx context.Context, s *store.Store, logger *slog.Logger) error {
	if _, err := ApplyCatalog(ctx, s.SQL, logger); err != nil {
		return fmt.Errorf("apply rbac catalog: %w", err)
	}
	if _, err := Consolidate(ctx, s, logger); err != nil {
		return fmt.Errorf("consolidate permissions: %w", err)
	}
	return nil
}
