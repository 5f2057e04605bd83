package postgres

import (
	"context"

	rbacDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/rbac"
	userDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/user"
	"github.com/frahmantamala/opsboard/internal/rbac"
	"github.com/frahmantamala/opsboard/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RBACRepository struct {
	db *gorm.DB
}

func NewRBACRepository(db *gorm.DB) rbac.RepositoryAPI {
	return &RBACRepository{db: db}
}

func (r *RBACRepository) PermissionKeysForRole(ctx context.Context, role string) ([]string, error) {
	var keys []string
	err := r.db.WithContext(ctx).Raw(`SELECT p.permission_key
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.permission_id
		JOIN roles r ON r.role_id = rp.role_id
		WHERE r.role_key = ?
		ORDER BY p.permission_key`, role).Scan(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *RBACRepository) AllPermissionKeys(ctx context.Context) ([]string, error) {
	var keys []string
	err := r.db.WithContext(ctx).
		Model(&rbacDatamodel.Permission{}).
		Order("permission_key").
		Pluck("permission_key", &keys).Error
	return keys, err
}

func (r *RBACRepository) ListRoles(ctx context.Context) ([]*rbacDatamodel.Role, error) {
	var roles []*rbacDatamodel.Role
	err := r.db.WithContext(ctx).Order("role_key").Find(&roles).Error
	return roles, err
}

func (r *RBACRepository) GetRole(ctx context.Context, key string) (*rbacDatamodel.Role, error) {
	var role rbacDatamodel.Role
	err := r.db.WithContext(ctx).Where("role_key = ?", key).First(&role).Error
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &role, nil
}

func (r *RBACRepository) CountUsersByRole(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Role  string
		Count int64
	}
	err := r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Select("role, COUNT(*) AS count").
		Group("role").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Role] = row.Count
	}
	return counts, nil
}

func (r *RBACRepository) ListPermissions(ctx context.Context) ([]*rbacDatamodel.Permission, error) {
	var perms []*rbacDatamodel.Permission
	err := r.db.WithContext(ctx).Order("category, permission_key").Find(&perms).Error
	return perms, err
}

func (r *RBACRepository) GetPermission(ctx context.Context, key string) (*rbacDatamodel.Permission, error) {
	var p rbacDatamodel.Permission
	err := r.db.WithContext(ctx).Where("permission_key = ?", key).First(&p).Error
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *RBACRepository) AddRolePermission(ctx context.Context, roleID, permissionID int64) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rbacDatamodel.RolePermission{RoleID: roleID, PermissionID: permissionID}).Error
}

func (r *RBACRepository) RemoveRolePermission(ctx context.Context, roleID, permissionID int64) error {
	return r.db.WithContext(ctx).
		Where("role_id = ? AND permission_id = ?", roleID, permissionID).
		Delete(&rbacDatamodel.RolePermission{}).Error
}

func (r *RBACRepository) UserRole(ctx context.Context, username string) (string, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).Select("role").Where("username = ?", username).First(&u).Error
	if err != nil {
		if store.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return u.Role, nil
}

func (r *RBACRepository) UpdateUserRole(ctx context.Context, username, role string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("username = ?", username).
		Update("role", role)
	return res.RowsAffected, res.Error
}
