// Package rbac resolves role permission sets, gates HTTP handlers on them and
// owns the bundled role/permission catalog.
package rbac

import (
	"sort"

	rbacDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/rbac"
	"github.com/frahmantamala/opsboard/internal/core/i18n"
	"github.com/frahmantamala/opsboard/internal/user"
)

// Canonical permission keys.
const (
	PermViewMonitoring  = "view_monitoring"
	PermViewLogs        = "view_logs"
	PermViewGLPI        = "view_glpi"
	PermViewAssets      = "view_assets"
	PermViewReports     = "view_reports"
	PermManageProfile   = "manage_profile"
	PermManageUsers     = "manage_users"
	PermManageInventory = "manage_inventory"
	PermManageEquipment = "manage_equipment"
	PermAssignEquipment = "assign_equipment"
	PermVNCConnect      = "vnc_connect"
	PermRefreshData     = "refresh_data"
	PermCreateReports   = "create_reports"
	PermDeleteReports   = "delete_reports"
	PermManageReports   = "manage_reports"
	PermTasksView       = "tasks_view"
	PermTasksCreate     = "tasks_create"
	PermTasksUpdate     = "tasks_update"
	PermTasksComment    = "tasks_comment"
	PermTasksDelete     = "tasks_delete"
	PermManageAllTasks  = "manage_all_tasks"
)

// PermissionKeys is the closed set of keys the catalog defines.
var PermissionKeys = []string{
	PermViewMonitoring, PermViewLogs, PermViewGLPI, PermViewAssets, PermViewReports,
	PermManageProfile, PermManageUsers, PermManageInventory, PermManageEquipment,
	PermAssignEquipment, PermVNCConnect, PermRefreshData, PermCreateReports,
	PermDeleteReports, PermManageReports, PermTasksView, PermTasksCreate,
	PermTasksUpdate, PermTasksComment, PermTasksDelete, PermManageAllTasks,
}

// RoleOrder is the display order of the fixed roles.
var RoleOrder = []string{user.RoleAdmin, user.RoleManager, user.RoleUser, user.RoleViewer}

// PermissionSet is the effective permission set of a role. The admin set is
// universal and answers true for every key.
type PermissionSet struct {
	universal bool
	keys      map[string]struct{}
}

func NewPermissionSet(keys ...string) PermissionSet {
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return PermissionSet{keys: m}
}

func UniversalSet() PermissionSet {
	return PermissionSet{universal: true}
}

func (s PermissionSet) Universal() bool { return s.universal }

func (s PermissionSet) Has(key string) bool {
	if s.universal {
		return true
	}
	_, ok := s.keys[key]
	return ok
}

// Keys returns the explicit keys, sorted. A universal set has none.
func (s PermissionSet) Keys() []string {
	out := make([]string, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type Role struct {
	ID          int64  `json:"id"`
	Key         string `json:"key"`
	Description string `json:"description"`
	UserCount   int64  `json:"user_count"`
}

type Permission struct {
	ID          int64  `json:"id"`
	Key         string `json:"key"`
	Category    string `json:"category"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func RoleFromDataModel(r *rbacDatamodel.Role, l i18n.Locale) *Role {
	desc := r.DescriptionPL
	if l == i18n.EN || desc == "" {
		desc = r.DescriptionEN
	}
	return &Role{ID: r.ID, Key: r.Key, Description: desc}
}

func PermissionFromDataModel(p *rbacDatamodel.Permission, l i18n.Locale) *Permission {
	name, desc := p.NamePL, p.DescriptionPL
	if l == i18n.EN || name == "" {
		name, desc = p.NameEN, p.DescriptionEN
	}
	return &Permission{
		ID:          p.ID,
		Key:         p.Key,
		Category:    p.Category,
		Name:        name,
		Description: desc,
	}
}
