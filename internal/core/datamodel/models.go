// Package datamodel lists every table model the store migrates.
package datamodel

import (
	"github.com/frahmantamala/opsboard/internal/core/datamodel/asset"
	"github.com/frahmantamala/opsboard/internal/core/datamodel/inventory"
	"github.com/frahmantamala/opsboard/internal/core/datamodel/logs"
	"github.com/frahmantamala/opsboard/internal/core/datamodel/monitoring"
	"github.com/frahmantamala/opsboard/internal/core/datamodel/rbac"
	"github.com/frahmantamala/opsboard/internal/core/datamodel/report"
	"github.com/frahmantamala/opsboard/internal/core/datamodel/task"
	"github.com/frahmantamala/opsboard/internal/core/datamodel/user"
)

// All returns the models in dependency order.
func All() []interface{} {
	return []interface{}{
		&rbac.Role{},
		&rbac.Permission{},
		&rbac.RolePermission{},
		&user.User{},
		&user.UserPreference{},
		&asset.Asset{},
		&monitoring.HostStatusHistory{},
		&monitoring.PerformanceMetric{},
		&logs.LogMessage{},
		&logs.SystemLog{},
		&inventory.Department{},
		&inventory.Equipment{},
		&task.Task{},
		&task.TaskComment{},
		&report.Report{},
	}
}
