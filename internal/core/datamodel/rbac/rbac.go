package rbac

import "time"

type Role struct {
	ID            int64     `gorm:"primaryKey;autoIncrement;column:role_id"`
	Key           string    `gorm:"column:role_key;type:varchar(50);uniqueIndex;not null"`
	DescriptionEN string    `gorm:"column:description_en;type:varchar(255)"`
	DescriptionPL string    `gorm:"column:description_pl;type:varchar(255)"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Role) TableName() string { return "roles" }

type Permission struct {
	ID            int64     `gorm:"primaryKey;autoIncrement;column:permission_id"`
	Key           string    `gorm:"column:permission_key;type:varchar(100);uniqueIndex;not null"`
	Category      string    `gorm:"column:category;type:varchar(50);not null;default:general"`
	NameEN        string    `gorm:"column:name_en;type:varchar(255)"`
	NamePL        string    `gorm:"column:name_pl;type:varchar(255)"`
	DescriptionEN string    `gorm:"column:description_en;type:text"`
	DescriptionPL string    `gorm:"column:description_pl;type:text"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Permission) TableName() string { return "permissions" }

type RolePermission struct {
	RoleID       int64 `gorm:"primaryKey;column:role_id;autoIncrement:false"`
	PermissionID int64 `gorm:"primaryKey;column:permission_id;autoIncrement:false;index"`
}

func (RolePermission) TableName() string { return "role_permissions" }
