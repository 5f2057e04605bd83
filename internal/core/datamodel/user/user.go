package user

import "time"

type User struct {
	ID           int64      `gorm:"primaryKey;autoIncrement;column:user_id"`
	Username     string     `gorm:"column:username;type:varchar(100);uniqueIndex;not null"`
	DisplayName  string     `gorm:"column:display_name;type:varchar(255)"`
	Email        string     `gorm:"column:email;type:varchar(255)"`
	Department   string     `gorm:"column:department;type:varchar(100)"`
	Title        string     `gorm:"column:title;type:varchar(255)"`
	Role         string     `gorm:"column:role;type:varchar(50);not null;default:user;index"`
	AvatarPath   *string    `gorm:"column:avatar_path;type:varchar(255)"`
	PasswordHash *string    `gorm:"column:password_hash"`
	LastLogin    *time.Time `gorm:"column:last_login"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string { return "users" }

type UserPreference struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	UserID    int64     `gorm:"column:user_id;not null;uniqueIndex:idx_user_preferences_key,priority:1"`
	Key       string    `gorm:"column:pref_key;type:varchar(100);not null;uniqueIndex:idx_user_preferences_key,priority:2"`
	Value     string    `gorm:"column:pref_value;type:text"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (UserPreference) TableName() string { return "user_preferences" }
