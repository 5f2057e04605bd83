package user

import (
	"time"

	userDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/user"
)

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleUser    = "user"
	RoleViewer  = "viewer"

	DefaultRole = RoleUser
)

type User struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	Email       string     `json:"email"`
	Department  string     `json:"department"`
	Title       string     `json:"title"`
	Role        string     `json:"role"`
	AvatarPath  *string    `json:"avatar_path,omitempty"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Attributes are the directory-owned fields refreshed on every login.
type Attributes struct {
	DisplayName string
	Email       string
	Department  string
	Title       string
}

func NewUser(username string, attrs Attributes) *User {
	displayName := attrs.DisplayName
	if displayName == "" {
		displayName = username
	}
	return &User{
		Username:    username,
		DisplayName: displayName,
		Email:       attrs.Email,
		Department:  attrs.Department,
		Title:       attrs.Title,
		Role:        DefaultRole,
	}
}

func ToDataModel(u *User) *userDatamodel.User {
	return &userDatamodel.User{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Department:  u.Department,
		Title:       u.Title,
		Role:        u.Role,
		AvatarPath:  u.AvatarPath,
		LastLogin:   u.LastLogin,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Department:  u.Department,
		Title:       u.Title,
		Role:        u.Role,
		AvatarPath:  u.AvatarPath,
		LastLogin:   u.LastLogin,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}
