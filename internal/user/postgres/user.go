package postgres

import (
	"context"
	"time"

	userDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/user"
	"github.com/frahmantamala/opsboard/internal/store"
	"github.com/frahmantamala/opsboard/internal/user"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) user.RepositoryAPI {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).Where("user_id = ?", id).First(&u).Error
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *userDatamodel.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

// UpdateDirectoryFields writes only the columns the directory owns.
func (r *UserRepository) UpdateDirectoryFields(ctx context.Context, id int64, attrs user.Attributes, lastLogin time.Time) error {
	return r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("user_id = ?", id).
		Updates(map[string]interface{}{
			"display_name": attrs.DisplayName,
			"email":        attrs.Email,
			"department":   attrs.Department,
			"title":        attrs.Title,
			"last_login":   lastLogin,
		}).Error
}

func (r *UserRepository) List(ctx context.Context) ([]*userDatamodel.User, error) {
	var users []*userDatamodel.User
	err := r.db.WithContext(ctx).Order("username ASC").Find(&users).Error
	return users, err
}

func (r *UserRepository) SetPasswordHash(ctx context.Context, username, hash string) error {
	return r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("username = ?", username).
		Update("password_hash", hash).Error
}

func (r *UserRepository) GetPreferences(ctx context.Context, userID int64) ([]*userDatamodel.UserPreference, error) {
	var prefs []*userDatamodel.UserPreference
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("pref_key ASC").Find(&prefs).Error
	return prefs, err
}

func (r *UserRepository) UpsertPreferences(ctx context.Context, userID int64, prefs map[string]string) error {
	rows := make([]userDatamodel.UserPreference, 0, len(prefs))
	for k, v := range prefs {
		rows = append(rows, userDatamodel.UserPreference{UserID: userID, Key: k, Value: v})
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "pref_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"pref_value", "updated_at"}),
	}).Create(&rows).Error
}
