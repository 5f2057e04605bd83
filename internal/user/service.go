package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/opsboard/internal"
	userDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/user"
	"github.com/frahmantamala/opsboard/internal/core/i18n"
	"github.com/frahmantamala/opsboard/internal/store"
)

const (
	PrefLanguage     = "language"
	maxPrefKeyLength = 100
	maxPreferences   = 50
)

type RepositoryAPI interface {
	GetByUsername(ctx context.Context, username string) (*userDatamodel.User, error)
	GetByID(ctx context.Context, id int64) (*userDatamodel.User, error)
	Create(ctx context.Context, u *userDatamodel.User) error
	UpdateDirectoryFields(ctx context.Context, id int64, attrs Attributes, lastLogin time.Time) error
	List(ctx context.Context) ([]*userDatamodel.User, error)
	SetPasswordHash(ctx context.Context, username, hash string) error
	GetPreferences(ctx context.Context, userID int64) ([]*userDatamodel.UserPreference, error)
	UpsertPreferences(ctx context.Context, userID int64, prefs map[string]string) error
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Sync mirrors a directory login into the users table. New users get the
// default role; existing users only have their directory fields refreshed,
// so avatar and role are never touched.
func (s *Service) Sync(ctx context.Context, username string, attrs Attributes) (*User, error) {
	if attrs.DisplayName == "" {
		attrs.DisplayName = username
	}
	now := s.now().UTC()

	existing, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		s.logger.Error("failed to look up user for sync", "username", username, "error", err)
		return nil, err
	}

	if existing == nil {
		u := NewUser(username, attrs)
		u.LastLogin = &now
		row := ToDataModel(u)
		err := s.repo.Create(ctx, row)
		if err == nil {
			s.logger.Info("user created from directory", "username", username)
			return FromDataModel(row), nil
		}
		if !store.IsConstraintViolation(err) {
			s.logger.Error("failed to create user", "username", username, "error", err)
			return nil, err
		}
		// lost a race with a concurrent first login
		existing, err = s.repo.GetByUsername(ctx, username)
		if err != nil || existing == nil {
			return nil, fmt.Errorf("reload user %s after conflict: %w", username, err)
		}
	}

	if err := s.repo.UpdateDirectoryFields(ctx, existing.ID, attrs, now); err != nil {
		s.logger.Error("failed to update user from directory", "username", username, "error", err)
		return nil, err
	}

	u := FromDataModel(existing)
	u.DisplayName = attrs.DisplayName
	u.Email = attrs.Email
	u.Department = attrs.Department
	u.Title = attrs.Title
	u.LastLogin = &now
	return u, nil
}

func (s *Service) GetByUsername(ctx context.Context, username string) (*User, error) {
	row, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, internal.ErrUserNotFound
	}
	return FromDataModel(row), nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, internal.ErrUserNotFound
	}
	return FromDataModel(row), nil
}

// PasswordHash returns the local fallback hash for username, if one is set.
func (s *Service) PasswordHash(ctx context.Context, username string) (*User, string, error) {
	row, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, "", err
	}
	if row == nil || row.PasswordHash == nil {
		return nil, "", internal.ErrUserNotFound
	}
	return FromDataModel(row), *row.PasswordHash, nil
}

// EnsureLocalAccount creates or updates a local account with the given role
// and bcrypt hash. Used by the seed command.
func (s *Service) EnsureLocalAccount(ctx context.Context, username, role, hash string) error {
	row, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if row == nil {
		u := NewUser(username, Attributes{})
		u.Role = role
		if err := s.repo.Create(ctx, ToDataModel(u)); err != nil {
			return store.MapError(err, "could not create local account")
		}
	}
	return s.repo.SetPasswordHash(ctx, username, hash)
}

func (s *Service) List(ctx context.Context) ([]*User, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		return nil, err
	}
	users := make([]*User, 0, len(rows))
	for _, r := range rows {
		users = append(users, FromDataModel(r))
	}
	return users, nil
}

func (s *Service) Preferences(ctx context.Context, userID int64) (map[string]string, error) {
	rows, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	prefs := make(map[string]string, len(rows))
	for _, r := range rows {
		prefs[r.Key] = r.Value
	}
	return prefs, nil
}

func (s *Service) UpdatePreferences(ctx context.Context, userID int64, prefs map[string]string) (map[string]string, error) {
	if len(prefs) == 0 {
		return nil, internal.NewValidationError("no preferences given", internal.ErrCodeValidationFailed)
	}
	if len(prefs) > maxPreferences {
		return nil, internal.NewValidationError("too many preferences", internal.ErrCodeValidationFailed)
	}

	clean := make(map[string]string, len(prefs))
	for k, v := range prefs {
		k = strings.TrimSpace(k)
		if k == "" || len(k) > maxPrefKeyLength {
			return nil, internal.NewValidationFieldError("key", "invalid preference key", internal.ErrCodeValidationFailed)
		}
		if k == PrefLanguage {
			loc, ok := i18n.Lookup(v)
			if !ok {
				return nil, internal.NewValidationFieldError(PrefLanguage, "language must be en or pl", internal.ErrCodeValidationFailed)
			}
			v = string(loc)
		}
		clean[k] = v
	}

	if err := s.repo.UpsertPreferences(ctx, userID, clean); err != nil {
		s.logger.Error("failed to save preferences", "user_id", userID, "error", err)
		return nil, err
	}
	return s.Preferences(ctx, userID)
}
