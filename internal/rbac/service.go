package rbac

import (
	"context"
	"log/slog"
	"slices"
	"sort"

	"github.com/frahmantamala/opsboard/internal"
	rbacDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/rbac"
	"github.com/frahmantamala/opsboard/internal/core/events"
	"github.com/frahmantamala/opsboard/internal/core/i18n"
)

type RepositoryAPI interface {
	PermissionSource
	ListRoles(ctx context.Context) ([]*rbacDatamodel.Role, error)
	GetRole(ctx context.Context, key string) (*rbacDatamodel.Role, error)
	CountUsersByRole(ctx context.Context) (map[string]int64, error)
	ListPermissions(ctx context.Context) ([]*rbacDatamodel.Permission, error)
	GetPermission(ctx context.Context, key string) (*rbacDatamodel.Permission, error)
	AddRolePermission(ctx context.Context, roleID, permissionID int64) error
	RemoveRolePermission(ctx context.Context, roleID, permissionID int64) error
	UserRole(ctx context.Context, username string) (string, error)
	UpdateUserRole(ctx context.Context, username, role string) (int64, error)
}

// RoleResolver is satisfied by *Resolver.
type RoleResolver interface {
	Resolve(ctx context.Context, role string) (PermissionSet, error)
}

// Service backs the role administration screens.
type Service struct {
	repo      RepositoryAPI
	resolver  RoleResolver
	publisher events.Publisher
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, resolver RoleResolver, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		resolver:  resolver,
		publisher: publisher,
		logger:    logger,
	}
}

// Roles lists roles admin, manager, user, viewer first, then any others by
// key, each with its user count.
func (s *Service) Roles(ctx context.Context, locale i18n.Locale) ([]*Role, error) {
	rows, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.CountUsersByRole(ctx)
	if err != nil {
		return nil, err
	}

	rank := func(key string) int {
		if i := slices.Index(RoleOrder, key); i >= 0 {
			return i
		}
		return len(RoleOrder)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		ri, rj := rank(rows[i].Key), rank(rows[j].Key)
		if ri != rj {
			return ri < rj
		}
		return rows[i].Key < rows[j].Key
	})

	roles := make([]*Role, 0, len(rows))
	for _, row := range rows {
		r := RoleFromDataModel(row, locale)
		r.UserCount = counts[row.Key]
		roles = append(roles, r)
	}
	return roles, nil
}

func (s *Service) PermissionsByCategory(ctx context.Context, locale i18n.Locale) (map[string][]*Permission, error) {
	rows, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]*Permission)
	for _, row := range rows {
		p := PermissionFromDataModel(row, locale)
		out[p.Category] = append(out[p.Category], p)
	}
	return out, nil
}

// RolePermissions returns the keys bound to role in storage.
func (s *Service) RolePermissions(ctx context.Context, role string) ([]string, error) {
	r, err := s.repo.GetRole(ctx, role)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, internal.ErrRoleNotFound
	}
	return s.repo.PermissionKeysForRole(ctx, role)
}

// Grant binds key to role. Granting an existing binding is a no-op.
func (s *Service) Grant(ctx context.Context, role, key string) error {
	r, p, err := s.lookup(ctx, role, key)
	if err != nil {
		return err
	}
	if err := s.repo.AddRolePermission(ctx, r.ID, p.ID); err != nil {
		s.logger.Error("failed to grant permission", "role", role, "permission", key, "error", err)
		return err
	}
	s.logger.Info("permission granted", "role", role, "permission", key)
	return s.catalogChanged(ctx, role, "permission_granted")
}

func (s *Service) Revoke(ctx context.Context, role, key string) error {
	r, p, err := s.lookup(ctx, role, key)
	if err != nil {
		return err
	}
	if err := s.repo.RemoveRolePermission(ctx, r.ID, p.ID); err != nil {
		s.logger.Error("failed to revoke permission", "role", role, "permission", key, "error", err)
		return err
	}
	s.logger.Info("permission revoked", "role", role, "permission", key)
	return s.catalogChanged(ctx, role, "permission_revoked")
}

func (s *Service) ChangeUserRole(ctx context.Context, username, role string) error {
	r, err := s.repo.GetRole(ctx, role)
	if err != nil {
		return err
	}
	if r == nil {
		return internal.ErrRoleNotFound
	}
	n, err := s.repo.UpdateUserRole(ctx, username, role)
	if err != nil {
		s.logger.Error("failed to change user role", "username", username, "role", role, "error", err)
		return err
	}
	if n == 0 {
		return internal.ErrUserNotFound
	}
	s.logger.Info("user role changed", "username", username, "role", role)
	return s.catalogChanged(ctx, role, "user_role_changed")
}

// CanUserPerform checks key for a user looked up by name.
func (s *Service) CanUserPerform(ctx context.Context, username, key string) (bool, error) {
	role, err := s.repo.UserRole(ctx, username)
	if err != nil {
		return false, err
	}
	if role == "" {
		return false, nil
	}
	set, err := s.resolver.Resolve(ctx, role)
	if err != nil {
		return false, err
	}
	return set.Has(key), nil
}

func (s *Service) lookup(ctx context.Context, role, key string) (*rbacDatamodel.Role, *rbacDatamodel.Permission, error) {
	r, err := s.repo.GetRole(ctx, role)
	if err != nil {
		return nil, nil, err
	}
	if r == nil {
		return nil, nil, internal.ErrRoleNotFound
	}
	p, err := s.repo.GetPermission(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	if p == nil {
		return nil, nil, internal.ErrPermissionNotFound
	}
	return r, p, nil
}

func (s *Service) catalogChanged(ctx context.Context, role, reason string) error {
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.PublishSync(ctx, events.NewCatalogChangedEvent(role, reason)); err != nil {
		s.logger.Error("failed to publish catalog change", "role", role, "error", err)
		return internal.NewInternalError("failed to refresh permission cache", err)
	}
	return nil
}
