package rbac

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/core/cache"
	"github.com/frahmantamala/opsboard/internal/core/events"
	"github.com/frahmantamala/opsboard/internal/user"
)

// PermissionSource loads role bindings from storage.
type PermissionSource interface {
	PermissionKeysForRole(ctx context.Context, role string) ([]string, error)
	AllPermissionKeys(ctx context.Context) ([]string, error)
}

// Resolver answers permission questions for a role. Non-admin sets are
// cached per role and dropped on rbac.catalog_changed.
type Resolver struct {
	source PermissionSource
	cache  cache.Cache[string, PermissionSet]
	logger *slog.Logger
}

func NewResolver(source PermissionSource, ttl time.Duration, logger *slog.Logger) *Resolver {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Resolver{
		source: source,
		cache:  cache.NewTTL[string, PermissionSet](ttl),
		logger: logger,
	}
}

// Subscribe wires cache invalidation to the event bus.
func (r *Resolver) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventTypeCatalogChanged, func(ctx context.Context, event events.Event) error {
		changed, ok := event.(*events.CatalogChangedEvent)
		if !ok || changed.Role == "" {
			r.cache.InvalidateAll()
			return nil
		}
		r.cache.Invalidate(changed.Role)
		return nil
	})
}

func (r *Resolver) Resolve(ctx context.Context, role string) (PermissionSet, error) {
	if role == user.RoleAdmin {
		return UniversalSet(), nil
	}
	if set, ok := r.cache.Get(role); ok {
		return set, nil
	}

	keys, err := r.source.PermissionKeysForRole(ctx, role)
	if err != nil {
		return PermissionSet{}, err
	}
	set := NewPermissionSet(keys...)
	r.cache.Set(role, set)
	return set, nil
}

// HasPermission is false for a missing principal and true for admin. Storage
// errors deny.
func (r *Resolver) HasPermission(ctx context.Context, p *internal.Principal, key string) bool {
	if p == nil || p.Username == "" {
		return false
	}
	if p.IsAdmin() {
		return true
	}
	set, err := r.Resolve(ctx, p.Role)
	if err != nil {
		r.logger.Error("failed to resolve permissions", "role", p.Role, "error", err)
		return false
	}
	return set.Has(key)
}

// PermissionKeys lists the effective keys of a role. Admin gets every key
// in the catalog.
func (r *Resolver) PermissionKeys(ctx context.Context, role string) ([]string, error) {
	set, err := r.Resolve(ctx, role)
	if err != nil {
		return nil, err
	}
	if set.Universal() {
		return r.source.AllPermissionKeys(ctx)
	}
	return set.Keys(), nil
}
