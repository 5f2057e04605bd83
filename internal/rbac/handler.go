package rbac

import (
	"context"
	"net/http"
	"strings"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/core/i18n"
	"github.com/frahmantamala/opsboard/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	Roles(ctx context.Context, locale i18n.Locale) ([]*Role, error)
	PermissionsByCategory(ctx context.Context, locale i18n.Locale) (map[string][]*Permission, error)
	RolePermissions(ctx context.Context, role string) ([]string, error)
	Grant(ctx context.Context, role, key string) error
	Revoke(ctx context.Context, role, key string) error
	ChangeUserRole(ctx context.Context, username, role string) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

type GrantRequest struct {
	Permission string `json:"permission"`
}

type ChangeRoleRequest struct {
	Role string `json:"role"`
}

// ListRoles handles GET /admin/roles
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Service.Roles(r.Context(), internal.LocaleFromContext(r.Context()))
	if err != nil {
		h.Logger.Error("ListRoles: failed to list roles", "error", err)
		h.HandleServiceError(w, err, "failed to list roles")
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"roles": roles})
}

// ListPermissions handles GET /admin/permissions
func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.Service.PermissionsByCategory(r.Context(), internal.LocaleFromContext(r.Context()))
	if err != nil {
		h.Logger.Error("ListPermissions: failed to list permissions", "error", err)
		h.HandleServiceError(w, err, "failed to list permissions")
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"permissions": perms})
}

// GetRolePermissions handles GET /admin/roles/{role}/permissions
func (h *Handler) GetRolePermissions(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "role")
	keys, err := h.Service.RolePermissions(r.Context(), role)
	if err != nil {
		h.HandleServiceError(w, err, "failed to load role permissions")
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"role": role, "permissions": keys})
}

// GrantPermission handles POST /admin/roles/{role}/permissions
func (h *Handler) GrantPermission(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.HandleServiceError(w, err, "invalid request body")
		return
	}
	key := strings.TrimSpace(req.Permission)
	if key == "" {
		h.WriteError(w, http.StatusBadRequest, "permission is required")
		return
	}

	role := chi.URLParam(r, "role")
	if err := h.Service.Grant(r.Context(), role, key); err != nil {
		h.HandleServiceError(w, err, "failed to grant permission")
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "role": role, "permission": key})
}

// RevokePermission handles DELETE /admin/roles/{role}/permissions/{key}
func (h *Handler) RevokePermission(w http.ResponseWriter, r *http.Request) {
	role, key := chi.URLParam(r, "role"), chi.URLParam(r, "key")
	if err := h.Service.Revoke(r.Context(), role, key); err != nil {
		h.HandleServiceError(w, err, "failed to revoke permission")
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "role": role, "permission": key})
}

// ChangeUserRole handles PUT /admin/users/{username}/role
func (h *Handler) ChangeUserRole(w http.ResponseWriter, r *http.Request) {
	var req ChangeRoleRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.HandleServiceError(w, err, "invalid request body")
		return
	}

	username := chi.URLParam(r, "username")
	if err := h.Service.ChangeUserRole(r.Context(), username, strings.TrimSpace(req.Role)); err != nil {
		h.HandleServiceError(w, err, "failed to change role")
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "username": username, "role": req.Role})
}
