package user

import (
	"context"
	"net/http"

	"github.com/frahmantamala/opsboard/internal/transport"
)

type ServiceAPI interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Preferences(ctx context.Context, userID int64) (map[string]string, error)
	UpdatePreferences(ctx context.Context, userID int64, prefs map[string]string) (map[string]string, error)
}

// PermissionLister resolves the effective permission keys of a role.
type PermissionLister interface {
	PermissionKeys(ctx context.Context, role string) ([]string, error)
}

type Handler struct {
	*transport.BaseHandler
	Service     ServiceAPI
	Permissions PermissionLister
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI, permissions PermissionLister) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
		Permissions: permissions,
	}
}

type MeResponse struct {
	*User
	Permissions []string `json:"permissions"`
}

// GetCurrentUser handles GET /users/me
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.RequirePrincipal(w, r)
	if !ok {
		return
	}

	u, err := h.Service.GetByID(r.Context(), principal.UserID)
	if err != nil {
		h.Logger.Error("GetCurrentUser: failed to load user", "user_id", principal.UserID, "error", err)
		h.HandleServiceError(w, err, "internal server error")
		return
	}

	resp := MeResponse{User: u, Permissions: []string{}}
	if h.Permissions != nil {
		keys, err := h.Permissions.PermissionKeys(r.Context(), u.Role)
		if err != nil {
			h.Logger.Error("GetCurrentUser: failed to resolve permissions", "role", u.Role, "error", err)
			h.WriteError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		resp.Permissions = keys
	}

	h.WriteJSON(w, http.StatusOK, resp)
}

// GetPreferences handles GET /users/me/preferences
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.RequirePrincipal(w, r)
	if !ok {
		return
	}

	prefs, err := h.Service.Preferences(r.Context(), principal.UserID)
	if err != nil {
		h.Logger.Error("GetPreferences: failed to load preferences", "error", err)
		h.HandleServiceError(w, err, "failed to load preferences")
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"preferences": prefs})
}

// UpdatePreferences handles PUT /users/me/preferences
func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.RequirePrincipal(w, r)
	if !ok {
		return
	}

	var req map[string]string
	if err := h.DecodeJSON(r, &req); err != nil {
		h.HandleServiceError(w, err, "invalid request body")
		return
	}

	prefs, err := h.Service.UpdatePreferences(r.Context(), principal.UserID, req)
	if err != nil {
		h.HandleServiceError(w, err, "failed to save preferences")
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"preferences": prefs})
}

// ListUsers handles GET /admin/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.List(r.Context())
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"users": users, "count": len(users)})
}
