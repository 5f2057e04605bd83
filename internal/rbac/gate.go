package rbac

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/core/i18n"
	"github.com/frahmantamala/opsboard/internal/transport"
	"github.com/frahmantamala/opsboard/internal/user"
)

const LoginPath = "/login"

// Checker is the permission predicate the gates depend on.
type Checker interface {
	HasPermission(ctx context.Context, p *internal.Principal, key string) bool
}

// Gate builds chi middleware that guards routes by permission or role.
type Gate struct {
	*transport.BaseHandler
	checker Checker
}

func NewGate(baseHandler *transport.BaseHandler, checker Checker) *Gate {
	return &Gate{BaseHandler: baseHandler, checker: checker}
}

// Allowed reports whether the caller of r holds key.
func (g *Gate) Allowed(r *http.Request, key string) bool {
	p, _ := internal.PrincipalFromContext(r.Context())
	return g.checker.HasPermission(r.Context(), p, key)
}

func (g *Gate) RequirePermission(key string) func(http.Handler) http.Handler {
	return g.require(func(r *http.Request, p *internal.Principal) bool {
		return g.checker.HasPermission(r.Context(), p, key)
	}, "permission", key)
}

func (g *Gate) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return g.require(func(_ *http.Request, p *internal.Principal) bool {
		return slices.Contains(roles, p.Role)
	}, "roles", strings.Join(roles, ","))
}

func (g *Gate) AdminRequired() func(http.Handler) http.Handler {
	return g.RequireRole(user.RoleAdmin)
}

func (g *Gate) ManagerRequired() func(http.Handler) http.Handler {
	return g.RequireRole(user.RoleAdmin, user.RoleManager)
}

func (g *Gate) require(allow func(*http.Request, *internal.Principal) bool, kind, want string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := internal.PrincipalFromContext(r.Context())
			if !ok {
				RedirectToLogin(w, r)
				return
			}
			if !allow(r, p) {
				g.Logger.Warn("access denied",
					"username", p.Username,
					"role", p.Role,
					kind, want,
					"path", r.URL.Path)
				g.Forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RedirectToLogin sends the browser to the login page, keeping the current
// URL in next.
func RedirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
	http.Redirect(w, r, target, http.StatusFound)
}

// Forbidden writes the localized 403 as JSON for API callers and as a small
// HTML page otherwise.
func (g *Gate) Forbidden(w http.ResponseWriter, r *http.Request) {
	msg := i18n.T(internal.LocaleFromContext(r.Context()), "forbidden")
	if WantsJSON(r) {
		g.WriteJSON(w, http.StatusForbidden, transport.ErrorResponse{Status: "error", Message: msg})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	fmt.Fprintf(w, "<!DOCTYPE html><html><head><title>403</title></head><body><h1>403</h1><p>%s</p></body></html>", html.EscapeString(msg))
}

func WantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}
