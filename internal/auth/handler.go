package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/core/i18n"
	"github.com/frahmantamala/opsboard/internal/rbac"
	"github.com/frahmantamala/opsboard/internal/transport"
	"github.com/frahmantamala/opsboard/pkg/logger"
)

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Cookie  CookieConfig
}

func NewHandler(baseHandler *transport.BaseHandler, svc ServiceAPI, cookie CookieConfig) *Handler {
	if cookie.Name == "" {
		cookie.Name = "opsboard_session"
	}
	return &Handler{
		BaseHandler: baseHandler,
		Service:     svc,
		Cookie:      cookie,
	}
}

// Login handles POST /login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	locale := internal.LocaleFromContext(r.Context())

	var dto LoginDTO
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := h.DecodeJSON(r, &dto); err != nil {
			h.WriteError(w, http.StatusBadRequest, i18n.T(locale, "missing_credentials"))
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			h.WriteError(w, http.StatusBadRequest, i18n.T(locale, "missing_credentials"))
			return
		}
		dto = LoginDTO{
			Username: r.PostFormValue("username"),
			Password: r.PostFormValue("password"),
			Next:     r.PostFormValue("next"),
		}
		if dto.Next == "" {
			dto.Next = r.URL.Query().Get("next")
		}
	}

	session, err := h.Service.Login(r.Context(), dto)
	if err != nil {
		var appErr *internal.AppError
		switch {
		case errors.As(err, &appErr) && appErr.Type == internal.ErrorTypeValidation:
			h.WriteError(w, http.StatusBadRequest, i18n.T(locale, "missing_credentials"))
		case errors.Is(err, internal.ErrInvalidCredentials):
			h.WriteError(w, http.StatusUnauthorized, i18n.T(locale, "invalid_credentials"))
		default:
			h.Logger.Error("Login: unexpected failure", "error", err)
			h.WriteError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.Cookie.Name,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	h.WriteJSON(w, http.StatusOK, LoginResponse{
		Status:    "success",
		User:      session.Principal,
		Redirect:  dto.SafeNext(),
		ExpiresAt: session.ExpiresAt.Unix(),
	})
}

// Logout handles POST /logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w)
	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "success", "redirect": rbac.LoginPath})
}

// SessionMiddleware puts the principal of a valid session cookie into the
// request context. Requests without one are sent to the login page.
func (h *Handler) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(h.Cookie.Name)
		if err != nil || cookie.Value == "" {
			rbac.RedirectToLogin(w, r)
			return
		}

		p, err := h.Service.Authorize(r.Context(), cookie.Value)
		if err != nil {
			if _, ok := internal.IsAppError(err); !ok {
				h.Logger.Error("session middleware: failed to authorize", "error", err)
				h.WriteError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			h.Logger.Debug("session middleware: rejected session", "error", err)
			h.clearCookie(w)
			rbac.RedirectToLogin(w, r)
			return
		}

		ctx := internal.ContextWithPrincipal(r.Context(), p)
		ctx = logger.With(ctx, "username", p.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.Cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
