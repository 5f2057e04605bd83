package middleware

import (
	"net/http"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/core/i18n"
)

// Locale stores the request language (?lang=, then Accept-Language) in the context.
func Locale(fallback i18n.Locale) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := i18n.FromRequest(r, fallback)
			next.ServeHTTP(w, r.WithContext(internal.ContextWithLocale(r.Context(), l)))
		})
	}
}
