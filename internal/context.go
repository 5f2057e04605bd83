package internal

import (
	"context"
	"time"

	"github.com/frahmantamala/opsboard/internal/core/i18n"
)

type ctxKey string

const (
	ContextPrincipalKey ctxKey = "principal"
	ContextLocaleKey    ctxKey = "locale"
)

// Principal is the authenticated caller carried by the session cookie.
type Principal struct {
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name,omitempty"`
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == "admin"
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(ContextPrincipalKey).(*Principal)
	return p, ok && p != nil
}

func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ContextPrincipalKey, p)
}

func LocaleFromContext(ctx context.Context) i18n.Locale {
	if ctx == nil {
		return i18n.Default
	}
	if l, ok := ctx.Value(ContextLocaleKey).(i18n.Locale); ok {
		return l
	}
	return i18n.Default
}

func ContextWithLocale(ctx context.Context, l i18n.Locale) context.Context {
	return context.WithValue(ctx, ContextLocaleKey, l)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
