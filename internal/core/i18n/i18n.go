// Package i18n holds the two supported locales and the message catalog
// shared by adapters and handlers.
package i18n

import (
	"fmt"
	"net/http"
	"strings"
)

type Locale string

const (
	EN Locale = "en"
	PL Locale = "pl"
)

// Default is the locale used when the caller does not state one.
const Default = PL

func Parse(s string) Locale {
	if l, ok := Lookup(s); ok {
		return l
	}
	return Default
}

// Lookup reports whether s names a supported locale.
func Lookup(s string) (Locale, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "en", "en-us", "en-gb":
		return EN, true
	case "pl", "pl-pl":
		return PL, true
	}
	return "", false
}

// FromRequest reads ?lang= first, then the first Accept-Language tag.
func FromRequest(r *http.Request, fallback Locale) Locale {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return Parse(lang)
	}
	if al := r.Header.Get("Accept-Language"); al != "" {
		tag := strings.SplitN(strings.SplitN(al, ",", 2)[0], ";", 2)[0]
		tag = strings.ToLower(strings.TrimSpace(tag))
		if strings.HasPrefix(tag, "en") {
			return EN
		}
		if strings.HasPrefix(tag, "pl") {
			return PL
		}
	}
	if fallback == "" {
		return Default
	}
	return fallback
}

// DecimalSeparator returns the separator used when formatting numbers.
func (l Locale) DecimalSeparator() string {
	if l == EN {
		return "."
	}
	return ","
}

// T formats a catalog message. Unknown keys in a locale fall back to English,
// and unknown keys everywhere return the key itself.
func T(l Locale, key string, args ...any) string {
	msg, ok := catalog[l][key]
	if !ok {
		msg, ok = catalog[EN][key]
	}
	if !ok {
		return key
	}
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}
