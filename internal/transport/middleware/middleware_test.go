package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/core/i18n"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMiddleware(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Middleware Suite")
}

var _ = Describe("Logging", func() {
	var (
		buf bytes.Buffer
		lg  *slog.Logger
	)

	BeforeEach(func() {
		buf.Reset()
		lg = slog.New(slog.NewJSONHandler(&buf, nil))
	})

	It("filters credentials and the session cookie", func() {
		h := LoggingMiddleware(lg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"success","session_token":"abc"}`))
		}))

		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"jk","password":"hunter2"}`))
		req.Header.Set("Content-Type", "application/json")
		req.AddCookie(&http.Cookie{Name: "opsboard_session", Value: "secret-jwt"})
		h.ServeHTTP(httptest.NewRecorder(), req)

		out := buf.String()
		Expect(out).To(ContainSubstring("jk"))
		Expect(out).NotTo(ContainSubstring("hunter2"))
		Expect(out).NotTo(ContainSubstring("secret-jwt"))
		Expect(out).NotTo(ContainSubstring(`\"abc\"`))
		Expect(out).To(ContainSubstring(`"status_code":200`))
	})

	It("keeps the request body readable downstream", func() {
		var seen string
		h := LoggingMiddleware(lg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := new(bytes.Buffer)
			_, _ = raw.ReadFrom(r.Body)
			seen = raw.String()
		}))

		req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"title":"printer"}`))
		req.Header.Set("Content-Type", "application/json")
		h.ServeHTTP(httptest.NewRecorder(), req)
		Expect(seen).To(Equal(`{"title":"printer"}`))
	})

	It("does not buffer non JSON bodies", func() {
		h := LoggingMiddleware(lg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/csv")
			_, _ = w.Write([]byte("name,ip\nSRV-01,10.0.0.8\n"))
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/reports/1", nil))
		Expect(buf.String()).NotTo(ContainSubstring("SRV-01"))
		Expect(buf.String()).To(ContainSubstring(`"response_size":24`))
	})

	It("masks nested keys", func() {
		Expect(filterSensitiveBody([]byte(`{"user":{"name":"a","api_key":"k"},"list":[{"token":"t"}]}`))).
			To(Equal(`{"list":[{"token":"[FILTERED]"}],"user":{"api_key":"[FILTERED]","name":"a"}}`))
	})
})

var _ = Describe("RecoveryMiddleware", func() {
	It("converts a panic into a 500 envelope", func() {
		h := RecoveryMiddleware(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(rec.Body.String()).To(Equal(`{"status":"error","message":"internal server error"}`))
	})
})

var _ = Describe("Locale", func() {
	It("prefers the lang query over Accept-Language", func() {
		var got i18n.Locale
		h := Locale(i18n.PL)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = internal.LocaleFromContext(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/?lang=en", nil)
		req.Header.Set("Accept-Language", "pl-PL")
		h.ServeHTTP(httptest.NewRecorder(), req)
		Expect(got).To(Equal(i18n.EN))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		Expect(got).To(Equal(i18n.PL))
	})
})

var _ = Describe("IPRateLimiter", func() {
	It("keeps separate budgets per address", func() {
		l := NewIPRateLimiter(60, 1)
		Expect(l.Allow("10.0.0.1")).To(BeTrue())
		Expect(l.Allow("10.0.0.1")).To(BeFalse())
		Expect(l.Allow("10.0.0.2")).To(BeTrue())
	})

	It("drops idle buckets", func() {
		now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
		l := NewIPRateLimiter(60, 1)
		l.now = func() time.Time { return now }
		l.Allow("10.0.0.1")
		now = now.Add(2 * time.Minute)
		l.Allow("10.0.0.2")
		Expect(l.Len()).To(Equal(2))

		now = now.Add(4 * time.Minute)
		l.prune()
		Expect(l.Len()).To(Equal(1))
	})

	It("reads the client address from X-Forwarded-For first", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.10:5555"
		Expect(ClientIP(req)).To(Equal("192.0.2.10"))
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		Expect(ClientIP(req)).To(Equal("203.0.113.7"))
	})
})
