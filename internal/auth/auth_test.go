package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/auth"
	userDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/user"
	"github.com/frahmantamala/opsboard/internal/directory"
	"github.com/frahmantamala/opsboard/internal/eventlog"
	eventlogPostgres "github.com/frahmantamala/opsboard/internal/eventlog/postgres"
	"github.com/frahmantamala/opsboard/internal/store"
	"github.com/frahmantamala/opsboard/internal/store/storetest"
	"github.com/frahmantamala/opsboard/internal/transport"
	"github.com/frahmantamala/opsboard/internal/user"
	userPostgres "github.com/frahmantamala/opsboard/internal/user/postgres"
	"github.com/frahmantamala/opsboard/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

func TestAuth(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Auth Suite")
}

type fakeDirectory struct {
	accounts map[string]string
	profiles map[string]*directory.Profile
}

func (f *fakeDirectory) Authenticate(_ context.Context, username, password string) (*directory.Profile, bool) {
	if pw, ok := f.accounts[username]; !ok || pw != password {
		return nil, false
	}
	if p, ok := f.profiles[username]; ok {
		return p, true
	}
	return &directory.Profile{Username: username, DisplayName: username}, true
}

var _ = Describe("JWTSessions", func() {
	It("round-trips a principal", func() {
		sessions := auth.NewJWTSessions("secret", time.Hour)
		token, expiresAt, err := sessions.Issue(&internal.Principal{UserID: 7, Username: "jk", Role: "user"})
		Expect(err).NotTo(HaveOccurred())
		Expect(expiresAt).To(BeTemporally("~", time.Now().Add(time.Hour), 5*time.Second))

		claims, err := sessions.Validate(token)
		Expect(err).NotTo(HaveOccurred())
		p, err := claims.Principal()
		Expect(err).NotTo(HaveOccurred())
		Expect(p.UserID).To(Equal(int64(7)))
		Expect(p.Username).To(Equal("jk"))
		Expect(p.Role).To(Equal("user"))
	})

	It("rejects expired sessions", func() {
		expired := &auth.JWTSessions{Secret: []byte("secret"), TTL: -time.Minute}
		token, _, err := expired.Issue(&internal.Principal{UserID: 1, Username: "jk", Role: "user"})
		Expect(err).NotTo(HaveOccurred())

		_, err = expired.Validate(token)
		Expect(err).To(MatchError(internal.ErrSessionExpired))
	})

	It("rejects tokens signed with another secret", func() {
		token, _, err := auth.NewJWTSessions("one", time.Hour).Issue(&internal.Principal{UserID: 1, Username: "jk"})
		Expect(err).NotTo(HaveOccurred())

		_, err = auth.NewJWTSessions("two", time.Hour).Validate(token)
		Expect(err).To(MatchError(internal.ErrInvalidSession))
	})
})

var _ = Describe("Login flow", func() {
	var (
		s        *store.Store
		ctx      context.Context
		users    *user.Service
		dir      *fakeDirectory
		sessions *auth.JWTSessions
		events   *eventlog.Service
		handler  *auth.Handler
		fallback bool
	)

	build := func() {
		svc := auth.NewService(dir, users, sessions, events, fallback, logger.Discard())
		handler = auth.NewHandler(transport.NewBaseHandler(logger.Discard()), svc, auth.CookieConfig{Name: "opsboard_session"})
	}

	BeforeEach(func() {
		ctx = context.Background()
		s = storetest.MustOpen()
		users = user.NewService(userPostgres.NewUserRepository(s.Gorm), logger.Discard())
		events = eventlog.NewService(eventlogPostgres.NewEventLogRepository(s.Gorm), logger.Discard())
		sessions = auth.NewJWTSessions("test-secret", time.Hour)
		dir = &fakeDirectory{
			accounts: map[string]string{"jkowalski": "s3cret"},
			profiles: map[string]*directory.Profile{
				"jkowalski": {Username: "jkowalski", DisplayName: "Jan Kowalski", Email: "jk@example.local", Department: "IT"},
			},
		}
		fallback = false
		build()
	})

	postJSON := func(body interface{}) *httptest.ResponseRecorder {
		raw, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		handler.Login(rec, req)
		return rec
	}

	sessionCookie := func(rec *httptest.ResponseRecorder) *http.Cookie {
		for _, c := range rec.Result().Cookies() {
			if c.Name == "opsboard_session" {
				return c
			}
		}
		return nil
	}

	protected := func(cookie *http.Cookie) (*httptest.ResponseRecorder, *internal.Principal) {
		var seen *internal.Principal
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = internal.PrincipalFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		})
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
		if cookie != nil {
			req.AddCookie(cookie)
		}
		rec := httptest.NewRecorder()
		handler.SessionMiddleware(next).ServeHTTP(rec, req)
		return rec, seen
	}

	It("logs a directory user in and mirrors the user row", func() {
		rec := postJSON(auth.LoginDTO{Username: "jkowalski", Password: "s3cret", Next: "/logs"})
		Expect(rec.Code).To(Equal(http.StatusOK))

		var resp auth.LoginResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Redirect).To(Equal("/logs"))
		Expect(resp.User.Role).To(Equal(user.RoleUser))
		Expect(resp.User.DisplayName).To(Equal("Jan Kowalski"))

		cookie := sessionCookie(rec)
		Expect(cookie).NotTo(BeNil())
		Expect(cookie.HttpOnly).To(BeTrue())

		u, err := users.GetByUsername(ctx, "jkowalski")
		Expect(err).NotTo(HaveOccurred())
		Expect(u.Department).To(Equal("IT"))

		protectedRec, p := protected(cookie)
		Expect(protectedRec.Code).To(Equal(http.StatusOK))
		Expect(p).NotTo(BeNil())
		Expect(p.Username).To(Equal("jkowalski"))
	})

	It("accepts form posts", func() {
		form := url.Values{"username": {"jkowalski"}, "password": {"s3cret"}}
		req := httptest.NewRequest(http.MethodPost, "/login?next=%2Fassets", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		handler.Login(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"redirect":"/assets"`))
	})

	It("never redirects off-site", func() {
		rec := postJSON(auth.LoginDTO{Username: "jkowalski", Password: "s3cret", Next: "//evil.example/"})
		Expect(rec.Body.String()).To(ContainSubstring(`"redirect":"/"`))
	})

	It("returns a generic message for bad credentials and records the attempt", func() {
		rec := postJSON(auth.LoginDTO{Username: "jkowalski", Password: "wrong"})
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		Expect(rec.Body.String()).To(ContainSubstring("Nieprawidłowa nazwa użytkownika lub hasło"))
		Expect(sessionCookie(rec)).To(BeNil())

		recent, err := events.Recent(ctx, eventlog.SourceLDAP, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(recent).To(HaveLen(1))
		Expect(recent[0].HostName).To(Equal("jkowalski"))
	})

	It("rejects missing fields", func() {
		rec := postJSON(auth.LoginDTO{Username: "jkowalski"})
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	Context("with a local account", func() {
		BeforeEach(func() {
			hash, err := bcrypt.GenerateFromPassword([]byte("local-pass"), bcrypt.MinCost)
			Expect(err).NotTo(HaveOccurred())
			Expect(users.EnsureLocalAccount(ctx, "admin", user.RoleAdmin, string(hash))).To(Succeed())
		})

		It("ignores it unless fallback is enabled", func() {
			Expect(postJSON(auth.LoginDTO{Username: "admin", Password: "local-pass"}).Code).To(Equal(http.StatusUnauthorized))
		})

		It("accepts the stored hash when fallback is enabled", func() {
			fallback = true
			build()
			rec := postJSON(auth.LoginDTO{Username: "admin", Password: "local-pass"})
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"role":"admin"`))

			Expect(postJSON(auth.LoginDTO{Username: "admin", Password: "nope"}).Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("SessionMiddleware", func() {
		It("redirects requests without a cookie", func() {
			rec, p := protected(nil)
			Expect(rec.Code).To(Equal(http.StatusFound))
			Expect(rec.Header().Get("Location")).To(HavePrefix("/login?next="))
			Expect(p).To(BeNil())
		})

		It("clears a forged cookie", func() {
			rec, _ := protected(&http.Cookie{Name: "opsboard_session", Value: "not-a-jwt"})
			Expect(rec.Code).To(Equal(http.StatusFound))
			Expect(rec.Header().Get("Set-Cookie")).To(ContainSubstring("Max-Age=0"))
		})

		It("picks up role changes made after login", func() {
			cookie := sessionCookie(postJSON(auth.LoginDTO{Username: "jkowalski", Password: "s3cret"}))
			Expect(s.Gorm.Model(&userDatamodel.User{}).Where("username = ?", "jkowalski").Update("role", "manager").Error).To(Succeed())

			_, p := protected(cookie)
			Expect(p).NotTo(BeNil())
			Expect(p.Role).To(Equal("manager"))
		})
	})

	It("clears the cookie on logout", func() {
		rec := httptest.NewRecorder()
		handler.Logout(rec, httptest.NewRequest(http.MethodPost, "/logout", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Set-Cookie")).To(ContainSubstring("opsboard_session=;"))
	})
})
