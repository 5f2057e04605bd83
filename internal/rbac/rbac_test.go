package rbac_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/frahmantamala/opsboard/internal"
	rbacDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/rbac"
	userDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/user"
	"github.com/frahmantamala/opsboard/internal/core/events"
	"github.com/frahmantamala/opsboard/internal/core/i18n"
	"github.com/frahmantamala/opsboard/internal/rbac"
	"github.com/frahmantamala/opsboard/internal/rbac/postgres"
	"github.com/frahmantamala/opsboard/internal/store"
	"github.com/frahmantamala/opsboard/internal/store/storetest"
	"github.com/frahmantamala/opsboard/internal/transport"
	"github.com/frahmantamala/opsboard/pkg/logger"
	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestRBAC(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "RBAC Suite")
}

var viewerKeys = []string{
	"manage_profile", "tasks_view", "view_assets", "view_glpi",
	"view_logs", "view_monitoring", "view_reports",
}

func bootstrapped() *store.Store {
	s := storetest.MustOpen()
	Expect(rbac.Bootstrap(context.Background(), s, logger.Discard())).To(Succeed())
	return s
}

func principal(role string) *internal.Principal {
	return &internal.Principal{UserID: 1, Username: "op-" + role, Role: role}
}

var _ = Describe("SplitStatements", func() {
	It("ignores semicolons inside quotes", func() {
		stmts := rbac.SplitStatements(`INSERT INTO t VALUES ('a;b'); INSERT INTO t VALUES ("c;d");`)
		Expect(stmts).To(Equal([]string{
			`INSERT INTO t VALUES ('a;b')`,
			`INSERT INTO t VALUES ("c;d")`,
		}))
	})

	It("handles doubled quote escapes", func() {
		stmts := rbac.SplitStatements(`SELECT 'it''s; fine'; SELECT 2`)
		Expect(stmts).To(HaveLen(2))
		Expect(stmts[0]).To(Equal(`SELECT 'it''s; fine'`))
		Expect(stmts[1]).To(Equal(`SELECT 2`))
	})

	It("drops line comments and empty statements", func() {
		stmts := rbac.SplitStatements("-- header; with semicolon\nSELECT 1;;\n-- trailing\n")
		Expect(stmts).To(Equal([]string{"SELECT 1"}))
	})

	It("splits the bundled catalog into its statements", func() {
		stmts := rbac.SplitStatements(rbac.CatalogSQL())
		Expect(stmts).To(HaveLen(6))
		for _, stmt := range stmts {
			Expect(stmt).To(HavePrefix("INSERT INTO"))
		}
	})
})

var _ = Describe("ApplyCatalog", func() {
	var (
		mock sqlmock.Sqlmock
		db   *sqlx.DB
	)

	BeforeEach(func() {
		raw, m, err := sqlmock.New()
		Expect(err).NotTo(HaveOccurred())
		mock = m
		db = sqlx.NewDb(raw, "sqlmock")
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
		db.Close()
	})

	It("applies every statement in one transaction when roles is empty", func() {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM roles`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectBegin()
		for range rbac.SplitStatements(rbac.CatalogSQL()) {
			mock.ExpectExec("INSERT INTO").WillReturnResult(sqlmock.NewResult(0, 1))
		}
		mock.ExpectCommit()

		applied, err := rbac.ApplyCatalog(context.Background(), db, logger.Discard())
		Expect(err).NotTo(HaveOccurred())
		Expect(applied).To(BeTrue())
	})

	It("does nothing when roles already exist", func() {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM roles`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

		applied, err := rbac.ApplyCatalog(context.Background(), db, logger.Discard())
		Expect(err).NotTo(HaveOccurred())
		Expect(applied).To(BeFalse())
	})

	It("rolls back when a statement fails", func() {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM roles`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO roles").WillReturnResult(sqlmock.NewResult(0, 4))
		mock.ExpectExec("INSERT INTO permissions").WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		applied, err := rbac.ApplyCatalog(context.Background(), db, logger.Discard())
		Expect(err).To(MatchError(ContainSubstring("catalog statement 2")))
		Expect(applied).To(BeFalse())
	})
})

var _ = Describe("Bootstrap", func() {
	var (
		s   *store.Store
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		s = bootstrapped()
	})

	It("loads the fixed roles and the full permission catalog", func() {
		var roles []string
		Expect(s.Gorm.Model(&rbacDatamodel.Role{}).Order("role_key").Pluck("role_key", &roles).Error).To(Succeed())
		Expect(roles).To(Equal([]string{"admin", "manager", "user", "viewer"}))

		var keys []string
		Expect(s.Gorm.Model(&rbacDatamodel.Permission{}).Pluck("permission_key", &keys).Error).To(Succeed())
		Expect(keys).To(ConsistOf(rbac.PermissionKeys))
	})

	It("keeps quoted semicolons inside descriptions", func() {
		var admin rbacDatamodel.Role
		Expect(s.Gorm.Where("role_key = ?", "admin").First(&admin).Error).To(Succeed())
		Expect(admin.DescriptionEN).To(Equal("Administrator; full access to every module"))

		var profile rbacDatamodel.Permission
		Expect(s.Gorm.Where("permission_key = ?", "manage_profile").First(&profile).Error).To(Succeed())
		Expect(profile.DescriptionEN).To(ContainSubstring("operator's own profile; language"))
	})

	It("is idempotent", func() {
		var before int64
		s.Gorm.Model(&rbacDatamodel.RolePermission{}).Count(&before)

		Expect(rbac.Bootstrap(ctx, s, logger.Discard())).To(Succeed())

		var after int64
		s.Gorm.Model(&rbacDatamodel.RolePermission{}).Count(&after)
		Expect(after).To(Equal(before))
	})

	It("folds a duplicate key into the canonical one", func() {
		repo := postgres.NewRBACRepository(s.Gorm)
		dup := rbacDatamodel.Permission{Key: "view_tasks", Category: "tasks", NameEN: "View Tasks"}
		Expect(s.Gorm.Create(&dup).Error).To(Succeed())

		for _, role := range []string{"viewer", "manager"} {
			r, err := repo.GetRole(ctx, role)
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.AddRolePermission(ctx, r.ID, dup.ID)).To(Succeed())
		}
		// a role that only had the duplicate
		viewerRole, _ := repo.GetRole(ctx, "viewer")
		tasksView, _ := repo.GetPermission(ctx, "tasks_view")
		Expect(repo.RemoveRolePermission(ctx, viewerRole.ID, tasksView.ID)).To(Succeed())

		merged, err := rbac.Consolidate(ctx, s, logger.Discard())
		Expect(err).NotTo(HaveOccurred())
		Expect(merged).To(Equal(1))

		gone, err := repo.GetPermission(ctx, "view_tasks")
		Expect(err).NotTo(HaveOccurred())
		Expect(gone).To(BeNil())

		viewer, err := repo.PermissionKeysForRole(ctx, "viewer")
		Expect(err).NotTo(HaveOccurred())
		Expect(viewer).To(ContainElement("tasks_view"))

		var bindings int64
		s.Gorm.Model(&rbacDatamodel.RolePermission{}).Where("permission_id = ?", dup.ID).Count(&bindings)
		Expect(bindings).To(BeZero())

		manager, err := repo.PermissionKeysForRole(ctx, "manager")
		Expect(err).NotTo(HaveOccurred())
		count := 0
		for _, k := range manager {
			if k == "tasks_view" {
				count++
			}
		}
		Expect(count).To(Equal(1))
	})

	It("renames a duplicate when the canonical key is missing", func() {
		fresh := storetest.MustOpen()
		Expect(fresh.Gorm.Create(&rbacDatamodel.Permission{Key: "tasks_manage_all", Category: "tasks"}).Error).To(Succeed())

		merged, err := rbac.Consolidate(ctx, fresh, logger.Discard())
		Expect(err).NotTo(HaveOccurred())
		Expect(merged).To(Equal(1))

		var keys []string
		fresh.Gorm.Model(&rbacDatamodel.Permission{}).Pluck("permission_key", &keys)
		Expect(keys).To(Equal([]string{"manage_all_tasks"}))
	})
})

var _ = Describe("Resolver", func() {
	var (
		s        *store.Store
		ctx      context.Context
		repo     rbac.RepositoryAPI
		resolver *rbac.Resolver
	)

	BeforeEach(func() {
		ctx = context.Background()
		s = bootstrapped()
		repo = postgres.NewRBACRepository(s.Gorm)
		resolver = rbac.NewResolver(repo, 0, logger.Discard())
	})

	It("answers exactly from the stored bindings for every non-admin role", func() {
		for _, role := range []string{"manager", "user", "viewer"} {
			stored, err := repo.PermissionKeysForRole(ctx, role)
			Expect(err).NotTo(HaveOccurred())
			for _, key := range rbac.PermissionKeys {
				want := false
				for _, k := range stored {
					if k == key {
						want = true
					}
				}
				Expect(resolver.HasPermission(ctx, principal(role), key)).To(Equal(want), "%s/%s", role, key)
			}
		}
	})

	It("grants admin everything, including unknown keys", func() {
		for _, key := range rbac.PermissionKeys {
			Expect(resolver.HasPermission(ctx, principal("admin"), key)).To(BeTrue())
		}
		Expect(resolver.HasPermission(ctx, principal("admin"), "not_a_permission")).To(BeTrue())
	})

	It("denies a missing principal", func() {
		Expect(resolver.HasPermission(ctx, nil, "view_logs")).To(BeFalse())
	})

	It("lists the viewer set and every key for admin", func() {
		keys, err := resolver.PermissionKeys(ctx, "viewer")
		Expect(err).NotTo(HaveOccurred())
		Expect(keys).To(Equal(viewerKeys))

		all, err := resolver.PermissionKeys(ctx, "admin")
		Expect(err).NotTo(HaveOccurred())
		want := append([]string(nil), rbac.PermissionKeys...)
		sort.Strings(want)
		Expect(all).To(Equal(want))
	})

	It("drops the cached set when the catalog changes", func() {
		bus := events.NewEventBus(logger.Discard())
		resolver.Subscribe(bus)
		svc := rbac.NewService(repo, resolver, bus, logger.Discard())

		Expect(resolver.HasPermission(ctx, principal("viewer"), "refresh_data")).To(BeFalse())
		Expect(svc.Grant(ctx, "viewer", "refresh_data")).To(Succeed())
		Expect(resolver.HasPermission(ctx, principal("viewer"), "refresh_data")).To(BeTrue())

		Expect(svc.Revoke(ctx, "viewer", "refresh_data")).To(Succeed())
		Expect(resolver.HasPermission(ctx, principal("viewer"), "refresh_data")).To(BeFalse())
	})

	It("serves a cached set until invalidated", func() {
		Expect(resolver.HasPermission(ctx, principal("viewer"), "vnc_connect")).To(BeFalse())

		viewer, _ := repo.GetRole(ctx, "viewer")
		vnc, _ := repo.GetPermission(ctx, "vnc_connect")
		Expect(repo.AddRolePermission(ctx, viewer.ID, vnc.ID)).To(Succeed())

		Expect(resolver.HasPermission(ctx, principal("viewer"), "vnc_connect")).To(BeFalse())
	})
})

var _ = Describe("Service", func() {
	var (
		s   *store.Store
		ctx context.Context
		svc *rbac.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		s = bootstrapped()
		repo := postgres.NewRBACRepository(s.Gorm)
		svc = rbac.NewService(repo, rbac.NewResolver(repo, 0, logger.Discard()), events.NewEventBus(logger.Discard()), logger.Discard())

		for _, u := range []userDatamodel.User{
			{Username: "alice", Role: "admin"},
			{Username: "bob", Role: "user"},
			{Username: "carol", Role: "user"},
		} {
			row := u
			Expect(s.Gorm.Create(&row).Error).To(Succeed())
		}
	})

	It("lists roles in fixed order with user counts", func() {
		roles, err := svc.Roles(ctx, i18n.EN)
		Expect(err).NotTo(HaveOccurred())
		Expect(roles).To(HaveLen(4))
		Expect(roles[0].Key).To(Equal("admin"))
		Expect(roles[1].Key).To(Equal("manager"))
		Expect(roles[2].Key).To(Equal("user"))
		Expect(roles[3].Key).To(Equal("viewer"))
		Expect(roles[0].UserCount).To(Equal(int64(1)))
		Expect(roles[2].UserCount).To(Equal(int64(2)))
		Expect(roles[3].UserCount).To(BeZero())
		Expect(roles[3].Description).To(Equal("Read-only viewer"))
	})

	It("localizes permission names and groups them by category", func() {
		byCat, err := svc.PermissionsByCategory(ctx, i18n.PL)
		Expect(err).NotTo(HaveOccurred())
		Expect(byCat).To(HaveKey("tasks"))
		var names []string
		for _, p := range byCat["tasks"] {
			names = append(names, p.Name)
		}
		Expect(names).To(ContainElement("Wyświetlanie zadań"))
	})

	It("treats a repeated grant as a no-op", func() {
		Expect(svc.Grant(ctx, "viewer", "view_logs")).To(Succeed())
		keys, err := svc.RolePermissions(ctx, "viewer")
		Expect(err).NotTo(HaveOccurred())
		Expect(keys).To(Equal(viewerKeys))
	})

	It("rejects unknown roles and permissions", func() {
		Expect(svc.Grant(ctx, "ghost", "view_logs")).To(MatchError(internal.ErrRoleNotFound))
		Expect(svc.Grant(ctx, "viewer", "fly")).To(MatchError(internal.ErrPermissionNotFound))
		_, err := svc.RolePermissions(ctx, "ghost")
		Expect(err).To(MatchError(internal.ErrRoleNotFound))
	})

	It("changes a user's role", func() {
		Expect(svc.ChangeUserRole(ctx, "bob", "manager")).To(Succeed())
		ok, err := svc.CanUserPerform(ctx, "bob", "manage_equipment")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		Expect(svc.ChangeUserRole(ctx, "nobody", "manager")).To(MatchError(internal.ErrUserNotFound))
		Expect(svc.ChangeUserRole(ctx, "bob", "root")).To(MatchError(internal.ErrRoleNotFound))
	})

	It("reports false for unknown users", func() {
		ok, err := svc.CanUserPerform(ctx, "nobody", "view_logs")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Gate", func() {
	var (
		router http.Handler
		gate   *rbac.Gate
	)

	BeforeEach(func() {
		s := bootstrapped()
		resolver := rbac.NewResolver(postgres.NewRBACRepository(s.Gorm), 0, logger.Discard())
		gate = rbac.NewGate(transport.NewBaseHandler(logger.Discard()), resolver)

		ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		r := chi.NewRouter()
		r.With(gate.RequirePermission("manage_equipment")).Post("/api/v1/inventory/equipment", ok)
		r.With(gate.RequirePermission("view_logs")).Get("/logs", ok)
		r.With(gate.ManagerRequired()).Get("/api/v1/admin/roles", ok)
		r.With(gate.AdminRequired()).Post("/api/v1/admin/roles/{role}/permissions", ok)
		router = r
	})

	serve := func(method, target string, p *internal.Principal, locale i18n.Locale, accept string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, nil)
		ctx := req.Context()
		if p != nil {
			ctx = internal.ContextWithPrincipal(ctx, p)
		}
		if locale != "" {
			ctx = internal.ContextWithLocale(ctx, locale)
		}
		if accept != "" {
			req.Header.Set("Accept", accept)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req.WithContext(ctx))
		return rec
	}

	It("redirects unauthenticated callers to login with next", func() {
		rec := serve(http.MethodPost, "/api/v1/inventory/equipment?x=1", nil, "", "")
		Expect(rec.Code).To(Equal(http.StatusFound))
		Expect(rec.Header().Get("Location")).To(Equal("/login?next=%2Fapi%2Fv1%2Finventory%2Fequipment%3Fx%3D1"))
	})

	It("denies a viewer adding equipment with a localized JSON 403", func() {
		rec := serve(http.MethodPost, "/api/v1/inventory/equipment", principal("viewer"), i18n.PL, "")
		Expect(rec.Code).To(Equal(http.StatusForbidden))
		Expect(rec.Header().Get("Content-Type")).To(ContainSubstring("application/json"))
		Expect(rec.Body.String()).To(ContainSubstring("Nie masz uprawnień do wykonania tej akcji"))
	})

	It("lets a manager add equipment", func() {
		rec := serve(http.MethodPost, "/api/v1/inventory/equipment", principal("manager"), "", "")
		Expect(rec.Code).To(Equal(http.StatusNoContent))
	})

	It("renders HTML for browser routes", func() {
		rec := serve(http.MethodGet, "/logs", &internal.Principal{UserID: 9, Username: "guest", Role: "nobody"}, i18n.EN, "text/html")
		Expect(rec.Code).To(Equal(http.StatusForbidden))
		Expect(rec.Header().Get("Content-Type")).To(ContainSubstring("text/html"))
		Expect(rec.Body.String()).To(ContainSubstring("You do not have permission to perform this action"))
	})

	It("answers JSON when the client asks for it", func() {
		rec := serve(http.MethodGet, "/logs", &internal.Principal{UserID: 9, Username: "guest", Role: "nobody"}, i18n.EN, "application/json")
		Expect(rec.Code).To(Equal(http.StatusForbidden))
		Expect(strings.TrimSpace(rec.Body.String())).To(HavePrefix("{"))
	})

	It("gates role-only routes", func() {
		Expect(serve(http.MethodGet, "/api/v1/admin/roles", principal("user"), "", "").Code).To(Equal(http.StatusForbidden))
		Expect(serve(http.MethodGet, "/api/v1/admin/roles", principal("manager"), "", "").Code).To(Equal(http.StatusNoContent))
		Expect(serve(http.MethodPost, "/api/v1/admin/roles/viewer/permissions", principal("manager"), "", "").Code).To(Equal(http.StatusForbidden))
		Expect(serve(http.MethodPost, "/api/v1/admin/roles/viewer/permissions", principal("admin"), "", "").Code).To(Equal(http.StatusNoContent))
	})

	It("exposes Allowed for handler-level checks", func() {
		req := httptest.NewRequest(http.MethodGet, "/logs?force=true", nil)
		req = req.WithContext(internal.ContextWithPrincipal(req.Context(), principal("viewer")))
		Expect(gate.Allowed(req, "view_logs")).To(BeTrue())
		Expect(gate.Allowed(req, "refresh_data")).To(BeFalse())
	})
})
