package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/assets"
	"github.com/frahmantamala/opsboard/internal/auth"
	"github.com/frahmantamala/opsboard/internal/core/i18n"
	"github.com/frahmantamala/opsboard/internal/core/metrics"
	"github.com/frahmantamala/opsboard/internal/eventlog"
	"github.com/frahmantamala/opsboard/internal/inventory"
	"github.com/frahmantamala/opsboard/internal/logs"
	"github.com/frahmantamala/opsboard/internal/monitoring"
	"github.com/frahmantamala/opsboard/internal/rbac"
	"github.com/frahmantamala/opsboard/internal/report"
	"github.com/frahmantamala/opsboard/internal/task"
	"github.com/frahmantamala/opsboard/internal/transport/middleware"
	"github.com/frahmantamala/opsboard/internal/transport/swagger"
	"github.com/frahmantamala/opsboard/internal/user"
	"github.com/frahmantamala/opsboard/internal/vnc"
	"github.com/go-chi/chi"
)

// Handlers groups every HTTP handler the router mounts. Nil handlers are
// skipped so partial routers can be built in tests.
type Handlers struct {
	Auth       *auth.Handler
	Gate       *rbac.Gate
	Users      *user.Handler
	RBAC       *rbac.Handler
	Monitoring *monitoring.Handler
	Logs       *logs.Handler
	Events     *eventlog.Handler
	Assets     *assets.Handler
	Inventory  *inventory.Handler
	Tasks      *task.Handler
	Reports    *report.Handler
	VNC        *vnc.Handler
}

type Options struct {
	Spec          http.Handler
	Metrics       internal.MetricsConfig
	Health        map[string]Pinger
	LoginLimiter  *middleware.IPRateLimiter
	DefaultLocale i18n.Locale
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, opts Options, logger *slog.Logger) {
	healthHandler := NewHealthHandler(opts.Health)

	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.Locale(opts.DefaultLocale))
	if opts.Metrics.Enabled {
		metrics.Init()
		router.Use(metrics.Instrument)
		router.Handle(opts.Metrics.Path, metrics.Handler())
	}

	if opts.Spec != nil {
		router.Handle(swagger.SpecPath, opts.Spec)
		router.Handle("/swagger/*", swagger.Handler())
	}

	if h.Auth != nil {
		router.Group(func(lr chi.Router) {
			if opts.LoginLimiter != nil {
				lr.Use(middleware.RateLimit(opts.LoginLimiter))
			}
			lr.Post(rbac.LoginPath, h.Auth.Login)
		})
		router.Post("/logout", h.Auth.Logout)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if h.Auth == nil || h.Gate == nil {
			return
		}

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.SessionMiddleware)
			registerProtected(pr, h)
		})
	})
}

func registerProtected(pr chi.Router, h Handlers) {
	gate := h.Gate
	with := func(key string) chi.Router { return pr.With(gate.RequirePermission(key)) }

	if h.Users != nil {
		pr.Get("/users/me", h.Users.GetCurrentUser)
		with(rbac.PermManageProfile).Get("/users/me/preferences", h.Users.GetPreferences)
		with(rbac.PermManageProfile).Put("/users/me/preferences", h.Users.UpdatePreferences)
	}

	if h.Monitoring != nil {
		pr.Route("/monitoring", func(mr chi.Router) {
			mr.Use(gate.RequirePermission(rbac.PermViewMonitoring))
			mr.Get("/hosts", h.Monitoring.GetHosts)
			mr.Get("/unknown-hosts", h.Monitoring.GetUnknownHosts)
			mr.Get("/alerts", h.Monitoring.GetAlerts)
			mr.Get("/hosts/{host}/metrics", h.Monitoring.GetHostMetrics)
			mr.Get("/hosts/{host}/history", h.Monitoring.GetHostHistory)
		})
	}

	if h.Logs != nil {
		pr.Route("/logs", func(lr chi.Router) {
			// force=true additionally needs refresh_data, checked in the handler
			lr.Use(gate.RequirePermission(rbac.PermViewLogs))
			lr.Get("/", h.Logs.GetLogs)
			lr.Get("/timeline", h.Logs.GetTimeline)
			lr.Get("/messages", h.Logs.GetMessages)
		})
	}

	if h.Events != nil {
		with(rbac.PermViewLogs).Get("/system-events", h.Events.ListEvents)
	}

	if h.Assets != nil {
		with(rbac.PermViewGLPI).Get("/assets", h.Assets.GetAssets)
		pr.Group(func(ar chi.Router) {
			ar.Use(gate.RequirePermission(rbac.PermRefreshData))
			ar.Post("/assets/refresh", h.Assets.Refresh)
			ar.Post("/assets/refresh/{category}", h.Assets.RefreshCategory)
		})
		pr.Group(func(dr chi.Router) {
			dr.Use(gate.RequirePermission(rbac.PermTasksView))
			dr.Get("/devices", h.Assets.ListDevices)
			dr.Get("/devices/{id}", h.Assets.GetDevice)
		})
	}

	if h.Inventory != nil {
		pr.Route("/inventory", func(ir chi.Router) {
			ir.Group(func(vr chi.Router) {
				vr.Use(gate.RequirePermission(rbac.PermViewAssets))
				vr.Get("/departments", h.Inventory.ListDepartments)
				vr.Get("/departments/{name}/equipment", h.Inventory.GetDepartmentEquipment)
				vr.Get("/people/{userID}/equipment", h.Inventory.GetPersonEquipment)
			})
			ir.With(gate.RequirePermission(rbac.PermManageEquipment)).Post("/equipment", h.Inventory.AddEquipment)
			ir.Group(func(ar chi.Router) {
				ar.Use(gate.RequirePermission(rbac.PermAssignEquipment))
				ar.Post("/equipment/{id}/assign", h.Inventory.AssignEquipment)
				ar.Post("/equipment/{id}/unassign", h.Inventory.UnassignEquipment)
			})
			ir.With(gate.RequirePermission(rbac.PermManageInventory)).Post("/invoices", h.Inventory.ImportInvoice)
		})
	}

	if h.Tasks != nil {
		pr.Route("/tasks", func(tr chi.Router) {
			tr.Group(func(vr chi.Router) {
				vr.Use(gate.RequirePermission(rbac.PermTasksView))
				vr.Get("/", h.Tasks.ListTasks)
				vr.Get("/{id}", h.Tasks.GetTask)
				vr.Get("/attachments/{filename}", h.Tasks.GetAttachment)
			})
			tr.With(gate.RequirePermission(rbac.PermTasksCreate)).Post("/", h.Tasks.CreateTask)
			tr.With(gate.RequirePermission(rbac.PermTasksUpdate)).Put("/{id}", h.Tasks.UpdateTask)
			tr.With(gate.RequirePermission(rbac.PermTasksDelete)).Delete("/{id}", h.Tasks.DeleteTask)
			tr.With(gate.RequirePermission(rbac.PermTasksComment)).Post("/{id}/comments", h.Tasks.AddComment)
		})
	}

	if h.Reports != nil {
		pr.Route("/reports", func(rr chi.Router) {
			rr.Group(func(vr chi.Router) {
				vr.Use(gate.RequirePermission(rbac.PermViewReports))
				vr.Get("/", h.Reports.ListReports)
				vr.Get("/{id}", h.Reports.DownloadReport)
			})
			rr.With(gate.RequirePermission(rbac.PermCreateReports)).Post("/", h.Reports.GenerateReport)
			rr.With(gate.RequirePermission(rbac.PermDeleteReports)).Delete("/{id}", h.Reports.DeleteReport)
		})
	}

	if h.VNC != nil {
		with(rbac.PermVNCConnect).Post("/vnc/connect", h.VNC.Connect)
	}

	if h.RBAC != nil {
		pr.Route("/admin", func(ar chi.Router) {
			ar.Group(func(mr chi.Router) {
				mr.Use(gate.ManagerRequired())
				mr.Get("/roles", h.RBAC.ListRoles)
				mr.Get("/permissions", h.RBAC.ListPermissions)
				mr.Get("/roles/{role}/permissions", h.RBAC.GetRolePermissions)
			})
			ar.Group(func(adm chi.Router) {
				adm.Use(gate.AdminRequired())
				adm.Post("/roles/{role}/permissions", h.RBAC.GrantPermission)
				adm.Delete("/roles/{role}/permissions/{key}", h.RBAC.RevokePermission)
			})
			ar.Group(func(ur chi.Router) {
				ur.Use(gate.RequirePermission(rbac.PermManageUsers))
				if h.Users != nil {
					ur.Get("/users", h.Users.ListUsers)
				}
				ur.Put("/users/{username}/role", h.RBAC.ChangeUserRole)
			})
		})
	}
}
