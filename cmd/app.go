package cmd

import (
	"log/slog"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/assets"
	assetPostgres "github.com/frahmantamala/opsboard/internal/assets/postgres"
	"github.com/frahmantamala/opsboard/internal/auth"
	"github.com/frahmantamala/opsboard/internal/core/events"
	"github.com/frahmantamala/opsboard/internal/directory"
	"github.com/frahmantamala/opsboard/internal/eventlog"
	eventlogPostgres "github.com/frahmantamala/opsboard/internal/eventlog/postgres"
	"github.com/frahmantamala/opsboard/internal/inventory"
	inventoryPostgres "github.com/frahmantamala/opsboard/internal/inventory/postgres"
	"github.com/frahmantamala/opsboard/internal/logs"
	logsPostgres "github.com/frahmantamala/opsboard/internal/logs/postgres"
	"github.com/frahmantamala/opsboard/internal/monitoring"
	monitoringPostgres "github.com/frahmantamala/opsboard/internal/monitoring/postgres"
	"github.com/frahmantamala/opsboard/internal/rbac"
	rbacPostgres "github.com/frahmantamala/opsboard/internal/rbac/postgres"
	"github.com/frahmantamala/opsboard/internal/report"
	reportPostgres "github.com/frahmantamala/opsboard/internal/report/postgres"
	"github.com/frahmantamala/opsboard/internal/store"
	"github.com/frahmantamala/opsboard/internal/task"
	taskPostgres "github.com/frahmantamala/opsboard/internal/task/postgres"
	"github.com/frahmantamala/opsboard/internal/transport"
	"github.com/frahmantamala/opsboard/internal/transport/rest"
	"github.com/frahmantamala/opsboard/internal/user"
	userPostgres "github.com/frahmantamala/opsboard/internal/user/postgres"
	"github.com/frahmantamala/opsboard/internal/vnc"
)

// Services holds every domain service built over one store.
type Services struct {
	Bus        *events.EventBus
	Events     *eventlog.Service
	Users      *user.Service
	Resolver   *rbac.Resolver
	RBAC       *rbac.Service
	Auth       *auth.Service
	Monitoring *monitoring.Service
	LogBuffer  *logs.Buffer
	Logs       *logs.Service
	Assets     *assets.Service
	Inventory  *inventory.Service
	Tasks      *task.Service
	Reports    *report.Service
	VNC        *vnc.Service
}

func buildServices(cfg *internal.Config, s *store.Store, logger *slog.Logger) *Services {
	bus := events.NewEventBus(logger)
	recorder := eventlog.NewService(eventlogPostgres.NewEventLogRepository(s.Gorm), logger)
	users := user.NewService(userPostgres.NewUserRepository(s.Gorm), logger)

	rbacRepo := rbacPostgres.NewRBACRepository(s.Gorm)
	resolver := rbac.NewResolver(rbacRepo, cfg.RBAC.PermissionCacheTTL, logger)
	resolver.Subscribe(bus)

	authSvc := auth.NewService(
		directory.NewAuthenticator(cfg.Directory, logger),
		users,
		auth.NewJWTSessions(cfg.Security.SessionSecret, cfg.Security.SessionTTL),
		recorder,
		cfg.Security.LocalAuthFallback,
		logger,
	)

	buffer := logs.NewBuffer(cfg.Logs.BufferTTL, logger)
	logsSvc := logs.NewService(
		logs.NewClient(cfg.Logs, logger),
		logsPostgres.NewLogRepository(s.Gorm),
		recorder,
		buffer,
		logs.Options{MaxMessages: cfg.Logs.MaxMessages, MinRefreshInterval: cfg.Logs.MinRefreshInterval},
		logger,
	)

	return &Services{
		Bus:      bus,
		Events:   recorder,
		Users:    users,
		Resolver: resolver,
		RBAC:     rbac.NewService(rbacRepo, resolver, bus, logger),
		Auth:     authSvc,
		Monitoring: monitoring.NewService(
			monitoring.NewClient(cfg.Monitoring, logger),
			monitoringPostgres.NewMonitoringRepository(s.Gorm),
			recorder,
			logger,
		),
		LogBuffer: buffer,
		Logs:      logsSvc,
		Assets: assets.NewService(
			assets.NewClient(cfg.Assets, logger),
			assetPostgres.NewAssetRepository(s.Gorm),
			recorder,
			bus,
			cfg.Assets.ReadCacheTTL,
			logger,
		),
		Inventory: inventory.NewService(
			inventoryPostgres.NewInventoryRepository(s.Gorm),
			users,
			inventory.TextInvoiceParser{},
			logger,
		),
		Tasks: task.NewService(
			taskPostgres.NewTaskRepository(s.Gorm, s.SQL),
			task.NewAttachments(cfg.Uploads),
			logger,
		),
		Reports: report.NewService(
			reportPostgres.NewReportRepository(s.Gorm),
			reportPostgres.NewReportSource(s.SQL),
			cfg.Reports,
			logger,
		),
		VNC: vnc.NewService(vnc.NewExecLauncher(cfg.VNC, logger), recorder, logger),
	}
}

func buildHandlers(cfg *internal.Config, sv *Services, logger *slog.Logger) rest.Handlers {
	base := transport.NewBaseHandler(logger)
	gate := rbac.NewGate(base, sv.Resolver)

	return rest.Handlers{
		Auth: auth.NewHandler(base, sv.Auth, auth.CookieConfig{
			Name:   cfg.Security.SessionCookie,
			Secure: cfg.Security.SecureCookie,
		}),
		Gate:       gate,
		Users:      user.NewHandler(base, sv.Users, sv.Resolver),
		RBAC:       rbac.NewHandler(base, sv.RBAC),
		Monitoring: monitoring.NewHandler(base, sv.Monitoring),
		Logs:       logs.NewHandler(base, sv.Logs, gate),
		Events:     eventlog.NewHandler(base, sv.Events),
		Assets:     assets.NewHandler(base, sv.Assets),
		Inventory:  inventory.NewHandler(base, sv.Inventory),
		Tasks:      task.NewHandler(base, sv.Tasks, cfg.Uploads.MaxSize),
		Reports:    report.NewHandler(base, sv.Reports),
		VNC:        vnc.NewHandler(base, sv.VNC),
	}
}
