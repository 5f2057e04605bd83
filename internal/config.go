package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security"`
	RBAC          RBACConfig          `mapstructure:"rbac"`
	Monitoring    MonitoringConfig    `mapstructure:"monitoring"`
	Logs          LogsConfig          `mapstructure:"logs"`
	Assets        AssetsConfig        `mapstructure:"assets"`
	Directory     DirectoryConfig     `mapstructure:"directory"`
	Uploads       UploadsConfig       `mapstructure:"uploads"`
	Reports       ReportsConfig       `mapstructure:"reports"`
	VNC           VNCConfig           `mapstructure:"vnc"`
	Sync          SyncConfig          `mapstructure:"sync"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	OpenAPIPath       string        `mapstructure:"openapi_path"`
	DefaultLocale     string        `mapstructure:"default_locale"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	SessionSecret     string        `mapstructure:"session_secret"`
	SessionTTL        time.Duration `mapstructure:"session_ttl"`
	SessionCookie     string        `mapstructure:"session_cookie"`
	SecureCookie      bool          `mapstructure:"secure_cookie"`
	LoginRatePerMin   int           `mapstructure:"login_rate_per_min"`
	LoginBurst        int           `mapstructure:"login_burst"`
	BCryptCost        int           `mapstructure:"bcrypt_cost"`
	LocalAuthFallback bool          `mapstructure:"local_auth_fallback"`
}

type RBACConfig struct {
	PermissionCacheTTL time.Duration `mapstructure:"permission_cache_ttl"`
}

type MonitoringConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogsConfig struct {
	URL                string        `mapstructure:"url"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	Timeout            time.Duration `mapstructure:"timeout"`
	PageSize           int           `mapstructure:"page_size"`
	MaxMessages        int           `mapstructure:"max_messages"`
	MinRefreshInterval time.Duration `mapstructure:"min_refresh_interval"`
	BufferTTL          time.Duration `mapstructure:"buffer_ttl"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
}

type AssetsConfig struct {
	URL          string        `mapstructure:"url"`
	UserToken    string        `mapstructure:"user_token"`
	AppToken     string        `mapstructure:"app_token"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PageSize     int           `mapstructure:"page_size"`
	LookupRPS    int           `mapstructure:"lookup_rps"`
	ReadCacheTTL time.Duration `mapstructure:"read_cache_ttl"`
}

type DirectoryConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	BaseDN          string        `mapstructure:"base_dn"`
	Domain          string        `mapstructure:"domain"`
	ServiceUser     string        `mapstructure:"service_user"`
	ServicePassword string        `mapstructure:"service_password"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type UploadsConfig struct {
	Dir               string   `mapstructure:"dir"`
	MaxSize           int64    `mapstructure:"max_size"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
}

type ReportsConfig struct {
	Dir string `mapstructure:"dir"`
}

type VNCConfig struct {
	Viewer   string `mapstructure:"viewer"`
	Password string `mapstructure:"password"`
}

type SyncConfig struct {
	Workers            int           `mapstructure:"workers"`
	QueueSize          int           `mapstructure:"queue_size"`
	AssetsInterval     time.Duration `mapstructure:"assets_interval"`
	MonitoringInterval time.Duration `mapstructure:"monitoring_interval"`
	LogsInterval       time.Duration `mapstructure:"logs_interval"`
	LogsRangeMinutes   int           `mapstructure:"logs_range_minutes"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfigFromEnv reads the deployment environment variables.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:          getEnvAsInt("HTTP_PORT", 8080),
			BaseURL:       getEnv("BASE_URL", ""),
			OpenAPIPath:   getEnv("OPENAPI_PATH", "./api/openapi.yml"),
			DefaultLocale: getEnv("DEFAULT_LOCALE", "pl"),
		},
		Database: DatabaseConfig{
			Source:       getEnv("DATABASE_URL", ""),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 5),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		},
		Security: SecurityConfig{
			SessionSecret:     getEnv("SESSION_SECRET", ""),
			SessionTTL:        getEnvAsDuration("SESSION_TTL", 8*time.Hour),
			SecureCookie:      getEnv("SECURE_COOKIE", "true") == "true",
			LocalAuthFallback: getEnv("LOCAL_AUTH_FALLBACK", "false") == "true",
		},
		Monitoring: MonitoringConfig{
			URL:   getEnv("ZABBIX_URL", ""),
			Token: getEnv("ZABBIX_TOKEN", ""),
		},
		Logs: LogsConfig{
			URL:      getEnv("GRAYLOG_URL", ""),
			Username: getEnv("GRAYLOG_USERNAME", ""),
			Password: getEnv("GRAYLOG_PASSWORD", ""),
		},
		Assets: AssetsConfig{
			URL:       getEnv("GLPI_URL", ""),
			UserToken: getEnv("GLPI_USER_TOKEN", ""),
			AppToken:  getEnv("GLPI_APP_TOKEN", ""),
		},
		Directory: DirectoryConfig{
			Host:            getEnv("LDAP_SERVER", ""),
			Port:            getEnvAsInt("LDAP_PORT", 389),
			BaseDN:          getEnv("LDAP_BASE_DN", ""),
			Domain:          getEnv("LDAP_DOMAIN", ""),
			ServiceUser:     getEnv("LDAP_SERVICE_USER", ""),
			ServicePassword: getEnv("LDAP_SERVICE_PASSWORD", ""),
		},
		Uploads: UploadsConfig{
			Dir: getEnv("UPLOAD_FOLDER", "uploads"),
		},
		Reports: ReportsConfig{
			Dir: getEnv("REPORTS_FOLDER", "reports"),
		},
		VNC: VNCConfig{
			Viewer:   getEnv("VNC_VIEWER", "vncviewer"),
			Password: getEnv("VNC_PASSWORD", ""),
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: getEnv("METRICS_ENABLED", "true") == "true",
				Path:    getEnv("METRICS_PATH", "/metrics"),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every tunable left at its zero value.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = 5 * time.Second
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}
	if c.Server.OpenAPIPath == "" {
		c.Server.OpenAPIPath = "./api/openapi.yml"
	}
	if c.Server.DefaultLocale == "" {
		c.Server.DefaultLocale = "pl"
	}

	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 5
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = c.Database.MaxOpenConns
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if c.Database.ConnMaxIdleTime == 0 {
		c.Database.ConnMaxIdleTime = 5 * time.Minute
	}

	if c.Security.SessionTTL == 0 {
		c.Security.SessionTTL = 8 * time.Hour
	}
	if c.Security.SessionCookie == "" {
		c.Security.SessionCookie = "opsboard_session"
	}
	if c.Security.LoginRatePerMin == 0 {
		c.Security.LoginRatePerMin = 10
	}
	if c.Security.LoginBurst == 0 {
		c.Security.LoginBurst = 5
	}
	if c.Security.BCryptCost == 0 {
		c.Security.BCryptCost = 12
	}

	if c.RBAC.PermissionCacheTTL == 0 {
		c.RBAC.PermissionCacheTTL = time.Minute
	}

	if c.Monitoring.Timeout == 0 {
		c.Monitoring.Timeout = 10 * time.Second
	}

	if c.Logs.Timeout == 0 {
		c.Logs.Timeout = 10 * time.Second
	}
	if c.Logs.PageSize == 0 {
		c.Logs.PageSize = 150
	}
	if c.Logs.MaxMessages == 0 {
		c.Logs.MaxMessages = 300
	}
	if c.Logs.MinRefreshInterval == 0 {
		c.Logs.MinRefreshInterval = 300 * time.Second
	}
	if c.Logs.BufferTTL == 0 {
		c.Logs.BufferTTL = 24 * time.Hour
	}
	if c.Logs.SweepInterval == 0 {
		c.Logs.SweepInterval = 300 * time.Second
	}

	if c.Assets.Timeout == 0 {
		c.Assets.Timeout = 10 * time.Second
	}
	if c.Assets.PageSize == 0 {
		c.Assets.PageSize = 999
	}
	if c.Assets.LookupRPS == 0 {
		c.Assets.LookupRPS = 50
	}
	if c.Assets.ReadCacheTTL == 0 {
		c.Assets.ReadCacheTTL = 5 * time.Minute
	}

	if c.Directory.Port == 0 {
		c.Directory.Port = 389
	}
	if c.Directory.Timeout == 0 {
		c.Directory.Timeout = 10 * time.Second
	}

	if c.Uploads.Dir == "" {
		c.Uploads.Dir = "uploads"
	}
	if c.Uploads.MaxSize == 0 {
		c.Uploads.MaxSize = 5 << 20
	}
	if len(c.Uploads.AllowedExtensions) == 0 {
		c.Uploads.AllowedExtensions = []string{"png", "jpg", "jpeg", "gif"}
	}
	if c.Reports.Dir == "" {
		c.Reports.Dir = "reports"
	}
	if c.VNC.Viewer == "" {
		c.VNC.Viewer = "vncviewer"
	}

	if c.Sync.Workers == 0 {
		c.Sync.Workers = 3
	}
	if c.Sync.QueueSize == 0 {
		c.Sync.QueueSize = 16
	}
	if c.Sync.AssetsInterval == 0 {
		c.Sync.AssetsInterval = time.Hour
	}
	if c.Sync.MonitoringInterval == 0 {
		c.Sync.MonitoringInterval = 5 * time.Minute
	}
	if c.Sync.LogsInterval == 0 {
		c.Sync.LogsInterval = 5 * time.Minute
	}
	if c.Sync.LogsRangeMinutes == 0 {
		c.Sync.LogsRangeMinutes = 60
	}

	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Monitoring.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("monitoring config: %v", err))
	}

	if err := c.Logs.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logs config: %v", err))
	}

	if err := c.Assets.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("assets config: %v", err))
	}

	if err := c.Directory.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("directory config: %v", err))
	}

	if err := c.Uploads.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("uploads config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.SessionSecret) < 32 {
		return errors.New("session secret must be at least 32 characters")
	}
	if c.BCryptCost < 10 || c.BCryptCost > 15 {
		return errors.New("bcrypt_cost must be between 10 and 15")
	}
	return nil
}

func (c *MonitoringConfig) Validate() error {
	if err := requireURL("url", c.URL); err != nil {
		return err
	}
	if c.Token == "" {
		return errors.New("token is required")
	}
	return nil
}

func (c *LogsConfig) Validate() error {
	if err := requireURL("url", c.URL); err != nil {
		return err
	}
	if c.Username == "" {
		return errors.New("username is required")
	}
	if c.PageSize <= 0 || c.MaxMessages <= 0 {
		return errors.New("page_size and max_messages must be positive")
	}
	return nil
}

func (c *AssetsConfig) Validate() error {
	if err := requireURL("url", c.URL); err != nil {
		return err
	}
	if c.UserToken == "" || c.AppToken == "" {
		return errors.New("user_token and app_token are required")
	}
	return nil
}

func (c *DirectoryConfig) Validate() error {
	var missing []string
	if c.Host == "" {
		missing = append(missing, "host")
	}
	if c.BaseDN == "" {
		missing = append(missing, "base_dn")
	}
	if c.Domain == "" {
		missing = append(missing, "domain")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

func (c *UploadsConfig) Validate() error {
	if c.MaxSize <= 0 {
		return errors.New("max_size must be positive")
	}
	return nil
}

func requireURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid %s %q", field, raw)
	}
	return nil
}
