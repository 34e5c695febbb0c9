package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Environment names recognised by the server.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config represents the runtime configuration for the HireFlow backend.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Email      EmailConfig      `mapstructure:"email"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Uploads    UploadConfig     `mapstructure:"uploads"`
	Bootstrap  BootstrapConfig  `mapstructure:"bootstrap"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int             `mapstructure:"port"`
	Environment     string          `mapstructure:"environment"`
	LogLevel        string          `mapstructure:"log_level"`
	PublicURL       string          `mapstructure:"public_url"`
	AllowedOrigins  []string        `mapstructure:"allowed_origins"`
	RequestTimeout  time.Duration   `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	CSRF            CSRFConfig      `mapstructure:"csrf"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// IsDevelopment reports whether the server runs in development mode.
func (c ServerConfig) IsDevelopment() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), EnvDevelopment)
}

// CSRFConfig controls CSRF protection middleware.
type CSRFConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// RateLimitConfig bounds the public auth endpoints per client and route.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// AuthConfig captures all authentication-related settings.
type AuthConfig struct {
	JWT        JWTSettings        `mapstructure:"jwt"`
	Cookie     CookieSettings     `mapstructure:"cookie"`
	Revocation RevocationSettings `mapstructure:"revocation"`
	// HashCost is the bcrypt cost for new password hashes.
	HashCost int `mapstructure:"hash_cost"`
}

// JWTSettings configures token signing and lifetimes.
type JWTSettings struct {
	Secret               string        `mapstructure:"secret"`
	Issuer               string        `mapstructure:"issuer"`
	SessionTTL           time.Duration `mapstructure:"session_ttl"`
	PasswordResetTTL     time.Duration `mapstructure:"password_reset_ttl"`
	EmailVerificationTTL time.Duration `mapstructure:"email_verification_ttl"`
	InvitationTTL        time.Duration `mapstructure:"invitation_ttl"`
}

// CookieSettings configures the session cookie. Secure defaults to true
// outside development.
type CookieSettings struct {
	Domain string `mapstructure:"domain"`
	Secure *bool  `mapstructure:"secure"`
}

// RevocationSettings toggles the server-side revocation list for sign-out
// and password reset tokens.
type RevocationSettings struct {
	Enabled bool `mapstructure:"enabled"`
}

// EmailConfig captures outbound email settings.
type EmailConfig struct {
	AppName      string        `mapstructure:"app_name"`
	Async        bool          `mapstructure:"async"`
	AsyncTimeout time.Duration `mapstructure:"async_timeout"`
	SMTP         SMTPConfig    `mapstructure:"smtp"`
}

// SMTPConfig defines SMTP dialer settings for sending email.
type SMTPConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// StorageConfig locates the document bucket.
type StorageConfig struct {
	// URL is a gocloud.dev bucket URL such as file:///var/lib/hireflow/uploads or mem://.
	URL           string `mapstructure:"url"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// MonitoringConfig enables health checks, metrics and background maintenance.
type MonitoringConfig struct {
	Prometheus  PrometheusConfig  `mapstructure:"prometheus"`
	Health      HealthConfig      `mapstructure:"health_check"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MaintenanceConfig schedules the cleanup jobs with cron specs.
type MaintenanceConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	RevocationSchedule string `mapstructure:"revocation_schedule"`
	InvitationSchedule string `mapstructure:"invitation_schedule"`
}

// UploadConfig configures application documents.
type UploadConfig struct {
	KeyPrefix string `mapstructure:"key_prefix"`
}

// BootstrapConfig seeds the first administrator.
type BootstrapConfig struct {
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
	FirstName     string `mapstructure:"first_name"`
	LastName      string `mapstructure:"last_name"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("HIREFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.environment", EnvProduction)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.public_url", "http://localhost:8000")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.request_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.csrf.enabled", false)
	v.SetDefault("server.rate_limit.requests", 10)
	v.SetDefault("server.rate_limit.window", "1m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/hireflow.sqlite")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("auth.jwt.issuer", "hireflow")
	v.SetDefault("auth.jwt.session_ttl", "168h")
	v.SetDefault("auth.jwt.password_reset_ttl", "1h")
	v.SetDefault("auth.jwt.email_verification_ttl", "24h")
	v.SetDefault("auth.jwt.invitation_ttl", "72h")
	v.SetDefault("auth.revocation.enabled", false)
	v.SetDefault("auth.hash_cost", 12)

	v.SetDefault("email.app_name", "HireFlow")
	v.SetDefault("email.async", true)
	v.SetDefault("email.async_timeout", "30s")
	v.SetDefault("email.smtp.enabled", false)
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.smtp.timeout", "10s")

	v.SetDefault("storage.url", "file://./data/uploads?create_dir=true")
	v.SetDefault("storage.public_base_url", "")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
	v.SetDefault("monitoring.health_check.timeout", "3s")
	v.SetDefault("monitoring.maintenance.enabled", true)
	v.SetDefault("monitoring.maintenance.revocation_schedule", "@hourly")
	v.SetDefault("monitoring.maintenance.invitation_schedule", "@daily")

	v.SetDefault("uploads.key_prefix", "applications")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
