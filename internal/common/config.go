package common

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	Storage   StorageConfig
	Notify    NotifyConfig
	Gateway   GatewayConfig
	Payments  PaymentsConfig
	Resolver  ResolverConfig
	Log       LogConfig
	Telemetry TelemetryConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // postgres, mysql or sqlite
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
	AutoMigrate      bool
	MigrateLegacy    bool
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string
	GRPCAddr        string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// StorageConfig selects and configures the receipt file store
type StorageConfig struct {
	Backend        string // local or minio
	LocalDir       string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MaxFileSize    int64
}

// NotifyConfig configures the notification dispatcher
type NotifyConfig struct {
	Backend    string // log or webhook
	WebhookURL string
	Workers    int
	QueueSize  int
	Timeout    time.Duration
	MaxRetries int
}

// GatewayConfig configures the external payment gateway client
type GatewayConfig struct {
	Backend string // none or http
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// PaymentsConfig holds business limits
type PaymentsConfig struct {
	MaxSinglePayment  float64
	OverdueAfter      time.Duration
	EnforceStageShare bool
}

// ResolverConfig controls project identity resolution
type ResolverConfig struct {
	Strict bool
}

// LogConfig controls the slog handler
type LogConfig struct {
	Level  string
	Format string
}

// TelemetryConfig controls OpenTelemetry exporters
type TelemetryConfig struct {
	Enabled      bool
	Stdout       bool
	OTLPEndpoint string
}

// legacy environment names accepted alongside PAYMENTS_* keys
var envAliases = map[string]string{
	"database.dsn":       "DB_URL",
	"database.driver":    "DB_DRIVER",
	"database.max_conns": "DB_MAX_CONNS",
	"database.min_conns": "DB_MIN_CONNS",
	"server.grpc_addr":   "GRPC_ADDR",
	"server.http_addr":   "HTTP_ADDR",
	"auth.jwt_secret":    "JWT_SECRET",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("database.max_conn_idle_time", 5*time.Minute)
	v.SetDefault("database.dial_timeout", 3*time.Second)
	v.SetDefault("database.statement_timeout", time.Duration(0))
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.migrate_legacy", false)

	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.grpc_addr", ":8081")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("auth.issuer", "buildhub")

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_dir", "./uploads")
	v.SetDefault("storage.minio_bucket", "payment-receipts")
	v.SetDefault("storage.minio_use_ssl", false)
	v.SetDefault("storage.max_file_size", 10<<20)

	v.SetDefault("notify.backend", "log")
	v.SetDefault("notify.workers", 2)
	v.SetDefault("notify.queue_size", 256)
	v.SetDefault("notify.timeout", 10*time.Second)
	v.SetDefault("notify.max_retries", 3)

	v.SetDefault("gateway.backend", "none")
	v.SetDefault("gateway.timeout", 20*time.Second)

	v.SetDefault("payments.max_single_payment", 2000000.0)
	v.SetDefault("payments.overdue_after", 7*24*time.Hour)
	v.SetDefault("payments.enforce_stage_share", true)

	v.SetDefault("resolver.strict", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.stdout", false)
}

// LoadConfig reads defaults, an optional config file and the environment.
// Environment keys use the PAYMENTS_ prefix (PAYMENTS_DATABASE_DSN); the bare
// names in envAliases are also honored.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PAYMENTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		_ = v.BindEnv(key, "PAYMENTS_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, NewAppError("CONFIG_ERROR", "failed to read config file", err)
			}
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           strings.ToLower(v.GetString("database.driver")),
			DSN:              v.GetString("database.dsn"),
			MaxConns:         v.GetInt32("database.max_conns"),
			MinConns:         v.GetInt32("database.min_conns"),
			MaxConnLifetime:  v.GetDuration("database.max_conn_lifetime"),
			MaxConnIdleTime:  v.GetDuration("database.max_conn_idle_time"),
			DialTimeout:      v.GetDuration("database.dial_timeout"),
			StatementTimeout: v.GetDuration("database.statement_timeout"),
			AutoMigrate:      v.GetBool("database.auto_migrate"),
			MigrateLegacy:    v.GetBool("database.migrate_legacy"),
		},
		Server: ServerConfig{
			HTTPAddr:        v.GetString("server.http_addr"),
			GRPCAddr:        v.GetString("server.grpc_addr"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
			Issuer:    v.GetString("auth.issuer"),
		},
		Storage: StorageConfig{
			Backend:        strings.ToLower(v.GetString("storage.backend")),
			LocalDir:       v.GetString("storage.local_dir"),
			MinioEndpoint:  v.GetString("storage.minio_endpoint"),
			MinioAccessKey: v.GetString("storage.minio_access_key"),
			MinioSecretKey: v.GetString("storage.minio_secret_key"),
			MinioBucket:    v.GetString("storage.minio_bucket"),
			MinioUseSSL:    v.GetBool("storage.minio_use_ssl"),
			MaxFileSize:    v.GetInt64("storage.max_file_size"),
		},
		Notify: NotifyConfig{
			Backend:    strings.ToLower(v.GetString("notify.backend")),
			WebhookURL: v.GetString("notify.webhook_url"),
			Workers:    v.GetInt("notify.workers"),
			QueueSize:  v.GetInt("notify.queue_size"),
			Timeout:    v.GetDuration("notify.timeout"),
			MaxRetries: v.GetInt("notify.max_retries"),
		},
		Gateway: GatewayConfig{
			Backend: strings.ToLower(v.GetString("gateway.backend")),
			BaseURL: v.GetString("gateway.base_url"),
			APIKey:  v.GetString("gateway.api_key"),
			Timeout: v.GetDuration("gateway.timeout"),
		},
		Payments: PaymentsConfig{
			MaxSinglePayment:  v.GetFloat64("payments.max_single_payment"),
			OverdueAfter:      v.GetDuration("payments.overdue_after"),
			EnforceStageShare: v.GetBool("payments.enforce_stage_share"),
		},
		Resolver: ResolverConfig{
			Strict: v.GetBool("resolver.strict"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      v.GetBool("telemetry.enabled"),
			Stdout:       v.GetBool("telemetry.stdout"),
			OTLPEndpoint: v.GetString("telemetry.otlp_endpoint"),
		},
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return NewAppError("CONFIG_ERROR", "database.driver must be postgres, mysql or sqlite", ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Auth.JWTSecret == "" {
		return NewAppError("CONFIG_ERROR", "JWT_SECRET is required", ErrInvalidInput)
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalDir == "" {
			return NewAppError("CONFIG_ERROR", "storage.local_dir is required", ErrInvalidInput)
		}
	case "minio":
		if c.Storage.MinioEndpoint == "" || c.Storage.MinioBucket == "" {
			return NewAppError("CONFIG_ERROR", "storage.minio_endpoint and storage.minio_bucket are required", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", "storage.backend must be local or minio", ErrInvalidInput)
	}
	if c.Notify.Backend == "webhook" && c.Notify.WebhookURL == "" {
		return NewAppError("CONFIG_ERROR", "notify.webhook_url is required for the webhook backend", ErrInvalidInput)
	}
	if c.Gateway.Backend == "http" && c.Gateway.BaseURL == "" {
		return NewAppError("CONFIG_ERROR", "gateway.base_url is required for the http backend", ErrInvalidInput)
	}
	if c.Payments.MaxSinglePayment <= 0 {
		return NewAppError("CONFIG_ERROR", "payments.max_single_payment must be positive", ErrInvalidInput)
	}
	return nil
}
