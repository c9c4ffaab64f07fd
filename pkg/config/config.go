package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/meshfoundry/idhub/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Gateway       GatewayConfig
	Auth          AuthConfig
	Provisioning  ProvisioningConfig
	Archive       ArchiveConfig
	Audit         AuditConfig
	Maintenance   MaintenanceConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	// SequenceName is the database sequence backing client id allocation.
	SequenceName string
}

// RedisConfig holds the optional Redis configuration. When URL is empty the
// sequence allocator falls back to the database sequence.
type RedisConfig struct {
	URL         string
	Password    string
	DB          int
	SequenceKey string
}

// GatewayConfig holds the IAM gateway connection settings
type GatewayConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// AuthConfig holds OIDC verification settings for the API
type AuthConfig struct {
	IssuerURL string
	ClientID  string
	// Disabled skips token verification; development only.
	Disabled bool
}

// ProvisioningConfig holds service account provisioning settings
type ProvisioningConfig struct {
	ClientIDPrefix string
	// TriggerRolesFile points to the YAML file mapping owning clients to the
	// role names that trigger external account creation. Watched for changes.
	TriggerRolesFile string
	// RoleCacheSize bounds the in-memory role descriptor cache.
	RoleCacheSize int
}

// ArchiveConfig holds S3 settings for upload archiving. Archiving is off when
// Bucket is empty.
type ArchiveConfig struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// AuditConfig holds audit trail settings
type AuditConfig struct {
	// SQLitePath is the audit database file. Empty logs audit events to the
	// application log only.
	SQLitePath string
}

// MaintenanceConfig holds the stale-account sweeper settings
type MaintenanceConfig struct {
	Schedule       string
	StaleThreshold time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("IDHUB_HOST", "0.0.0.0"),
			Port:            getEnv("IDHUB_PORT", "8080"),
			ReadTimeout:     getEnvDuration("IDHUB_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("IDHUB_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:     getEnvDuration("IDHUB_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("IDHUB_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("IDHUB_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("IDHUB_POSTGRES_URL", ""),
			MaxOpenConns: getEnvInt("IDHUB_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns: getEnvInt("IDHUB_POSTGRES_IDLE_CONNS", 5),
			SequenceName: getEnv("IDHUB_CLIENT_SEQUENCE", "client_id_seq"),
		},
		Redis: RedisConfig{
			URL:         getEnv("IDHUB_REDIS_URL", ""),
			Password:    getEnv("IDHUB_REDIS_PASSWORD", ""),
			DB:          getEnvInt("IDHUB_REDIS_DB", 0),
			SequenceKey: getEnv("IDHUB_REDIS_SEQUENCE_KEY", "idhub:client-sequence"),
		},
		Gateway: GatewayConfig{
			BaseURL:      getEnv("IDHUB_GATEWAY_URL", ""),
			TokenURL:     getEnv("IDHUB_GATEWAY_TOKEN_URL", ""),
			ClientID:     getEnv("IDHUB_GATEWAY_CLIENT_ID", ""),
			ClientSecret: getEnv("IDHUB_GATEWAY_CLIENT_SECRET", ""),
			Timeout:      getEnvDuration("IDHUB_GATEWAY_TIMEOUT", 30*time.Second),
		},
		Auth: AuthConfig{
			IssuerURL: getEnv("IDHUB_OIDC_ISSUER", ""),
			ClientID:  getEnv("IDHUB_OIDC_CLIENT_ID", ""),
			Disabled:  getEnvBool("IDHUB_AUTH_DISABLED", false),
		},
		Provisioning: ProvisioningConfig{
			ClientIDPrefix:   getEnv("IDHUB_CLIENT_ID_PREFIX", "sa"),
			TriggerRolesFile: getEnv("IDHUB_TRIGGER_ROLES_FILE", ""),
			RoleCacheSize:    getEnvInt("IDHUB_ROLE_CACHE_SIZE", 1024),
		},
		Archive: ArchiveConfig{
			Endpoint:     getEnv("IDHUB_S3_ENDPOINT", ""),
			Region:       getEnv("IDHUB_S3_REGION", "us-east-1"),
			Bucket:       getEnv("IDHUB_S3_BUCKET", ""),
			AccessKey:    getEnv("IDHUB_S3_ACCESS_KEY", ""),
			SecretKey:    getEnv("IDHUB_S3_SECRET_KEY", ""),
			UsePathStyle: getEnvBool("IDHUB_S3_USE_PATH_STYLE", false),
		},
		Audit: AuditConfig{
			SQLitePath: getEnv("IDHUB_AUDIT_DB", ""),
		},
		Maintenance: MaintenanceConfig{
			Schedule:       getEnv("IDHUB_SWEEP_SCHEDULE", "@hourly"),
			StaleThreshold: getEnvDuration("IDHUB_STALE_THRESHOLD", 24*time.Hour),
		},
		Observability: ObservabilityConfig{
			LogLevel:           parseLogLevel(getEnv("IDHUB_LOG_LEVEL", "info")),
			MetricsEnabled:     getEnvBool("IDHUB_METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("IDHUB_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("IDHUB_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("IDHUB_OTEL_SERVICE_NAME", "idhub"),
			OTelServiceVersion: getEnv("IDHUB_OTEL_SERVICE_VERSION", "1.0.0"),
			OTelInsecure:       getEnvBool("IDHUB_OTEL_INSECURE", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("gateway URL is required")
	}
	if c.Gateway.TokenURL == "" || c.Gateway.ClientID == "" || c.Gateway.ClientSecret == "" {
		return fmt.Errorf("gateway token credentials are required")
	}

	if !c.Auth.Disabled {
		if c.Auth.IssuerURL == "" || c.Auth.ClientID == "" {
			return fmt.Errorf("OIDC issuer and client id are required unless auth is disabled")
		}
	}

	if c.Provisioning.ClientIDPrefix == "" {
		return fmt.Errorf("client id prefix is required")
	}

	if c.Archive.Bucket != "" && c.Archive.Region == "" {
		return fmt.Errorf("S3 region is required when archiving is enabled")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
