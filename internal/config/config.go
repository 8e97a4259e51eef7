package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xelth-com/argoxlabels/internal/apperr"
)

// DefaultPowerBIScope is the resource scope requested for the Power BI REST API
const DefaultPowerBIScope = "https://analysis.windows.net/powerbi/api/.default"

// Config holds all application configuration
type Config struct {
	NodeEnv     string
	Port        string
	PublicURL   string
	JWTSecret   string
	AdminHash   string
	CORSOrigins []string
	Database    DatabaseConfig
	PowerBI     PowerBIConfig
	Sync        SyncConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL          string
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	ReadUsername string // optional read-only role used for lookups
	ReadPassword string
	AutoMigrate  bool
	Table        string
}

// PowerBIConfig holds the default credentials and dataset used by sync runs
type PowerBIConfig struct {
	TenantID       string
	ClientID       string
	ClientSecret   string
	Scope          string
	GroupID        string
	DatasetID      string
	Table          string
	AuthURL        string
	APIURL         string
	TimeoutSeconds int
}

// SyncConfig holds pipeline behaviour settings
type SyncConfig struct {
	BatchPolicy     string // abort | continue
	IntervalMinutes int    // 0 disables the scheduler
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	policy := strings.ToLower(getEnv("SYNC_BATCH_POLICY", "abort"))
	if policy != "abort" && policy != "continue" {
		return nil, fmt.Errorf("SYNC_BATCH_POLICY must be 'abort' or 'continue', got %q", policy)
	}

	return &Config{
		NodeEnv:     getEnv("NODE_ENV", "development"),
		Port:        getEnv("PORT", "3000"),
		PublicURL:   strings.TrimRight(os.Getenv("PUBLIC_URL"), "/"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		AdminHash:   os.Getenv("ADMIN_PASSWORD_HASH"),
		CORSOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			Host:         getEnv("PG_HOST", "localhost"),
			Port:         getEnv("PG_PORT", "5432"),
			Username:     getEnv("PG_USERNAME", "postgres"),
			Password:     os.Getenv("PG_PASSWORD"),
			Database:     getEnv("PG_DATABASE", "argoxlabels"),
			ReadUsername: os.Getenv("PG_READ_USERNAME"),
			ReadPassword: os.Getenv("PG_READ_PASSWORD"),
			AutoMigrate:  getEnv("DB_AUTO_MIGRATE", "true") == "true",
			Table:        getEnv("LABEL_TABLE", "production_labels"),
		},
		PowerBI: PowerBIConfig{
			TenantID:       os.Getenv("POWERBI_TENANT_ID"),
			ClientID:       os.Getenv("POWERBI_CLIENT_ID"),
			ClientSecret:   os.Getenv("POWERBI_CLIENT_SECRET"),
			Scope:          getEnv("POWERBI_SCOPE", DefaultPowerBIScope),
			GroupID:        os.Getenv("POWERBI_GROUP_ID"),
			DatasetID:      os.Getenv("POWERBI_DATASET_ID"),
			Table:          os.Getenv("POWERBI_TABLE"),
			AuthURL:        getEnv("POWERBI_AUTH_URL", "https://login.microsoftonline.com"),
			APIURL:         getEnv("POWERBI_API_URL", "https://api.powerbi.com/v1.0/myorg"),
			TimeoutSeconds: getEnvInt("HTTP_TIMEOUT_SECONDS", 30),
		},
		Sync: SyncConfig{
			BatchPolicy:     policy,
			IntervalMinutes: getEnvInt("SYNC_INTERVAL_MINUTES", 0),
		},
	}, nil
}

// Embedded reports whether the database should run as an embedded process
func (d DatabaseConfig) Embedded() bool {
	return d.URL == "" && d.Host == "localhost" && d.Password == ""
}

// ValidateStorage checks that storage credentials are present.
// It must run before any network call is attempted.
func (c *Config) ValidateStorage() error {
	db := c.Database
	if db.Table == "" {
		return apperr.New(apperr.KindStorageConfig, "LABEL_TABLE is empty", nil)
	}
	if db.ReadUsername != "" && db.ReadPassword == "" {
		return apperr.New(apperr.KindStorageConfig, "PG_READ_USERNAME is set but PG_READ_PASSWORD is missing", nil)
	}
	if db.Embedded() || db.URL != "" {
		return nil
	}
	if db.Username == "" || db.Password == "" {
		return apperr.New(apperr.KindStorageConfig,
			fmt.Sprintf("external database %s requires PG_USERNAME and PG_PASSWORD", db.Host), nil)
	}
	return nil
}

// ValidateServer checks settings only the HTTP server needs
func (c *Config) ValidateServer() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return c.ValidateStorage()
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
