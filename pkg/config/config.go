package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the scoring job
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	Env string // development, staging, production

	// Run
	Run RunConfig

	// Warehouse
	Warehouse WarehouseConfig

	// Object store
	Storage StorageConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// RunConfig selects what a single invocation does
type RunConfig struct {
	Mode        string // train, predict (validated by the pipeline)
	ExecTime    string // YYYY-MM-DD, empty = today
	ParamsFile  string
	QueriesDir  string // optional override of the embedded query collection
	OutputTable string
}

// WarehouseConfig holds relational warehouse configuration
type WarehouseConfig struct {
	Driver   string // postgres, snowflake, duckdb
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	URL      string

	// Snowflake
	Account   string
	Warehouse string
	Schema    string

	// DuckDB
	Path string

	ConnectTimeout time.Duration
}

// StorageConfig holds model artifact store configuration
type StorageConfig struct {
	Type            string // s3, local
	Bucket          string
	CredentialsPath string
	Region          string
	Endpoint        string
	LocalPath       string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 파일만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		Run: RunConfig{
			Mode:        getEnv("RUN_MODE", ""),
			ExecTime:    getEnv("EXEC_TIME", ""),
			ParamsFile:  getEnv("PARAMS_FILE", "params.yaml"),
			QueriesDir:  getEnv("QUERIES_DIR", ""),
			OutputTable: getEnv("OUTPUT_TABLE", "sink.lead_scores"),
		},

		Warehouse: WarehouseConfig{
			Driver:         strings.ToLower(getEnv("WAREHOUSE_DRIVER", "postgres")),
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			Name:           getEnv("DB_NAME", "warehouse"),
			User:           getEnv("DB_USER_ACCOUNT", ""),
			Password:       getEnv("DB_USER_PASSWORD", ""),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			URL:            getEnv("DATABASE_URL", ""),
			Account:        getEnv("SNOWFLAKE_ACCOUNT", ""),
			Warehouse:      getEnv("SNOWFLAKE_WAREHOUSE", ""),
			Schema:         getEnv("SNOWFLAKE_SCHEMA", "PUBLIC"),
			Path:           getEnv("DUCKDB_PATH", ""),
			ConnectTimeout: getEnvAsDuration("DB_CONNECT_TIMEOUT", "10s"),
		},

		Storage: StorageConfig{
			Type:            strings.ToLower(getEnv("STORAGE_TYPE", "s3")),
			Bucket:          getEnv("BUCKET_NAME", ""),
			CredentialsPath: getEnv("STORAGE_CREDENTIALS_PATH", ""),
			Region:          getEnv("STORAGE_REGION", "us-east-1"),
			Endpoint:        getEnv("STORAGE_ENDPOINT", ""),
			LocalPath:       getEnv("STORAGE_LOCAL_PATH", "./artifacts"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// ParamsFile returns PARAMS_FILE without validating backend credentials.
// Used by commands that only read local files.
func ParamsFile() string {
	loadEnvFile()
	return getEnv("PARAMS_FILE", "params.yaml")
}

// QueriesDir returns QUERIES_DIR without validating backend credentials
func QueriesDir() string {
	loadEnvFile()
	return getEnv("QUERIES_DIR", "")
}

// WarehouseDriver returns WAREHOUSE_DRIVER without validating credentials
func WarehouseDriver() string {
	loadEnvFile()
	return strings.ToLower(getEnv("WAREHOUSE_DRIVER", "postgres"))
}

// validate checks that the settings of the selected backends are present
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Warehouse.Driver {
	case "postgres":
		if c.Warehouse.URL == "" {
			if c.Warehouse.User == "" {
				return fmt.Errorf("DB_USER_ACCOUNT is required")
			}
			if c.Warehouse.Password == "" {
				return fmt.Errorf("DB_USER_PASSWORD is required")
			}
		}
	case "snowflake":
		if c.Warehouse.User == "" || c.Warehouse.Password == "" {
			return fmt.Errorf("DB_USER_ACCOUNT and DB_USER_PASSWORD are required")
		}
		if c.Warehouse.Account == "" {
			return fmt.Errorf("SNOWFLAKE_ACCOUNT is required")
		}
	case "duckdb":
		// in-memory when DUCKDB_PATH is empty
	default:
		return fmt.Errorf("WAREHOUSE_DRIVER must be one of: postgres, snowflake, duckdb")
	}

	switch c.Storage.Type {
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("BUCKET_NAME is required")
		}
		if c.Storage.CredentialsPath == "" {
			return fmt.Errorf("STORAGE_CREDENTIALS_PATH is required")
		}
	case "local":
		if c.Storage.LocalPath == "" {
			return fmt.Errorf("STORAGE_LOCAL_PATH is required")
		}
	default:
		return fmt.Errorf("STORAGE_TYPE must be one of: s3, local")
	}

	return nil
}

// DSN builds the driver-specific data source name for the warehouse
func (w WarehouseConfig) DSN() string {
	switch w.Driver {
	case "snowflake":
		// user:password@account/database/schema?warehouse=xxx
		dsn := fmt.Sprintf("%s:%s@%s/%s/%s",
			url.QueryEscape(w.User), url.QueryEscape(w.Password), w.Account, w.Name, w.Schema)
		if w.Warehouse != "" {
			dsn += "?warehouse=" + url.QueryEscape(w.Warehouse)
		}
		return dsn
	case "duckdb":
		return w.Path
	default:
		if w.URL != "" {
			return w.URL
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(w.User, w.Password),
			Host:     w.Host + ":" + w.Port,
			Path:     "/" + w.Name,
			RawQuery: "sslmode=" + url.QueryEscape(w.SSLMode),
		}
		return u.String()
	}
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
