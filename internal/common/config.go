package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Storage  StorageConfig
	Fetch    FetchConfig
	Compile  CompileConfig
	Events   EventsConfig
}

// DatabaseConfig holds database-related configuration.
// DSN is the restricted (row-level secured) role; ServiceDSN the role that
// bypasses row-level restrictions and is only handed to the access gate.
type DatabaseConfig struct {
	Driver           string
	DSN              string
	ServiceDSN       string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
	HTTPAddr string
}

// StorageConfig selects and configures the object store.
type StorageConfig struct {
	Backend        string // "s3" | "local"
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Region         string
	UseSSL         bool
	ReceiptsBucket string
	ExportsBucket  string
	LocalDir       string
}

// FetchConfig bounds the concurrent receipt download stage.
type FetchConfig struct {
	Workers     int
	Timeout     time.Duration
	MaxBytes    int64
	MaxReceipts int
	URLTTL      time.Duration
}

// CompileConfig holds per-run limits.
type CompileConfig struct {
	Timeout   time.Duration
	ExportTTL time.Duration
	Manifest  bool
}

// EventsConfig configures completion event publishing.
type EventsConfig struct {
	AMQPURL  string
	Exchange string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "pgx"),
			DSN:              getEnv("DB_URL", ""),
			ServiceDSN:       getEnv("DB_SERVICE_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
			HTTPAddr: getEnv("HTTP_ADDR", ":8081"),
		},
		Storage: StorageConfig{
			Backend:        getEnv("STORAGE_BACKEND", "s3"),
			Endpoint:       getEnv("S3_ENDPOINT", ""),
			AccessKey:      getEnv("S3_ACCESS_KEY", ""),
			SecretKey:      getEnv("S3_SECRET_KEY", ""),
			Region:         getEnv("S3_REGION", ""),
			UseSSL:         getEnvAsBool("S3_USE_SSL", true),
			ReceiptsBucket: getEnv("RECEIPTS_BUCKET", "receipts"),
			ExportsBucket:  getEnv("EXPORTS_BUCKET", "exports"),
			LocalDir:       getEnv("STORAGE_LOCAL_DIR", "./data/objects"),
		},
		Fetch: FetchConfig{
			Workers:     getEnvAsInt("FETCH_WORKERS", 8),
			Timeout:     getEnvAsDuration("FETCH_TIMEOUT", 10*time.Second),
			MaxBytes:    getEnvAsInt64("FETCH_MAX_BYTES", 8<<20),
			MaxReceipts: getEnvAsInt("FETCH_MAX_RECEIPTS", 150),
			URLTTL:      getEnvAsDuration("RECEIPT_URL_TTL", 5*time.Minute),
		},
		Compile: CompileConfig{
			Timeout:   getEnvAsDuration("COMPILE_TIMEOUT", 3*time.Minute),
			ExportTTL: getEnvAsDuration("EXPORT_URL_TTL", time.Hour),
			Manifest:  getEnvAsBool("EXPORT_MANIFEST", true),
		},
		Events: EventsConfig{
			AMQPURL:  getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "exports"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	var problems []string

	switch c.Database.Driver {
	case "pgx", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("DB_DRIVER %q must be pgx or sqlite", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		problems = append(problems, "DB_URL is required")
	}
	if c.Database.Driver == "pgx" && c.Database.ServiceDSN == "" {
		problems = append(problems, "DB_SERVICE_URL is required for the pgx driver")
	}

	switch c.Storage.Backend {
	case "s3":
		if c.Storage.Endpoint == "" {
			problems = append(problems, "S3_ENDPOINT is required for the s3 backend")
		}
	case "local":
		if c.Storage.LocalDir == "" {
			problems = append(problems, "STORAGE_LOCAL_DIR is required for the local backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("STORAGE_BACKEND %q must be s3 or local", c.Storage.Backend))
	}
	if c.Storage.ReceiptsBucket == "" || c.Storage.ExportsBucket == "" {
		problems = append(problems, "RECEIPTS_BUCKET and EXPORTS_BUCKET are required")
	}

	if c.Fetch.Workers <= 0 {
		problems = append(problems, "FETCH_WORKERS must be positive")
	}
	if c.Fetch.MaxReceipts <= 0 {
		problems = append(problems, "FETCH_MAX_RECEIPTS must be positive")
	}
	if c.Fetch.MaxBytes <= 0 {
		problems = append(problems, "FETCH_MAX_BYTES must be positive")
	}
	if c.Server.GRPCAddr == "" && c.Server.HTTPAddr == "" {
		problems = append(problems, "one of GRPC_ADDR or HTTP_ADDR is required")
	}

	if len(problems) > 0 {
		return NewAppError("CONFIG_ERROR", strings.Join(problems, "; "), ErrInvalidInput)
	}
	return nil
}

// PrivilegedDSN returns the DSN for the row-level bypass role. The sqlite
// driver has no roles, so it shares the restricted database file.
func (d DatabaseConfig) PrivilegedDSN() string {
	if d.ServiceDSN != "" {
		return d.ServiceDSN
	}
	if d.Driver == "sqlite" {
		return d.DSN
	}
	return ""
}
