package config

import (
	"os"
	"strconv"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
	// ConnectAttempts bounds the startup pings made while the database comes up.
	ConnectAttempts int
}

// StorageConfig selects and configures the object storage backend.
// Driver is one of "minio", "s3" or "memory".
type StorageConfig struct {
	Driver       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	UseSSL       bool
	UsePathStyle bool
	// SigningSecret signs grants issued by the memory driver.
	SigningSecret string
	// PublicBaseURL prefixes grants issued by the memory driver.
	PublicBaseURL string
}

// RetryConfig is the retry budget applied to every object store call.
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
}

// GrantConfig holds validity windows of signed access grants.
type GrantConfig struct {
	UploadTTL   time.Duration
	DownloadTTL time.Duration
}

// QuotaConfig holds defaults applied to lazily created tenant quotas.
type QuotaConfig struct {
	DefaultStorageLimitBytes uint64
	DefaultDocumentLimit     uint64
	DefaultTier              string
	ReconcileInterval        time.Duration
}

// QueueConfig controls the reindex queue and its workers.
type QueueConfig struct {
	MaxAttempts        int
	RetryDelay         time.Duration
	CompletedRetention time.Duration
	SLA                time.Duration
	PollInterval       time.Duration
	ProcessingTimeout  time.Duration
	Workers            int
}

// PurgeConfig controls the storage deletion loop.
type PurgeConfig struct {
	PollInterval   time.Duration
	BatchSize      int
	AlertAttempts  int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string
	Pretty bool
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost     string
	Port        string
	EmbedWorker bool
	// BodyLimitBytes caps request bodies, and with them proxied uploads.
	BodyLimitBytes int
	// AdminToken is the bearer token of the /admin routes. Empty disables them.
	AdminToken string
	Database       DatabaseConfig
	Storage        StorageConfig
	Retry          RetryConfig
	Grants         GrantConfig
	Quota          QuotaConfig
	Queue          QueueConfig
	Purge          PurgeConfig
	Log            LogConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:        getEnv("APP_HOST", "localhost:8080"),
		Port:           getEnv("PORT", "8080"),
		EmbedWorker:    getEnvBool("EMBED_WORKER", false),
		BodyLimitBytes: getEnvInt("BODY_LIMIT_BYTES", 64<<20),
		AdminToken:     getEnv("ADMIN_TOKEN", ""),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
			ConnectAttempts:    getEnvInt("DB_CONNECT_ATTEMPTS", 5),
		},
		Storage: StorageConfig{
			Driver:        getEnv("STORAGE_DRIVER", "minio"),
			Endpoint:      getEnv("STORAGE_ENDPOINT", ""),
			AccessKey:     getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey:     getEnv("STORAGE_SECRET_KEY", ""),
			Bucket:        getEnv("STORAGE_BUCKET", ""),
			Region:        getEnv("STORAGE_REGION", "us-east-1"),
			UseSSL:        getEnvBool("STORAGE_USE_SSL", false),
			UsePathStyle:  getEnvBool("STORAGE_USE_PATH_STYLE", true),
			SigningSecret: getEnv("STORAGE_SIGNING_SECRET", ""),
			PublicBaseURL: getEnv("STORAGE_PUBLIC_BASE_URL", "http://localhost:8080/objects"),
		},
		Retry: RetryConfig{
			MaxAttempts:     getEnvInt("STORAGE_RETRY_ATTEMPTS", 3),
			InitialInterval: getEnvDuration("STORAGE_RETRY_INITIAL", 200*time.Millisecond),
		},
		Grants: GrantConfig{
			UploadTTL:   getEnvDuration("GRANT_UPLOAD_TTL", 15*time.Minute),
			DownloadTTL: getEnvDuration("GRANT_DOWNLOAD_TTL", time.Hour),
		},
		Quota: QuotaConfig{
			DefaultStorageLimitBytes: getEnvUint64("QUOTA_DEFAULT_STORAGE_BYTES", 1<<30),
			DefaultDocumentLimit:     getEnvUint64("QUOTA_DEFAULT_DOCUMENTS", 200),
			DefaultTier:              getEnv("QUOTA_DEFAULT_TIER", "free"),
			ReconcileInterval:        getEnvDuration("QUOTA_RECONCILE_INTERVAL", time.Hour),
		},
		Queue: QueueConfig{
			MaxAttempts:        getEnvInt("QUEUE_MAX_ATTEMPTS", 5),
			RetryDelay:         getEnvDuration("QUEUE_RETRY_DELAY", 10*time.Second),
			CompletedRetention: getEnvDuration("QUEUE_COMPLETED_RETENTION", time.Hour),
			SLA:                getEnvDuration("QUEUE_SLA", 5*time.Minute),
			PollInterval:       getEnvDuration("QUEUE_POLL_INTERVAL", time.Second),
			ProcessingTimeout:  getEnvDuration("QUEUE_PROCESSING_TIMEOUT", 10*time.Minute),
			Workers:            getEnvInt("QUEUE_WORKERS", 4),
		},
		Purge: PurgeConfig{
			PollInterval:   getEnvDuration("PURGE_POLL_INTERVAL", 5*time.Second),
			BatchSize:      getEnvInt("PURGE_BATCH_SIZE", 50),
			AlertAttempts:  getEnvInt("PURGE_ALERT_ATTEMPTS", 10),
			InitialBackoff: getEnvDuration("PURGE_INITIAL_BACKOFF", 5*time.Second),
			MaxBackoff:     getEnvDuration("PURGE_MAX_BACKOFF", 10*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnvBool("LOG_PRETTY", false),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvUint64(key string, def uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		u, err := strconv.ParseUint(v, 10, 64)
		if err == nil {
			return u
		}
	}
	return def
}

// getEnvDuration accepts Go duration strings ("15m", "200ms").
func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil && d > 0 {
			return d
		}
	}
	return def
}
