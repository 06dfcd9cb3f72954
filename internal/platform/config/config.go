package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Storage backends understood by the composition root.
const (
	StorageFile     = "file"
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

// DefaultStorageKey is the key the session record has always been stored under.
const DefaultStorageKey = "auth-storess"

// Server captures process level configuration.
type Server struct {
	Addr    string
	Bridge  BridgeConfig
	Audit   AuditConfig
	Storage StorageConfig
	Session SessionConfig
	Redis   RedisConfig
	DB      PostgresConfig
}

// BridgeConfig tunes the presentation bridge server. A zero
// RequestsPerSecond disables the limiter.
type BridgeConfig struct {
	RequestsPerSecond float64
	Burst             int
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

// AuditConfig sizes the in-memory ops audit log. StepSampleRate in [0, 1]
// keeps that share of onboarding_step_set events, which fire on every page
// of the onboarding flow.
type AuditConfig struct {
	Capacity       int
	StepSampleRate float64
}

// StorageConfig selects and locates the durable key-value store.
type StorageConfig struct {
	Backend string
	DataDir string
	// SQLitePath defaults to appshell.db inside DataDir.
	SQLitePath string
}

// SessionConfig tunes the session container.
type SessionConfig struct {
	StorageKey     string
	WriteTimeout   time.Duration
	HydrateTimeout time.Duration
}

// RedisConfig configures the go-redis client.
type RedisConfig struct {
	URL          string
	KeyPrefix    string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures the lib/pq connection.
type PostgresConfig struct {
	URL          string
	MaxOpenConns int
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	dataDir := envOr("APPSHELL_DATA_DIR", defaultDataDir())
	return Server{
		Addr: envOr("APPSHELL_ADDR", "127.0.0.1:8787"),
		Bridge: BridgeConfig{
			RequestsPerSecond: envFloat("APPSHELL_BRIDGE_RPS", 50),
			Burst:             envInt("APPSHELL_BRIDGE_BURST", 100),
			ReadHeaderTimeout: envDuration("APPSHELL_BRIDGE_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       envDuration("APPSHELL_BRIDGE_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:      envDuration("APPSHELL_BRIDGE_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:       envDuration("APPSHELL_BRIDGE_IDLE_TIMEOUT", 60*time.Second),
		},
		Audit: AuditConfig{
			Capacity:       envInt("APPSHELL_AUDIT_CAPACITY", 1000),
			StepSampleRate: envFloat("APPSHELL_AUDIT_STEP_SAMPLE_RATE", 1),
		},
		Storage: StorageConfig{
			Backend:    envOr("APPSHELL_STORAGE", StorageFile),
			DataDir:    dataDir,
			SQLitePath: envOr("APPSHELL_SQLITE_PATH", filepath.Join(dataDir, "appshell.db")),
		},
		Session: SessionConfig{
			StorageKey:     envOr("APPSHELL_STORAGE_KEY", DefaultStorageKey),
			WriteTimeout:   envDuration("APPSHELL_WRITE_TIMEOUT", 2*time.Second),
			HydrateTimeout: envDuration("APPSHELL_HYDRATE_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			KeyPrefix:    envOr("REDIS_KEY_PREFIX", "appshell:"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 4),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 1),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", time.Second),
		},
		DB: PostgresConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 4),
		},
	}
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "appshell")
	}
	return filepath.Join(dir, "appshell")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envDuration falls back when the variable is unset, unparsable or non-positive.
func envDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// envFloat accepts 0 so the limiter can be switched off.
func envFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || f < 0 {
		return fallback
	}
	return f
}

func envInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
