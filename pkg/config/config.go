package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	Remote   RemoteConfig
	JWT      JWTConfig
	Sync     SyncConfig
	CORS     CORSConfig
	Log      LogConfig
	Export   ExportConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RemoteConfig points at the upstream document store.
type RemoteConfig struct {
	BaseURL     string
	WatchURL    string
	APIKey      string
	Timeout     time.Duration
	DialTimeout time.Duration
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// SyncConfig tunes the reconciler and listener manager.
type SyncConfig struct {
	BatchLimit    int
	QueueBuffer   int
	SummaryTTL    time.Duration
	ListenOnStart bool
	NotifyChannel string
	EventChannel  string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ExportConfig governs rendered export files.
type ExportConfig struct {
	StorageDir string
	ResultTTL  time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Remote = RemoteConfig{
		BaseURL:     strings.TrimRight(v.GetString("REMOTE_BASE_URL"), "/"),
		WatchURL:    v.GetString("REMOTE_WATCH_URL"),
		APIKey:      v.GetString("REMOTE_API_KEY"),
		Timeout:     parseDuration(v.GetString("REMOTE_TIMEOUT"), 15*time.Second),
		DialTimeout: parseDuration(v.GetString("REMOTE_DIAL_TIMEOUT"), 10*time.Second),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 30*24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.Sync = SyncConfig{
		BatchLimit:    v.GetInt("SYNC_BATCH_LIMIT"),
		QueueBuffer:   v.GetInt("SYNC_QUEUE_BUFFER"),
		SummaryTTL:    parseDuration(v.GetString("SYNC_SUMMARY_CACHE_TTL"), 5*time.Minute),
		ListenOnStart: v.GetBool("SYNC_LISTEN_ON_START"),
		NotifyChannel: v.GetString("SYNC_NOTIFY_CHANNEL"),
		EventChannel:  v.GetString("SYNC_EVENT_CHANNEL"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Export = ExportConfig{
		StorageDir: v.GetString("EXPORT_STORAGE_DIR"),
		ResultTTL:  parseDuration(v.GetString("EXPORT_RESULT_TTL"), 24*time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "coachsync")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("REMOTE_BASE_URL", "http://localhost:9090/v1")
	v.SetDefault("REMOTE_WATCH_URL", "ws://localhost:9090/v1/watch")
	v.SetDefault("REMOTE_API_KEY", "")
	v.SetDefault("REMOTE_TIMEOUT", "15s")
	v.SetDefault("REMOTE_DIAL_TIMEOUT", "10s")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "720h")
	v.SetDefault("JWT_ISSUER", "coachsync")

	v.SetDefault("SYNC_BATCH_LIMIT", 500)
	v.SetDefault("SYNC_QUEUE_BUFFER", 256)
	v.SetDefault("SYNC_SUMMARY_CACHE_TTL", "5m")
	v.SetDefault("SYNC_LISTEN_ON_START", true)
	v.SetDefault("SYNC_NOTIFY_CHANNEL", "coachsync:notifications")
	v.SetDefault("SYNC_EVENT_CHANNEL", "coachsync:events")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("EXPORT_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORT_RESULT_TTL", "24h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
