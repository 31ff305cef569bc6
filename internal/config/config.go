package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Seed       SeedConfig
	RateLimit  RateLimitConfig
	Prometheus PrometheusConfig
}

// SeedConfig points at the reference account directory loaded at startup.
type SeedConfig struct {
	AccountsFile string
}

type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	UploadRate  float64
	UploadBurst int

	// SerializeUploads holds a redis lock for the whole upload so that only
	// one batch is validated and saved at a time across instances.
	SerializeUploads  bool
	UploadLockTTLSecs int
}

type PrometheusConfig struct {
	PushEnabled  bool
	Exporter     string
	Endpoint     string
	AuthToken    string
	PushInterval int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:      getenv("APP_SERVICE", "meterreadings"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            strings.ToLower(getenv("DATABASE_TYPE", "sqlite")),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "meterreadings"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "meterreadings.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Seed: SeedConfig{
			AccountsFile: strings.TrimSpace(getenv("SEED_ACCOUNTS_FILE", "")),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:         strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword:     strings.TrimSpace(getenv("RATE_LIMIT_REDIS_PASSWORD", "")),
			RedisDB:           getenvInt("RATE_LIMIT_REDIS_DB", 0),
			UploadRate:        getenvFloat("RATE_LIMIT_UPLOAD_RATE", 1),
			UploadBurst:       getenvInt("RATE_LIMIT_UPLOAD_BURST", 5),
			SerializeUploads:  getenvBool("RATE_LIMIT_SERIALIZE_UPLOADS", false),
			UploadLockTTLSecs: getenvInt("RATE_LIMIT_UPLOAD_LOCK_TTL_SECONDS", 60),
		},
		Prometheus: PrometheusConfig{
			PushEnabled:  getenvBool("PROM_PUSH_ENABLED", false),
			Exporter:     strings.ToLower(getenv("PROM_PUSH_EXPORTER", "")),
			Endpoint:     strings.TrimSpace(getenv("PROM_PUSH_ENDPOINT", "")),
			AuthToken:    strings.TrimSpace(getenv("PROM_PUSH_AUTH_TOKEN", "")),
			PushInterval: getenvInt("PROM_PUSH_INTERVAL_SECONDS", 60),
		},
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
