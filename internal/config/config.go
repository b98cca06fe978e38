package config

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                  string
	DBUrl                 string
	RedisURL              string
	JWTSecret             string
	JWTRefreshSecret      string
	AccessTokenTTL        time.Duration
	RefreshTokenTTL       time.Duration
	BcryptCost            int
	DefaultSessionPrice   float64
	GoogleClientID        string
	AllowUnverifiedSocial bool
	KafkaBrokers          []string
	SupabaseURL           string
	SupabaseBucket        string
	SupabaseServiceKey    string
	AppEnv                string
	EnableDocs            bool
	LogLevel              slog.Level
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	jwtSecret, exists := os.LookupEnv("JWT_SECRET")
	if !exists || jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	refreshSecret, exists := os.LookupEnv("JWT_REFRESH_SECRET")
	if !exists || refreshSecret == "" {
		return nil, fmt.Errorf("JWT_REFRESH_SECRET is required")
	}
	if refreshSecret == jwtSecret {
		return nil, fmt.Errorf("JWT_REFRESH_SECRET must differ from JWT_SECRET")
	}

	cfg := &Config{
		Port:                  getEnv("PORT", "8080"),
		DBUrl:                 getEnv("DB_URL", ""),
		RedisURL:              getEnv("REDIS_URL", ""),
		JWTSecret:             jwtSecret,
		JWTRefreshSecret:      refreshSecret,
		AccessTokenTTL:        getEnvDuration("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL:       getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		BcryptCost:            getEnvInt("BCRYPT_COST", 10),
		DefaultSessionPrice:   getEnvFloat("DEFAULT_SESSION_PRICE", 50),
		GoogleClientID:        getEnv("GOOGLE_CLIENT_ID", ""),
		AllowUnverifiedSocial: getEnvBool("ALLOW_UNVERIFIED_SOCIAL", false),
		KafkaBrokers:          getEnvList("KAFKA_BROKERS"),
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseBucket:        getEnv("SUPABASE_BUCKET", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		AppEnv:                normalizeEnv(getEnv("APP_ENV", "production")),
		EnableDocs:            getEnvBool("ENABLE_API_DOCS", false),
		LogLevel:              parseLogLevel(getEnv("LOG_LEVEL", "info")),
	}
	if cfg.BcryptCost < 10 {
		return nil, fmt.Errorf("BCRYPT_COST must be at least 10")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

// getEnvDuration accepts Go durations ("1h") and the "7d" day shorthand.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return fallback
		}
		return time.Duration(n) * 24 * time.Hour
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvList(key string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return nil
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

func parseLogLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) IsDevelopment() bool {
	return c != nil && c.AppEnv == "development"
}

// DocsEnabled serves the API reference only on development deployments.
func (c *Config) DocsEnabled() bool {
	return c != nil && c.EnableDocs && c.AppEnv == "development"
}

func (c *Config) StorageEnabled() bool {
	return c != nil && c.SupabaseURL != "" && c.SupabaseBucket != "" && c.SupabaseServiceKey != ""
}
