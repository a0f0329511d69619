package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is the process configuration, read once at startup.
type Config struct {
	Port string

	DBDriver    string // "postgres" or "sqlite"
	DatabaseURL string
	SQLitePath  string

	JWTSecret string
	TokenTTL  time.Duration

	GeminiAPIKey string
	GeminiModel  string

	LogFile  string
	LogLevel string

	SeedAdminPassword string

	// Empty allows any origin.
	CORSOrigins []string
}

// Load reads .env (if present) and the environment, falling back to defaults.
func Load() Config {
	// 1) Load .env (if present)
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, relying on env vars")
	}

	cfg := Config{
		Port:              getEnv("PORT", "8080"),
		DBDriver:          strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		SQLitePath:        getEnv("SQLITE_PATH", "campus.db"),
		JWTSecret:         getEnv("JWT_SECRET", "supersecret"),
		TokenTTL:          getDuration("TOKEN_TTL", 72*time.Hour),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		LogFile:           getEnv("LOG_FILE", "./logs/app.log"),
		LogLevel:          getEnv("LOG_LEVEL", "debug"),
		SeedAdminPassword: getEnv("SEED_ADMIN_PASSWORD", "password"),
		CORSOrigins:       getList("CORS_ALLOWED_ORIGINS"),
	}

	if cfg.DatabaseURL == "" && cfg.DBDriver == "postgres" {
		cfg.DatabaseURL = postgresDSN()
	}
	return cfg
}

// Validate reports settings that make the server unusable and warns about
// weak ones.
func (c Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if len(c.JWTSecret) < 32 {
		logrus.Warn("JWT_SECRET is shorter than 32 characters")
	}
	if c.GeminiAPIKey == "" {
		logrus.Warn("GEMINI_API_KEY is not set, voice commands use the raw transcript")
	}
	return nil
}

// postgresDSN builds a key/value DSN from the discrete DB_* variables.
func postgresDSN() string {
	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "postgres")
	password := getEnv("DB_PASSWORD", "password")
	dbname := getEnv("DB_NAME", "campus_nav")
	sslmode := getEnv("DB_SSLMODE", "disable")
	timezone := getEnv("DB_TIMEZONE", "UTC")

	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		host, user, password, dbname, port, sslmode, timezone,
	)
}

// getEnv reads an environment variable or returns the provided default
func getEnv(key, defaultValue string) string {
	if v, exists := os.LookupEnv(key); exists {
		return v
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logrus.WithError(err).Warnf("invalid %s, using %s", key, defaultValue)
		return defaultValue
	}
	return d
}

// getList splits a comma-separated variable, dropping empty entries.
func getList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
