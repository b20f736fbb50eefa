package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	StorageJSON     = "json"
	StoragePostgres = "postgres"
)

type Config struct {
	DataDir     string
	Storage     string
	LogLevel    string
	HTTPPort    string
	JWTSecret   string
	SessionTTL  time.Duration
	RateTTL     time.Duration
	CORSOrigins []string
	DBConfig    DBConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DBConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// LoadConfig reads path into the environment when it exists and builds the
// config from environment variables with defaults.
func LoadConfig(path string) (Config, error) {
	if err := godotenv.Load(path); err != nil {
		logrus.WithError(err).Debug("config file not loaded, using env vars")
	}

	cfg := Config{
		DataDir:   getEnv("WALLET_DATA_DIR", "data"),
		Storage:   strings.ToLower(getEnv("WALLET_STORAGE", StorageJSON)),
		LogLevel:  getEnv("LOG_LEVEL", "warn"),
		HTTPPort:  getEnv("HTTP_PORT", ":8080"),
		JWTSecret: getEnv("JWT_SECRET", "your-secret-key"),
		DBConfig: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "wallet"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
	}

	var err error
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.RateTTL, err = getDuration("RATE_TTL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	for _, origin := range strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}
	if !strings.HasPrefix(cfg.HTTPPort, ":") {
		cfg.HTTPPort = ":" + cfg.HTTPPort
	}

	switch cfg.Storage {
	case StorageJSON, StoragePostgres:
	default:
		return Config{}, fmt.Errorf("unsupported WALLET_STORAGE %q", cfg.Storage)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive duration", key, raw)
	}
	return d, nil
}
