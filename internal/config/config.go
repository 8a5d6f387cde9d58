package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Auth      AuthConfig
	Jobs      JobsConfig
	Log       LogConfig
	Bootstrap BootstrapConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Address     string
	CORSOrigins []string
}

// StorageConfig выбирает хранилище и его параметры подключения
type StorageConfig struct {
	Driver        string
	PostgresConn  string
	MongoURI      string
	MongoDatabase string
}

// AuthConfig holds token and lockout settings
type AuthConfig struct {
	JWTSecret        string
	TokenTTL         time.Duration
	LockoutThreshold int
	LockoutDuration  time.Duration
}

type JobsConfig struct {
	CloserInterval time.Duration
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// BootstrapConfig - учётная запись администратора, создаваемая при старте
type BootstrapConfig struct {
	AdminEmail    string
	AdminPassword string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	var err error
	cfg := &Config{
		Server: ServerConfig{
			Address:     getEnv("SERVER_ADDRESS", "0.0.0.0:8080"),
			CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
		},
		Storage: StorageConfig{
			Driver:        getEnv("STORAGE_DRIVER", DriverPostgres),
			PostgresConn:  os.Getenv("POSTGRES_CONN"),
			MongoURI:      os.Getenv("MONGO_URI"),
			MongoDatabase: getEnv("MONGO_DATABASE", "tendering"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Bootstrap: BootstrapConfig{
			AdminEmail:    os.Getenv("ADMIN_EMAIL"),
			AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		},
	}

	if cfg.Auth.TokenTTL, err = getDuration("TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Auth.LockoutThreshold, err = getInt("LOCKOUT_THRESHOLD", 3); err != nil {
		return nil, err
	}
	if cfg.Auth.LockoutDuration, err = getDuration("LOCKOUT_DURATION", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Jobs.CloserInterval, err = getDuration("CLOSER_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.Log.Pretty, err = getBool("LOG_PRETTY", false); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Storage.PostgresConn == "" {
			return fmt.Errorf("POSTGRES_CONN is required for the postgres driver")
		}
	case DriverMongo:
		if c.Storage.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for the mongo driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.Auth.LockoutThreshold < 1 {
		return fmt.Errorf("LOCKOUT_THRESHOLD must be positive")
	}
	if c.Auth.LockoutDuration <= 0 {
		return fmt.Errorf("LOCKOUT_DURATION must be positive")
	}
	if c.Jobs.CloserInterval <= 0 {
		return fmt.Errorf("CLOSER_INTERVAL must be positive")
	}
	if (c.Bootstrap.AdminEmail == "") != (c.Bootstrap.AdminPassword == "") {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	return nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
