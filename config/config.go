package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "change-me-in-production"

type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string
	LogLevel       string
	JWT            JWTConfig
	Redis          RedisConfig
	Relay          RelayConfig
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// RelayConfig tunes the websocket side of the relay.
type RelayConfig struct {
	SendBuffer     int
	MaxMessageSize int64
	PingInterval   time.Duration
	JoinTimeout    time.Duration
	ChatMaxLength  int
}

// Load reads configuration from the environment, loading .env first if present.
func Load() *Config {
	_ = godotenv.Load()

	// Parse allowed origins (comma-separated)
	originsStr := getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	origins := strings.Split(originsStr, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		AllowedOrigins: origins,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", defaultJWTSecret),
			TTL:    getDuration("JWT_TTL", 24*time.Hour),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		Relay: RelayConfig{
			SendBuffer:     getInt("WS_SEND_BUFFER", 256),
			MaxMessageSize: int64(getInt("WS_MAX_MESSAGE_SIZE", 64*1024)),
			PingInterval:   getDuration("WS_PING_INTERVAL", 54*time.Second),
			JoinTimeout:    getDuration("WS_JOIN_TIMEOUT", 5*time.Second),
			ChatMaxLength:  getInt("CHAT_MAX_LENGTH", 4000),
		},
	}
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate checks required fields and production safety.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("config: PORT is required")
	}
	if c.JWT.Secret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if c.IsProduction() && c.JWT.Secret == defaultJWTSecret {
		return errors.New("config: in production JWT_SECRET must be set")
	}
	if c.Relay.SendBuffer <= 0 {
		return errors.New("config: WS_SEND_BUFFER must be positive")
	}
	if c.Relay.PingInterval <= 0 {
		return errors.New("config: WS_PING_INTERVAL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
