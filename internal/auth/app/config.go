package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer        string // Issuer claim for access tokens (default: authcore)
	AccessSecret  string // Required: HS256 signing secret for access tokens
	MFASecretKey  string // Required: key material for sealing MFA secrets at rest
	DatabaseFile  string // Path to SQLite database file (default: ./authcore.db)
	RedisAddr     string // Redis address for counters and the allow-list (default: localhost:6379)
	RedisPassword string // Optional: Redis AUTH password
	RedisDB       int    // Redis logical database (default: 0)

	AccessTokenTTL  time.Duration // Access token lifetime (default: 15m)
	RefreshTokenTTL string        // Refresh token lifetime as <int><unit>, unit in d/h/m/s (default: 7d)

	SMTPHost     string  // SMTP relay host; empty disables outbound mail
	SMTPPort     int     // SMTP relay port (default: 587)
	SMTPUsername string  // Optional: SMTP auth username
	SMTPPassword string  // Optional: SMTP auth password
	MailFrom     string  // From address on outgoing mail
	MailBaseURL  string  // Public base URL used in mail links
	MailSendRate float64 // Outbound messages per second cap (default: 1)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:        getEnvOrDefault("AUTH_ISSUER", "authcore"),
		AccessSecret:  os.Getenv("AUTH_ACCESS_SECRET"),
		MFASecretKey:  os.Getenv("AUTH_MFA_SECRET_KEY"),
		DatabaseFile:  getEnvOrDefault("AUTH_DATABASE_FILE", "authcore.db"),
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("REDIS_DB", 0),

		AccessTokenTTL:  getEnvDurationOrDefault("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: getEnvOrDefault("REFRESH_TOKEN_TTL", "7d"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvIntOrDefault("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     getEnvOrDefault("MAIL_FROM", "noreply@localhost"),
		MailBaseURL:  getEnvOrDefault("MAIL_BASE_URL", "http://localhost:8080"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	if rateStr := os.Getenv("MAIL_SEND_RATE"); rateStr != "" {
		if rate, err := strconv.ParseFloat(rateStr, 64); err == nil {
			cfg.MailSendRate = rate
		}
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
