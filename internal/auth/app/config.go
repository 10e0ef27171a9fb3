package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer string // Required: issuer claim for ID tokens

	SigningKeyFile string // Path to the RS256 private key PEM (default: ./signing_key.pem)
	SigningKeyID   string // Key ID published in the JWKS (default: "primary")
	DatabaseFile   string // Path to SQLite database file (default: ./auth.db)

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)
	Port      int    // HTTP server port (default: 8080)

	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)

	OAuthCodeTTL   time.Duration // Plain OAuth2 code lifetime (default: 10m)
	OIDCCodeTTL    time.Duration // OIDC code lifetime (default: 1m)
	TransactionTTL time.Duration // Consent transaction lifetime (default: 5m)
	IDTokenTTL     time.Duration // ID token lifetime (default: 1h)
	TOTPLockStep   time.Duration // Progressive lockout unit (default: 5s)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:               os.Getenv("AUTH_ISSUER"),
		SigningKeyFile:       getEnvOrDefault("AUTH_SIGNING_KEY_FILE", "signing_key.pem"),
		SigningKeyID:         getEnvOrDefault("AUTH_SIGNING_KEY_ID", "primary"),
		DatabaseFile:         getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		OAuthCodeTTL:         getEnvDurationOrDefault("AUTH_OAUTH_CODE_TTL", 10*time.Minute),
		OIDCCodeTTL:          getEnvDurationOrDefault("AUTH_OIDC_CODE_TTL", time.Minute),
		TransactionTTL:       getEnvDurationOrDefault("AUTH_TRANSACTION_TTL", 5*time.Minute),
		IDTokenTTL:           getEnvDurationOrDefault("AUTH_ID_TOKEN_TTL", time.Hour),
		TOTPLockStep:         getEnvDurationOrDefault("AUTH_TOTP_LOCK_STEP", 5*time.Second),
	}

	if cfg.Issuer == "" {
		cfg.Issuer = "wastetrail-auth"
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

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
