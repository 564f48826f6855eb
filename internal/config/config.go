package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string
	Environment    string

	DatabaseURL string
	RedisURL    string

	// Issued access token settings
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTTTL      time.Duration

	// Google OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Apple Sign In
	AppleTeamID      string
	AppleClientID    string
	AppleKeyID       string
	ApplePrivateKey  string // PEM-encoded P-256 key
	AppleRedirectURL string

	// OTP tuning
	OtpTTL             time.Duration
	OtpMaxAttempts     int
	OtpRateWindow      time.Duration
	OtpMaxPerWindow    int
	OtpCleanupInterval time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:5174")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Environment:    getEnv("ENVIRONMENT", "production"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTIssuer:   getEnv("JWT_ISSUER", "be-auth"),
		JWTAudience: getEnv("JWT_AUDIENCE", "be-auth-clients"),
		JWTTTL:      getDurationEnv("JWT_TTL", time.Hour),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),

		AppleTeamID:      getEnv("APPLE_TEAM_ID", ""),
		AppleClientID:    getEnv("APPLE_CLIENT_ID", ""),
		AppleKeyID:       getEnv("APPLE_KEY_ID", ""),
		ApplePrivateKey:  getEnv("APPLE_PRIVATE_KEY", ""),
		AppleRedirectURL: getEnv("APPLE_REDIRECT_URL", ""),

		OtpTTL:             getDurationEnv("OTP_TTL", 5*time.Minute),
		OtpMaxAttempts:     getIntEnv("OTP_MAX_ATTEMPTS", 5),
		OtpRateWindow:      getDurationEnv("OTP_RATE_WINDOW", 15*time.Minute),
		OtpMaxPerWindow:    getIntEnv("OTP_MAX_PER_WINDOW", 3),
		OtpCleanupInterval: getDurationEnv("OTP_CLEANUP_INTERVAL", time.Minute),
	}, nil
}

// HasGoogle reports whether Google OAuth is configured
func (c *Config) HasGoogle() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// HasApple reports whether Apple Sign In is configured
func (c *Config) HasApple() bool {
	return c.AppleTeamID != "" && c.AppleClientID != "" && c.AppleKeyID != "" && c.ApplePrivateKey != ""
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// parseOrigins parses comma-separated origins into a slice
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getDurationEnv gets a duration environment variable with a fallback value
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
