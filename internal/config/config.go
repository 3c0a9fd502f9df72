// internal/config/config.go
// Centralized configuration management
// Loads from environment variables with sensible defaults

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all client configuration
type Config struct {
	// Server
	ServerURL   string
	SocketURL   string
	Environment string

	// Auth
	AuthToken string

	// Reconnection
	ReconnectAttempts int
	ReconnectDelay    time.Duration

	// Uploads
	UploadProvider string // "http" or "s3"
	MaxUploadSize  int64

	// S3 (only when UploadProvider is "s3")
	AWSRegion string
	S3Bucket  string
	CDNURL    string

	// Observability
	MetricsAddr string

	// Demo conversation targets
	PeerID  string
	GroupID string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		ServerURL:   getEnv("SERVER_URL", "http://localhost:3000"),
		SocketURL:   getEnv("SOCKET_URL", "ws://localhost:3000/ws"),
		Environment: getEnv("ENVIRONMENT", "development"),

		AuthToken: getEnv("AUTH_TOKEN", ""),

		ReconnectAttempts: getEnvInt("RECONNECT_ATTEMPTS", 5),
		ReconnectDelay:    getEnvDuration("RECONNECT_DELAY", "1s"),

		UploadProvider: getEnv("UPLOAD_PROVIDER", "http"),
		MaxUploadSize:  int64(getEnvInt("MAX_UPLOAD_SIZE", 25*1024*1024)),

		AWSRegion: getEnv("AWS_REGION", "us-east-1"),
		S3Bucket:  getEnv("S3_BUCKET", ""),
		CDNURL:    getEnv("CDN_URL", ""),

		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		PeerID:  getEnv("CHAT_PEER", ""),
		GroupID: getEnv("CHAT_GROUP", ""),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server URL is required")
	}
	if c.SocketURL == "" {
		return fmt.Errorf("socket URL is required")
	}

	if c.ReconnectAttempts < 1 || c.ReconnectAttempts > 20 {
		return fmt.Errorf("reconnect attempts must be between 1 and 20")
	}
	if c.ReconnectDelay < 100*time.Millisecond {
		return fmt.Errorf("reconnect delay must be at least 100ms")
	}

	switch c.UploadProvider {
	case "http":
	case "s3":
		if c.S3Bucket == "" || c.CDNURL == "" {
			return fmt.Errorf("S3 configuration incomplete")
		}
	default:
		return fmt.Errorf("invalid upload provider: %s", c.UploadProvider)
	}

	if c.MaxUploadSize < 1 {
		return fmt.Errorf("max upload size must be positive")
	}

	return nil
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Helper functions

// getEnv gets a string value from environment with a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment with a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration value from environment with a default
func getEnvDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}
