// Package config provides configuration loading and validation.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// CORS
	AllowedOrigins []string

	// Rate Limiting
	DownloadRPM   int
	DownloadBurst int
	StatusRPM     int
	StatusBurst   int

	// Engine
	EnginePath         string
	FFmpegPath         string
	StructuredProgress bool
	ProbeTimeout       time.Duration

	// Defaults applied when a request leaves them unset
	DefaultDestination string
	CredentialsFile    string

	// Job history
	DataDir       string
	HistoryMaxAge time.Duration

	// Metadata cache
	ProbeCacheTTL time.Duration

	// Partial file sweeper
	SweepMaxAge   time.Duration
	SweepInterval time.Duration

	// Upload storage (optional, disabled when access key is empty)
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Bucket          string
	S3PresignExpiry   time.Duration
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ","),

		DownloadRPM:   getEnvInt("DOWNLOAD_RATE_RPM", 5),
		DownloadBurst: getEnvInt("DOWNLOAD_RATE_BURST", 2),
		StatusRPM:     getEnvInt("STATUS_RATE_RPM", 600),
		StatusBurst:   getEnvInt("STATUS_RATE_BURST", 20),

		EnginePath:         getEnv("ENGINE_PATH", "yt-dlp"),
		FFmpegPath:         getEnv("FFMPEG_PATH", "ffmpeg"),
		StructuredProgress: getEnvBool("STRUCTURED_PROGRESS", false),
		ProbeTimeout:       time.Duration(getEnvInt("PROBE_TIMEOUT_SECONDS", 30)) * time.Second,

		DefaultDestination: getEnv("DEFAULT_DESTINATION", ""),
		CredentialsFile:    getEnv("CREDENTIALS_FILE", ""),

		DataDir:       getEnv("DATA_DIR", "./data"),
		HistoryMaxAge: time.Duration(getEnvInt("HISTORY_MAX_AGE_DAYS", 30)) * 24 * time.Hour,

		ProbeCacheTTL: time.Duration(getEnvInt("PROBE_CACHE_TTL_MINUTES", 60)) * time.Minute,

		SweepMaxAge:   time.Duration(getEnvInt("SWEEP_MAX_AGE_MINUTES", 120)) * time.Minute,
		SweepInterval: time.Duration(getEnvInt("SWEEP_INTERVAL_MINUTES", 30)) * time.Minute,

		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3Region:          getEnv("S3_REGION", ""),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3PresignExpiry:   time.Duration(getEnvInt("S3_PRESIGN_EXPIRY_MINUTES", 15)) * time.Minute,
	}

	return cfg, nil
}

// UploadEnabled reports whether upload storage is fully configured.
func (c *Config) UploadEnabled() bool {
	return c.S3AccessKeyID != "" && c.S3SecretAccessKey != "" && c.S3Bucket != ""
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
