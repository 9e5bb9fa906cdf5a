/**
 * Configuration for the Screening Worker
 *
 * Loads configuration from environment variables. Threshold values follow the
 * screening UI surface: similarity 80-100 (default 95), name match 60-100
 * (default 80). Per-job payloads may override both within the same bounds.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration (job queue + progress events)
	RedisURL string

	// PostgreSQL configuration (job status persistence)
	DatabaseURL string

	// Artifact service (result archive upload)
	ArtifactAPIURL string

	// Queue configuration
	QueueName string

	// Worker configuration
	WorkerConcurrency int
	ProcessingTimeout int // milliseconds
	MaxImageBytes     int64

	// Screening defaults (per-job overridable)
	TargetName          string
	SimilarityThreshold int // 80..100, higher = less permissive of variation
	NameMatchThreshold  int // 60..100

	// OCR engine selectors, passed through opaquely to the engine
	OCRLanguage         string // "ch" or "en"
	UseAccelerator      bool
	DeviceIndex         int
	DetLimitSideLen     int
	AngleClassification bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:            getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		ArtifactAPIURL:      getEnvOrDefault("ARTIFACT_API_URL", "http://localhost:8096"),
		QueueName:           getEnvOrDefault("QUEUE_NAME", "screening:jobs"),
		WorkerConcurrency:   getEnvAsIntOrDefault("WORKER_CONCURRENCY", 4),
		ProcessingTimeout:   getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 300000), // 5 minutes
		MaxImageBytes:       getEnvAsInt64OrDefault("MAX_IMAGE_BYTES", 33554432), // 32MB
		TargetName:          getEnvOrDefault("TARGET_NAME", ""),
		SimilarityThreshold: getEnvAsIntOrDefault("SIMILARITY_THRESHOLD", 95),
		NameMatchThreshold:  getEnvAsIntOrDefault("NAME_MATCH_THRESHOLD", 80),
		OCRLanguage:         getEnvOrDefault("OCR_LANG", "ch"),
		UseAccelerator:      getEnvAsBoolOrDefault("USE_ACCELERATOR", false),
		DeviceIndex:         getEnvAsIntOrDefault("DEVICE_INDEX", 0),
		DetLimitSideLen:     getEnvAsIntOrDefault("DET_LIMIT_SIDE_LEN", 960),
		AngleClassification: getEnvAsBoolOrDefault("ANGLE_CLASSIFICATION", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 64 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 64, got %d", c.WorkerConcurrency)
	}

	if c.SimilarityThreshold < 80 || c.SimilarityThreshold > 100 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be between 80 and 100, got %d", c.SimilarityThreshold)
	}

	if c.NameMatchThreshold < 60 || c.NameMatchThreshold > 100 {
		return fmt.Errorf("NAME_MATCH_THRESHOLD must be between 60 and 100, got %d", c.NameMatchThreshold)
	}

	if c.OCRLanguage != "ch" && c.OCRLanguage != "en" {
		return fmt.Errorf("OCR_LANG must be \"ch\" or \"en\", got %q", c.OCRLanguage)
	}

	if c.MaxImageBytes < 1024 || c.MaxImageBytes > 1073741824 { // 1KB to 1GB
		return fmt.Errorf("MAX_IMAGE_BYTES must be between 1KB and 1GB, got %d", c.MaxImageBytes)
	}

	if c.DetLimitSideLen < 0 {
		return fmt.Errorf("DET_LIMIT_SIDE_LEN must not be negative, got %d", c.DetLimitSideLen)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}


func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
