package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Worker pool
	WorkerCount  int
	PageWorkers  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64
	MaxPages       int

	// Job state
	JobTTL time.Duration

	// Build defaults, overridable per request and per page
	TOCDepth        int
	NumberHeadings  bool
	NumberFigures   bool
	NumberTables    bool
	NumberEquations bool
	NumberCode      bool

	LogLevel string
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("DOCCOMPILE_API_KEY"),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		PageWorkers:  envInt("PAGE_WORKERS", 8),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB
		MaxPages:       envInt("MAX_PAGES", 500),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		TOCDepth:        envInt("TOC_DEPTH", 3),
		NumberHeadings:  envBool("NUMBER_HEADINGS", false),
		NumberFigures:   envBool("NUMBER_FIGURES", true),
		NumberTables:    envBool("NUMBER_TABLES", true),
		NumberEquations: envBool("NUMBER_EQUATIONS", true),
		NumberCode:      envBool("NUMBER_CODE", true),

		LogLevel: envOr("LOG_LEVEL", "info"),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.PageWorkers <= 0 {
		cfg.PageWorkers = 8
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 500
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.TOCDepth <= 0 {
		cfg.TOCDepth = 3
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("DOCCOMPILE_API_KEY is required")
	}
	if c.TOCDepth > 6 {
		return fmt.Errorf("TOC_DEPTH must be at most 6, got %d", c.TOCDepth)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
