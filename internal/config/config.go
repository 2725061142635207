package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config carries every tunable the service reads from the environment.
type Config struct {
	Host string
	Port string

	// UploadRoot is the directory holding one subdirectory per ticket.
	UploadRoot string
	// UploadChunkSize is how many bytes are copied per chunk while an
	// upload streams to disk.
	UploadChunkSize int64
	// MaxUploadSize caps the request body of the upload endpoint.
	MaxUploadSize int64

	// UploadTTL is how long a ticket may go unseen before the sweeper
	// removes it and its files.
	UploadTTL time.Duration
	// CleanupInterval is the sweeper's sleep between passes.
	CleanupInterval time.Duration

	RequestTimeout time.Duration
	WorkerCount    int

	// Azure output publishing is enabled only when all three are set.
	AzureAccountName string
	AzureAccountKey  string
	AzureContainer   string
}

func (c *Config) ServerAddress() string {
	return net.JoinHostPort(strings.TrimSpace(c.Host), strings.TrimSpace(c.Port))
}

// AzureEnabled reports whether output archives should be published to blob
// storage in addition to local disk.
func (c *Config) AzureEnabled() bool {
	return c.AzureAccountName != "" && c.AzureAccountKey != "" && c.AzureContainer != ""
}

func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Host:             getEnvOrDefault("HOST", "0.0.0.0"),
		Port:             getEnvOrDefault("PORT", "6007"),
		UploadRoot:       getEnvOrDefault("UPLOAD_ROOT", "./dataset_uploads"),
		UploadChunkSize:  parseIntOrDefault("UPLOAD_CHUNK_SIZE", 1024*1024), // 1 MiB
		MaxUploadSize:    parseIntOrDefault("MAX_UPLOAD_SIZE", 512*1024*1024),
		UploadTTL:        parseDurationOrDefault("UPLOAD_TTL", 5*time.Minute),
		CleanupInterval:  parseDurationOrDefault("CLEANUP_INTERVAL", time.Minute),
		RequestTimeout:   parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		WorkerCount:      int(parseIntOrDefault("WORKER_COUNT", 0)), // 0 means NumCPU
		AzureAccountName: os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureAccountKey:  os.Getenv("AZURE_STORAGE_KEY"),
		AzureContainer:   os.Getenv("AZURE_STORAGE_CONTAINER"),
	}

	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}
	if cfg.UploadChunkSize <= 0 {
		return nil, fmt.Errorf("UPLOAD_CHUNK_SIZE must be > 0 (got %d)", cfg.UploadChunkSize)
	}
	if cfg.MaxUploadSize <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_SIZE must be > 0 (got %d)", cfg.MaxUploadSize)
	}
	if cfg.UploadTTL <= 0 || cfg.CleanupInterval <= 0 {
		return nil, fmt.Errorf("ttl and cleanup interval must be > 0 (got ttl=%s, interval=%s)",
			cfg.UploadTTL, cfg.CleanupInterval)
	}

	abs, err := filepath.Abs(cfg.UploadRoot)
	if err != nil {
		return nil, fmt.Errorf("invalid UPLOAD_ROOT %q: %w", cfg.UploadRoot, err)
	}
	cfg.UploadRoot = abs

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
