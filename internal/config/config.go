package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Source types
const (
	SourceFilesystem = "filesystem"
	SourceGitHub     = "github"
)

// Config holds all application configuration
type Config struct {
	Port string

	// Content source selection
	SourceType   string // "filesystem" or "github"
	SourcePath   string // base directory for the filesystem source
	GitHubRepo   string // "owner/name"
	GitHubBranch string
	GitHubToken  string // optional, raises the API quota
	CacheTTL     time.Duration

	// Sync scheduling
	SyncInterval    time.Duration
	SyncMode        string // "interval" or "delay"
	SyncSchedule    string // optional cron expression, wins over the interval
	AutoSyncEnabled bool
	SyncOnStartup   bool

	// Filesystem hot-reload (filesystem source only)
	WatchEnabled bool

	// Backing document for the mirror
	DatabasePath string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "3400"),

		SourceType:   getEnv("SOURCE_TYPE", SourceFilesystem),
		SourcePath:   getEnv("SOURCE_PATH", "./content"),
		GitHubRepo:   getEnv("GITHUB_REPO", ""),
		GitHubBranch: getEnv("GITHUB_BRANCH", "main"),
		GitHubToken:  getEnv("GITHUB_TOKEN", ""),
		CacheTTL:     time.Duration(getIntEnv("CACHE_TTL_MINUTES", 5)) * time.Minute,

		SyncInterval:    time.Duration(getIntEnv("SYNC_INTERVAL_MINUTES", 30)) * time.Minute,
		SyncMode:        getEnv("SYNC_MODE", "interval"),
		SyncSchedule:    getEnv("SYNC_SCHEDULE", ""),
		AutoSyncEnabled: getBoolEnv("AUTO_SYNC_ENABLED", true),
		SyncOnStartup:   getBoolEnv("SYNC_ON_STARTUP", true),

		WatchEnabled: getBoolEnv("WATCH_ENABLED", false),

		DatabasePath: getEnv("DATABASE_PATH", "./data/mirror.json"),
	}
}

// Validate rejects configurations the engine cannot run with
func (c *Config) Validate() error {
	switch c.SourceType {
	case SourceFilesystem:
		if c.SourcePath == "" {
			return fmt.Errorf("SOURCE_PATH is required for the filesystem source")
		}
	case SourceGitHub:
		if c.GitHubRepo == "" {
			return fmt.Errorf("GITHUB_REPO is required for the github source (owner/name)")
		}
	default:
		return fmt.Errorf("unknown SOURCE_TYPE %q (expected filesystem or github)", c.SourceType)
	}

	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH must not be empty")
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL_MINUTES must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
