package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/Vulkestra/AUS-Arch-User-Store/internal/aur"
	"github.com/Vulkestra/AUS-Arch-User-Store/internal/operation"
	"github.com/Vulkestra/AUS-Arch-User-Store/internal/settings"
)

// Config holds the application configuration
type Config struct {
	Port         int
	Host         string
	AURURL       string        // AUR base URL; RPC and cgit paths hang off it
	WebDir       string        // Static frontend; empty or missing serves the built-in page
	SettingsPath string        // YAML settings file, watched for changes
	RedisAddr    string        // Optional AUR response cache
	CacheTTL     time.Duration // Lifetime of cached AUR responses
	Elevate      string        // Privilege elevation program for pacman -Rns
	LogLevel     string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:         getEnvAsInt("AUR_STORE_PORT", getEnvAsInt("PORT", 3000)),
		Host:         getEnv("AUR_STORE_HOST", "127.0.0.1"),
		AURURL:       getEnv("AUR_STORE_AUR_URL", aur.DefaultBaseURL),
		WebDir:       getEnv("AUR_STORE_WEB_DIR", "web"),
		SettingsPath: getEnv("AUR_STORE_SETTINGS", settings.DefaultPath()),
		RedisAddr:    getEnv("AUR_STORE_REDIS_ADDR", ""),
		CacheTTL:     getEnvAsDuration("AUR_STORE_CACHE_TTL", 5*time.Minute),
		Elevate:      getEnv("AUR_STORE_ELEVATE", operation.DefaultElevate),
		LogLevel:     getEnv("AUR_STORE_LOG_LEVEL", "info"),
	}
}

// BindFlags registers command-line overrides on fs. Flag defaults are the
// values already loaded from the environment, so a flag wins over env.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.IntVarP(&c.Port, "port", "p", c.Port, "HTTP listen port")
	fs.StringVar(&c.Host, "host", c.Host, "HTTP listen address")
	fs.StringVar(&c.AURURL, "aur-url", c.AURURL, "AUR base URL")
	fs.StringVar(&c.WebDir, "web-dir", c.WebDir, "directory with the web frontend")
	fs.StringVar(&c.SettingsPath, "settings", c.SettingsPath, "settings file")
	fs.StringVar(&c.RedisAddr, "redis", c.RedisAddr, "Redis address for caching AUR responses (empty disables)")
	fs.DurationVar(&c.CacheTTL, "cache-ttl", c.CacheTTL, "lifetime of cached AUR responses")
	fs.StringVar(&c.Elevate, "elevate", c.Elevate, "privilege elevation command used for removal")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (debug, info, warn, error)")
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Elevate == "" {
		return fmt.Errorf("elevate command is required")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(name))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", name)
	}
	return level, nil
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsDuration reads an environment variable as a time.Duration or
// returns a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
