package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"PORT", "AUR_STORE_PORT", "AUR_STORE_HOST", "AUR_STORE_AUR_URL", "AUR_STORE_WEB_DIR",
		"AUR_STORE_SETTINGS", "AUR_STORE_REDIS_ADDR", "AUR_STORE_CACHE_TTL", "AUR_STORE_ELEVATE",
		"AUR_STORE_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	cfg := Load()
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, "https://aur.archlinux.org", cfg.AURURL)
	assert.Equal(t, "web", cfg.WebDir)
	assert.Equal(t, "/tmp/xdg/aur-store/settings.yaml", cfg.SettingsPath)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, "sudo", cfg.Elevate)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "4000")
	t.Setenv("AUR_STORE_HOST", "0.0.0.0")
	t.Setenv("AUR_STORE_CACHE_TTL", "90s")
	t.Setenv("AUR_STORE_ELEVATE", "doas")
	t.Setenv("AUR_STORE_REDIS_ADDR", "localhost:6379")

	cfg := Load()
	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, "0.0.0.0:4000", cfg.Addr())
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)
	assert.Equal(t, "doas", cfg.Elevate)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
}

func TestLoad_PrefixedPortWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "4000")
	t.Setenv("AUR_STORE_PORT", "5000")

	assert.Equal(t, 5000, Load().Port)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUR_STORE_PORT", "not-a-port")
	t.Setenv("AUR_STORE_CACHE_TTL", "forever")

	cfg := Load()
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
}

func TestBindFlags_OverrideEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUR_STORE_PORT", "4000")

	cfg := Load()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(fs)

	require.NoError(t, fs.Parse([]string{"--host", "::1", "--cache-ttl", "1m", "--elevate", "run0", "--log-level", "debug"}))
	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, "[::1]:4000", cfg.Addr())
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, "run0", cfg.Elevate)

	require.NoError(t, fs.Parse([]string{"-p", "8080"}))
	assert.Equal(t, 8080, cfg.Port)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "defaults", modify: func(*Config) {}},
		{name: "zero port", modify: func(c *Config) { c.Port = 0 }, wantErr: true},
		{name: "port too large", modify: func(c *Config) { c.Port = 70000 }, wantErr: true},
		{name: "no elevate", modify: func(c *Config) { c.Elevate = "" }, wantErr: true},
		{name: "bad level", modify: func(c *Config) { c.LogLevel = "loud" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.modify(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}
