package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "release", cfg.Server.Mode)

	require.Equal(t, []int{80, 443}, cfg.Guard.AllowedPorts)
	require.False(t, cfg.Guard.AllowPrivateIPs)
	require.False(t, cfg.Guard.AllowLoopback)
	require.Equal(t, 5, cfg.Guard.MaxRedirects)
	require.Equal(t, int64(10*1024*1024), cfg.Guard.MaxResponseBytes)
	require.Equal(t, "fetchguard/1.0", cfg.Guard.UserAgent)
	require.Equal(t, 64, cfg.Guard.BatchMaxURLs)

	require.False(t, cfg.RateLimit.Enabled)
	require.Equal(t, 120, cfg.RateLimit.PerMinute)
	require.False(t, cfg.Archive.S3.Enabled)
	require.Equal(t, 24, cfg.Archive.S3.PresignTTLHours)
	require.False(t, cfg.AdminEnabled())
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9443
  mode: debug
guard:
  allowed_ports: [443]
  max_redirects: 2
  blocked_hostnames:
    - internal.corp
auth:
  api_keys:
    - sk-test
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9443, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.Mode)
	require.Equal(t, []int{443}, cfg.Guard.AllowedPorts)
	require.Equal(t, 2, cfg.Guard.MaxRedirects)
	require.Equal(t, []string{"internal.corp"}, cfg.Guard.BlockedHostnames)
	require.Equal(t, []string{"sk-test"}, cfg.Auth.APIKeys)

	// 文件没写的键沿用默认值
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, "fetchguard/1.0", cfg.Guard.UserAgent)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 9443\n")
	t.Setenv("FETCHGUARD_SERVER_PORT", "9000")
	t.Setenv("FETCHGUARD_GUARD_USER_AGENT", "fetchguard-edge/2.0")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, "fetchguard-edge/2.0", cfg.Guard.UserAgent)
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "read config")
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfigFile(t, "server: [not a map\n")
	_, err := Load(path)
	require.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080, Mode: "release"},
		Guard: GuardConfig{
			AllowedPorts:     []int{80, 443},
			MaxRedirects:     5,
			MaxResponseBytes: 1 << 20,
			BatchMaxURLs:     64,
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad mode", func(c *Config) { c.Server.Mode = "prod" }, "server.mode"},
		{"bad allowed port", func(c *Config) { c.Guard.AllowedPorts = []int{0} }, "allowed_ports"},
		{"negative redirects", func(c *Config) { c.Guard.MaxRedirects = -1 }, "max_redirects"},
		{"zero response bytes", func(c *Config) { c.Guard.MaxResponseBytes = 0 }, "max_response_bytes"},
		{"zero batch urls", func(c *Config) { c.Guard.BatchMaxURLs = 0 }, "batch_max_urls"},
		{"ratelimit without redis", func(c *Config) {
			c.RateLimit.Enabled = true
			c.RateLimit.PerMinute = 60
		}, "redis.addr"},
		{"ratelimit zero per minute", func(c *Config) {
			c.RateLimit.Enabled = true
			c.Redis.Addr = "localhost:6379"
		}, "per_minute"},
		{"archive without bucket", func(c *Config) { c.Archive.S3.Enabled = true }, "bucket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAdminEnabled(t *testing.T) {
	cfg := validConfig()
	require.False(t, cfg.AdminEnabled())

	cfg.Auth.JWTSecret = "secret"
	cfg.Auth.AdminUsername = "admin"
	require.False(t, cfg.AdminEnabled(), "password hash still missing")

	cfg.Auth.AdminPasswordHash = "$2a$10$hash"
	require.True(t, cfg.AdminEnabled())
}
