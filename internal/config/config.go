// Package config 负责加载与校验服务配置。
// 配置来源优先级：环境变量（FETCHGUARD_*） > 配置文件 > 内置默认值。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/wire"
	"github.com/spf13/viper"
)

// ProviderSet is config providers.
var ProviderSet = wire.NewSet(LoadDefault)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Guard     GuardConfig     `mapstructure:"guard"`
	Pins      PinsConfig      `mapstructure:"pins"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// Mode 取 gin 的运行模式：debug / release / test
	Mode string `mapstructure:"mode"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type GuardConfig struct {
	AllowedPorts          []int    `mapstructure:"allowed_ports"`
	AllowPrivateIPs       bool     `mapstructure:"allow_private_ips"`
	AllowLoopback         bool     `mapstructure:"allow_loopback"`
	MaxRedirects          int      `mapstructure:"max_redirects"`
	MaxResponseBytes      int64    `mapstructure:"max_response_bytes"`
	ConnectTimeoutSeconds int      `mapstructure:"connect_timeout_seconds"`
	ReadTimeoutSeconds    int      `mapstructure:"read_timeout_seconds"`
	ResolveTimeoutSeconds int      `mapstructure:"resolve_timeout_seconds"`
	UserAgent             string   `mapstructure:"user_agent"`
	BlockedHostnames      []string `mapstructure:"blocked_hostnames"`
	DNSCacheTTLSeconds    int      `mapstructure:"dns_cache_ttl_seconds"`
	DNSCacheEntries       int64    `mapstructure:"dns_cache_entries"`
	BatchConcurrency      int      `mapstructure:"batch_concurrency"`
	BatchMaxURLs          int      `mapstructure:"batch_max_urls"`
}

type PinsConfig struct {
	File          string `mapstructure:"file"`
	SweepInterval string `mapstructure:"sweep_interval"`
}

type AuthConfig struct {
	APIKeys           []string `mapstructure:"api_keys"`
	JWTSecret         string   `mapstructure:"jwt_secret"`
	TokenTTLMinutes   int      `mapstructure:"token_ttl_minutes"`
	AdminUsername     string   `mapstructure:"admin_username"`
	AdminPasswordHash string   `mapstructure:"admin_password_hash"`
}

type RateLimitConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	PerMinute int  `mapstructure:"per_minute"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NotifyConfig struct {
	WebhookURL      string `mapstructure:"webhook_url"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	RetryCount      int    `mapstructure:"retry_count"`
	DedupTTLSeconds int    `mapstructure:"dedup_ttl_seconds"`
}

type ArchiveConfig struct {
	S3 S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Prefix          string `mapstructure:"prefix"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	PresignTTLHours int    `mapstructure:"presign_ttl_hours"`
}

// LoadDefault 按 FETCHGUARD_CONFIG 指定的路径加载，未指定时走默认搜索路径。
func LoadDefault() (*Config, error) {
	return Load(os.Getenv("FETCHGUARD_CONFIG"))
}

// Load 加载配置。path 非空时必须存在；为空时在工作目录搜索 config.yaml，
// 找不到则仅用默认值与环境变量。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("FETCHGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 14)
	v.SetDefault("log.compress", true)

	v.SetDefault("guard.allowed_ports", []int{80, 443})
	v.SetDefault("guard.allow_private_ips", false)
	v.SetDefault("guard.allow_loopback", false)
	v.SetDefault("guard.max_redirects", 5)
	v.SetDefault("guard.max_response_bytes", 10*1024*1024)
	v.SetDefault("guard.connect_timeout_seconds", 10)
	v.SetDefault("guard.read_timeout_seconds", 30)
	v.SetDefault("guard.resolve_timeout_seconds", 5)
	v.SetDefault("guard.user_agent", "fetchguard/1.0")
	v.SetDefault("guard.blocked_hostnames", []string{})
	v.SetDefault("guard.dns_cache_ttl_seconds", 30)
	v.SetDefault("guard.dns_cache_entries", 4096)
	v.SetDefault("guard.batch_concurrency", 8)
	v.SetDefault("guard.batch_max_urls", 64)

	v.SetDefault("pins.file", "")
	v.SetDefault("pins.sweep_interval", "@every 1m")

	v.SetDefault("auth.api_keys", []string{})
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl_minutes", 60)
	v.SetDefault("auth.admin_username", "")
	v.SetDefault("auth.admin_password_hash", "")

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.per_minute", 120)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.timeout_seconds", 5)
	v.SetDefault("notify.retry_count", 1)
	v.SetDefault("notify.dedup_ttl_seconds", 60)

	v.SetDefault("archive.s3.enabled", false)
	v.SetDefault("archive.s3.endpoint", "")
	v.SetDefault("archive.s3.region", "")
	v.SetDefault("archive.s3.bucket", "")
	v.SetDefault("archive.s3.access_key_id", "")
	v.SetDefault("archive.s3.secret_access_key", "")
	v.SetDefault("archive.s3.prefix", "")
	v.SetDefault("archive.s3.force_path_style", false)
	v.SetDefault("archive.s3.presign_ttl_hours", 24)
}

// Validate 做启动期的硬校验，配置错误直接拒绝启动。
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode %q invalid, expect debug/release/test", c.Server.Mode)
	}
	for _, p := range c.Guard.AllowedPorts {
		if p < 1 || p > 65535 {
			return fmt.Errorf("guard.allowed_ports entry %d out of range", p)
		}
	}
	if c.Guard.MaxRedirects < 0 {
		return fmt.Errorf("guard.max_redirects must be >= 0")
	}
	if c.Guard.MaxResponseBytes <= 0 {
		return fmt.Errorf("guard.max_response_bytes must be > 0")
	}
	if c.Guard.BatchMaxURLs < 1 {
		return fmt.Errorf("guard.batch_max_urls must be >= 1")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.PerMinute < 1 {
			return fmt.Errorf("rate_limit.per_minute must be >= 1 when enabled")
		}
		if c.Redis.Addr == "" {
			return fmt.Errorf("rate_limit requires redis.addr")
		}
	}
	if c.Archive.S3.Enabled && c.Archive.S3.Bucket == "" {
		return fmt.Errorf("archive.s3 requires bucket when enabled")
	}
	return nil
}

// AdminEnabled 返回管理端登录是否可用（三项凭据配置齐全）。
func (c *Config) AdminEnabled() bool {
	return c.Auth.JWTSecret != "" && c.Auth.AdminUsername != "" && c.Auth.AdminPasswordHash != ""
}
