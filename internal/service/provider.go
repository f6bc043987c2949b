package service

import (
	"time"

	"github.com/google/wire"

	"github.com/Wei-Shaw/fetchguard/internal/config"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(
	ProvideGuardConfig,
	ProvideResolver,
	NewLogMetrics,
	wire.Bind(new(MetricsSink), new(*LogMetrics)),
	ProvideWebhookNotifier,
	wire.Bind(new(DenialObserver), new(*WebhookNotifier)),
	NewGuard,
	NewSecureTransport,
	NewFetchService,
	ProvideBatchService,
	ProvideArchiveService,
)

// ProvideGuardConfig 把文件配置折叠进出厂默认值。
// allowed_ports 留空沿用默认，放行全部端口用单次 CheckOptions 覆盖表达。
func ProvideGuardConfig(cfg *config.Config) GuardConfig {
	gc := DefaultGuardConfig()
	if len(cfg.Guard.AllowedPorts) > 0 {
		gc.AllowedPorts = append([]int(nil), cfg.Guard.AllowedPorts...)
	}
	gc.AllowPrivateIPs = cfg.Guard.AllowPrivateIPs
	gc.AllowLoopback = cfg.Guard.AllowLoopback
	gc.MaxRedirects = cfg.Guard.MaxRedirects
	if cfg.Guard.MaxResponseBytes > 0 {
		gc.MaxResponseBytes = cfg.Guard.MaxResponseBytes
	}
	if cfg.Guard.ConnectTimeoutSeconds > 0 {
		gc.ConnectTimeout = time.Duration(cfg.Guard.ConnectTimeoutSeconds) * time.Second
	}
	if cfg.Guard.ReadTimeoutSeconds > 0 {
		gc.ReadTimeout = time.Duration(cfg.Guard.ReadTimeoutSeconds) * time.Second
	}
	if cfg.Guard.ResolveTimeoutSeconds > 0 {
		gc.ResolveTimeout = time.Duration(cfg.Guard.ResolveTimeoutSeconds) * time.Second
	}
	if cfg.Guard.UserAgent != "" {
		gc.UserAgent = cfg.Guard.UserAgent
	}
	gc.BlockedHostnames = append(gc.BlockedHostnames, cfg.Guard.BlockedHostnames...)
	return gc
}

// ProvideResolver 在真实 DNS 解析外面套缓存层。
func ProvideResolver(cfg *config.Config, cache ResolverCache) Resolver {
	inner := NewNetResolver(time.Duration(cfg.Guard.ResolveTimeoutSeconds) * time.Second)
	return NewCachingResolver(inner, cache)
}

// ProvideWebhookNotifier 构建拒绝事件通知器。webhook_url 为空时等于关闭。
func ProvideWebhookNotifier(cfg *config.Config) *WebhookNotifier {
	return NewWebhookNotifier(NotifyConfig{
		WebhookURL: cfg.Notify.WebhookURL,
		Timeout:    time.Duration(cfg.Notify.TimeoutSeconds) * time.Second,
		RetryCount: cfg.Notify.RetryCount,
		DedupTTL:   time.Duration(cfg.Notify.DedupTTLSeconds) * time.Second,
	})
}

// ProvideBatchService 按配置的并发度构建批量校验服务。
func ProvideBatchService(cfg *config.Config, guard *Guard) *BatchService {
	return NewBatchService(guard, cfg.Guard.BatchConcurrency)
}

// ProvideArchiveService 构建归档服务。
func ProvideArchiveService(cfg *config.Config, fetch *FetchService) *ArchiveService {
	s3cfg := cfg.Archive.S3
	return NewArchiveService(ArchiveConfig{
		Enabled:         s3cfg.Enabled,
		Endpoint:        s3cfg.Endpoint,
		Region:          s3cfg.Region,
		Bucket:          s3cfg.Bucket,
		AccessKeyID:     s3cfg.AccessKeyID,
		SecretAccessKey: s3cfg.SecretAccessKey,
		Prefix:          s3cfg.Prefix,
		ForcePathStyle:  s3cfg.ForcePathStyle,
		PresignTTL:      time.Duration(s3cfg.PresignTTLHours) * time.Hour,
	}, fetch)
}
