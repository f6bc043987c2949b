package repository

import (
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"

	"github.com/Wei-Shaw/fetchguard/internal/config"
	"github.com/Wei-Shaw/fetchguard/internal/service"
)

// ProviderSet is repository providers.
var ProviderSet = wire.NewSet(
	NewRedisClient,
	ProvideMemoryPinStore,
	wire.Bind(new(service.PinStore), new(*MemoryPinStore)),
	ProvideResolverCache,
	NewRateLimitCache,
)

// NewRedisClient 构建 redis 客户端。未配置地址时返回 nil，
// 依赖方各自容忍：限流中间件视为关闭，清理流程跳过。
func NewRedisClient(cfg *config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideMemoryPinStore 构建 pin 存储：配置了种子文件就加载，并启动过期清扫。
func ProvideMemoryPinStore(cfg *config.Config) (*MemoryPinStore, error) {
	store := NewMemoryPinStore()
	if cfg.Pins.File != "" {
		if err := store.LoadFromFile(cfg.Pins.File); err != nil {
			return nil, err
		}
	}
	if err := store.StartSweeper(cfg.Pins.SweepInterval); err != nil {
		return nil, err
	}
	return store, nil
}

// ProvideResolverCache 按配置的容量与 TTL 构建 DNS 结果缓存。
func ProvideResolverCache(cfg *config.Config) (service.ResolverCache, error) {
	ttl := time.Duration(cfg.Guard.DNSCacheTTLSeconds) * time.Second
	return NewResolverCache(cfg.Guard.DNSCacheEntries, ttl)
}
