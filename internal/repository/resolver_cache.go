package repository

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/Wei-Shaw/fetchguard/internal/service"
)

// resolverCache 用 ristretto 做 DNS 解析结果的进程内短缓存。
// 决策阶段拨号目标已被锁定在校验过的 IP 上，缓存不会放大 rebinding 风险，
// TTL 只需要短到跟得上正经的 DNS 变更。
type resolverCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

func NewResolverCache(maxEntries int64, ttl time.Duration) (service.ResolverCache, error) {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create resolver cache: %w", err)
	}
	return &resolverCache{cache: cache, ttl: ttl}, nil
}

func (c *resolverCache) Get(host string) ([]netip.Addr, bool) {
	value, ok := c.cache.Get(host)
	if !ok {
		return nil, false
	}
	addrs, ok := value.([]netip.Addr)
	return addrs, ok
}

func (c *resolverCache) Set(host string, addrs []netip.Addr) {
	c.cache.SetWithTTL(host, addrs, 1, c.ttl)
}
