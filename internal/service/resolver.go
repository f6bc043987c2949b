package service

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"golang.org/x/sync/singleflight"
)

// Resolver 把主机名解析为候选地址列表。
// 实现可能返回多个地址、可能失败；Guard 会对每个候选做分类，
// 任何一个不安全即整体拒绝。
type Resolver interface {
	LookupIP(ctx context.Context, host string) ([]netip.Addr, error)
}

// NetResolver 基于平台解析器实现 Resolver，带独立的解析超时。
type NetResolver struct {
	resolver *net.Resolver
	timeout  time.Duration
}

func NewNetResolver(timeout time.Duration) *NetResolver {
	return &NetResolver{resolver: net.DefaultResolver, timeout: timeout}
}

func (r *NetResolver) LookupIP(ctx context.Context, host string) ([]netip.Addr, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	addrs, err := r.resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("resolve %s: no addresses", host)
	}
	return addrs, nil
}

// ResolverCache 是解析结果的本地缓存接口，由 repository 层提供实现。
type ResolverCache interface {
	Get(host string) ([]netip.Addr, bool)
	Set(host string, addrs []netip.Addr)
}

// CachingResolver 给内层 Resolver 叠加本地缓存与 singleflight 合并：
// 同一主机名的并发解析只会发出一次真实查询。
type CachingResolver struct {
	inner Resolver
	cache ResolverCache
	group singleflight.Group
}

func NewCachingResolver(inner Resolver, cache ResolverCache) *CachingResolver {
	return &CachingResolver{inner: inner, cache: cache}
}

func (c *CachingResolver) LookupIP(ctx context.Context, host string) ([]netip.Addr, error) {
	if addrs, ok := c.cache.Get(host); ok {
		return addrs, nil
	}
	v, err, _ := c.group.Do(host, func() (interface{}, error) {
		if addrs, ok := c.cache.Get(host); ok {
			return addrs, nil
		}
		addrs, err := c.inner.LookupIP(ctx, host)
		if err != nil {
			return nil, err
		}
		c.cache.Set(host, addrs)
		return addrs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]netip.Addr), nil
}
