package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Wei-Shaw/fetchguard/internal/service"
)

// 限流计数器设计说明：
//
// 使用 Redis 简单计数器跟踪每个调用方每分钟的请求数：
// - Key: ratelimit:{clientHash}:{minuteTimestamp}
// - Value: 当前分钟内的请求计数
// - TTL: 120 秒（覆盖当前分钟 + 冗余）
//
// 使用 TxPipeline（MULTI/EXEC）执行 INCR + EXPIRE，保证原子性且兼容 Redis Cluster。
// 通过 rdb.Time() 获取服务端时间，避免多实例时钟不同步。
// 调用方键先过 xxhash，原始 API key 不落入 Redis 键空间。
const (
	rateLimitKeyPrefix = "ratelimit:"
	rateLimitKeyTTL    = 120 * time.Second
)

type rateLimitCache struct {
	rdb *redis.Client
}

func NewRateLimitCache(rdb *redis.Client) service.RateLimitCache {
	return &rateLimitCache{rdb: rdb}
}

// currentMinuteKey 获取当前分钟的完整 Redis key。
// 使用 rdb.Time() 获取 Redis 服务端时间，避免多实例时钟偏差。
func (c *rateLimitCache) currentMinuteKey(ctx context.Context, clientKey string) (string, error) {
	serverTime, err := c.rdb.Time(ctx).Result()
	if err != nil {
		return "", fmt.Errorf("redis TIME: %w", err)
	}
	minuteTS := serverTime.Unix() / 60
	clientHash := strconv.FormatUint(xxhash.Sum64String(clientKey), 16)
	return fmt.Sprintf("%s%s:%d", rateLimitKeyPrefix, clientHash, minuteTS), nil
}

// IncrementRequests 原子递增并返回当前分钟的计数。
// EXPIRE 幂等，每次都设置不影响正确性。
func (c *rateLimitCache) IncrementRequests(ctx context.Context, clientKey string) (int, error) {
	if c.rdb == nil {
		return 0, fmt.Errorf("rate limit increment: redis not configured")
	}
	key, err := c.currentMinuteKey(ctx, clientKey)
	if err != nil {
		return 0, fmt.Errorf("rate limit increment: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rateLimitKeyTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("rate limit increment: %w", err)
	}
	return int(incrCmd.Val()), nil
}
