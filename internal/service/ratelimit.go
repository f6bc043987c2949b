package service

import "context"

// RateLimitCache 按调用方键维护分钟级请求计数，由 repository 层实现。
type RateLimitCache interface {
	// IncrementRequests 原子递增并返回当前分钟窗口内的计数。
	IncrementRequests(ctx context.Context, clientKey string) (int, error)
}
