package service

import (
	"context"

	"github.com/alitto/pond/v2"
)

// BatchService 用固定大小的工作池并发执行批量校验。
// 每个 URL 是一次独立决策，互不影响；结果按输入顺序返回。
type BatchService struct {
	guard *Guard
	pool  pond.Pool
}

func NewBatchService(guard *Guard, concurrency int) *BatchService {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &BatchService{guard: guard, pool: pond.NewPool(concurrency)}
}

func (s *BatchService) CheckAll(ctx context.Context, urls []string, opts *CheckOptions) []Decision {
	results := make([]Decision, len(urls))
	group := s.pool.NewGroup()
	for i, raw := range urls {
		i, raw := i, raw
		group.Submit(func() {
			results[i] = s.guard.Check(ctx, raw, opts)
		})
	}
	_ = group.Wait()
	return results
}

// Stop 等待在途任务结束并关闭工作池。
func (s *BatchService) Stop() {
	s.pool.StopAndWait()
}
