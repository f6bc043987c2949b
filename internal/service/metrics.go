package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/Wei-Shaw/fetchguard/internal/pkg/logger"
)

// MetricsSink 接收决策与传输的结果指标。
// 由调用方注入具体实现；默认实现仅走结构化日志。
type MetricsSink interface {
	RecordDecision(source string, outcome string, reason string, elapsed time.Duration)
	RecordTransport(source string, code string, elapsed time.Duration)
}

// LogMetrics 把指标作为结构化日志事件输出，作为未接入指标系统时的默认值。
type LogMetrics struct{}

func NewLogMetrics() *LogMetrics { return &LogMetrics{} }

func (m *LogMetrics) RecordDecision(source, outcome, reason string, elapsed time.Duration) {
	logger.L().Debug("metrics.decision",
		zap.String("source", source),
		zap.String("outcome", outcome),
		zap.String("reason", reason),
		zap.Duration("elapsed", elapsed))
}

func (m *LogMetrics) RecordTransport(source, code string, elapsed time.Duration) {
	logger.L().Debug("metrics.transport",
		zap.String("source", source),
		zap.String("code", code),
		zap.Duration("elapsed", elapsed))
}
