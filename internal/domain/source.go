// Package domain 存放跨层共享的业务常量。
package domain

import "context"

// Source 标识一次决策的发起方，用于指标与审计日志分流。
type Source string

const (
	SourceAPI     Source = "api"
	SourceBatch   Source = "batch"
	SourceFetch   Source = "fetch"
	SourceArchive Source = "archive"
	SourceAdmin   Source = "admin"
)

func (s Source) IsValid() bool {
	switch s {
	case SourceAPI, SourceBatch, SourceFetch, SourceArchive, SourceAdmin:
		return true
	default:
		return false
	}
}

// Normalize 把未知取值归一到 SourceAPI。
func (s Source) Normalize() Source {
	if s.IsValid() {
		return s
	}
	return SourceAPI
}

func (s Source) String() string {
	return string(s.Normalize())
}

type sourceCtxKey struct{}

// WithSource 把发起方写入 ctx，供决策链路读取。
func WithSource(ctx context.Context, s Source) context.Context {
	return context.WithValue(ctx, sourceCtxKey{}, s.Normalize())
}

// SourceFrom 读取 ctx 中的发起方，缺省为 SourceAPI。
func SourceFrom(ctx context.Context) Source {
	if ctx != nil {
		if s, ok := ctx.Value(sourceCtxKey{}).(Source); ok {
			return s
		}
	}
	return SourceAPI
}
