// Package dto 定义对外 API 的请求与响应载荷，并负责与 service 类型互转。
package dto

import (
	"encoding/base64"

	"github.com/Wei-Shaw/fetchguard/internal/service"
)

// CheckOptionsDTO 是单次校验的覆盖项。未出现的字段沿用服务端默认配置；
// allowed_ports 出现且为空数组表示放行全部端口。
type CheckOptionsDTO struct {
	AllowedPorts     *[]int `json:"allowed_ports"`
	AllowPrivateIPs  *bool  `json:"allow_private_ips"`
	AllowLoopback    *bool  `json:"allow_loopback"`
	MaxRedirects     *int   `json:"max_redirects"`
	MaxResponseBytes *int64 `json:"max_response_bytes"`
}

// ToService 转换为 service 层的覆盖项，nil 安全。
func (d *CheckOptionsDTO) ToService() *service.CheckOptions {
	if d == nil {
		return nil
	}
	return &service.CheckOptions{
		AllowedPorts:     d.AllowedPorts,
		AllowPrivateIPs:  d.AllowPrivateIPs,
		AllowLoopback:    d.AllowLoopback,
		MaxRedirects:     d.MaxRedirects,
		MaxResponseBytes: d.MaxResponseBytes,
	}
}

// CheckRequest 是 POST /v1/check 与 /v1/quick-check 的请求体。
type CheckRequest struct {
	URL     string           `json:"url" binding:"required"`
	Options *CheckOptionsDTO `json:"options"`
}

// BatchCheckRequest 是 POST /v1/check/batch 的请求体。
type BatchCheckRequest struct {
	URLs    []string         `json:"urls" binding:"required,min=1"`
	Options *CheckOptionsDTO `json:"options"`
}

// BatchCheckResponse 按输入顺序返回每个 URL 的决策。
type BatchCheckResponse struct {
	Results []service.Decision `json:"results"`
}

// FetchRequest 是 POST /v1/fetch 的请求体。
type FetchRequest struct {
	URL     string            `json:"url" binding:"required"`
	Options *CheckOptionsDTO  `json:"options"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	// Body 透传给目标的请求体（UTF-8 文本）。
	Body string `json:"body"`
}

// FetchResponse 是一次受控抓取的响应载荷。
// denied 与 status_code 互斥：守卫拒绝时只有 denied 相关字段。
type FetchResponse struct {
	Denied           *service.Denied       `json:"denied,omitempty"`
	DeniedURL        string                `json:"denied_url,omitempty"`
	StatusCode       int                   `json:"status_code,omitempty"`
	StatusMessage    string                `json:"status_message,omitempty"`
	Headers          map[string][]string   `json:"headers,omitempty"`
	BodyBase64       string                `json:"body_base64,omitempty"`
	Truncated        bool                  `json:"truncated,omitempty"`
	FinalURL         string                `json:"final_url,omitempty"`
	Redirects        []service.RedirectHop `json:"redirects,omitempty"`
	RedirectLimitHit bool                  `json:"redirect_limit_hit,omitempty"`
	Evidence         *service.Evidence     `json:"evidence,omitempty"`
}

// FetchResponseFromOutcome 把 service 层抓取结果映射为 API 载荷。
func FetchResponseFromOutcome(out *service.FetchOutcome) *FetchResponse {
	resp := &FetchResponse{
		Denied:           out.Denied,
		DeniedURL:        out.DeniedURL,
		Redirects:        out.Redirects,
		RedirectLimitHit: out.RedirectLimitHit,
	}
	if out.Response != nil {
		resp.StatusCode = out.Response.StatusCode
		resp.StatusMessage = out.Response.StatusMessage
		resp.Headers = out.Response.Headers
		resp.BodyBase64 = base64.StdEncoding.EncodeToString(out.Response.Body)
		resp.Truncated = out.Response.Truncated
		resp.FinalURL = out.Response.FinalURL
		ev := out.Response.Evidence
		resp.Evidence = &ev
	}
	return resp
}

// ArchiveRequest 是 POST /v1/archive 的请求体。
type ArchiveRequest struct {
	URL     string           `json:"url" binding:"required"`
	Options *CheckOptionsDTO `json:"options"`
}
