package service

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/Wei-Shaw/fetchguard/internal/pkg/logger"
	"github.com/Wei-Shaw/fetchguard/internal/util/logredact"
)

// RedirectHop 记录一次被跟随的重定向。
type RedirectHop struct {
	FromURL    string `json:"from_url"`
	ToURL      string `json:"to_url"`
	StatusCode int    `json:"status_code"`
}

// FetchOutcome 是一次受控抓取的结果。Denied 与 Response 恰好一个非 nil：
// 任何一跳被拒绝时整个抓取以该拒绝决策收场，不存在"部分成功"。
type FetchOutcome struct {
	Denied           *Denied            `json:"denied,omitempty"`
	DeniedURL        string             `json:"denied_url,omitempty"`
	Response         *TransportResponse `json:"response,omitempty"`
	Redirects        []RedirectHop      `json:"redirects,omitempty"`
	RedirectLimitHit bool               `json:"redirect_limit_hit,omitempty"`
}

// FetchService 是面向调用方的受控抓取入口：每个 URL（包括每一跳重定向）
// 都先过决策引擎，放行后才交给安全传输执行。重定向严格串行，
// 跳数超限时返回最后一个 3xx 响应而不是继续跟随。
type FetchService struct {
	guard     *Guard
	transport *SecureTransport
}

func NewFetchService(guard *Guard, transport *SecureTransport) *FetchService {
	return &FetchService{guard: guard, transport: transport}
}

// Fetch 抓取 rawURL。返回的 error 只会是 *TransportError（运行期失败）；
// 安全拒绝不报错，体现在 FetchOutcome.Denied 上。
func (s *FetchService) Fetch(ctx context.Context, rawURL string, opts *CheckOptions, reqOpts *RequestOptions) (*FetchOutcome, error) {
	out := &FetchOutcome{}
	current := rawURL

	for {
		dec := s.guard.Check(ctx, current, opts)
		if den, ok := dec.(*Denied); ok {
			out.Denied = den
			out.DeniedURL = current
			return out, nil
		}
		allowed := dec.(*Allowed)

		resp, err := s.transport.Request(ctx, allowed, reqOpts)
		if err != nil {
			return nil, err
		}
		resp.FinalURL = current

		if !isRedirectStatus(resp.StatusCode) {
			out.Response = resp
			return out, nil
		}
		next, ok := nextLocation(current, resp)
		if !ok {
			// 缺失或无法解析的 Location 不跟随，原样返回 3xx
			out.Response = resp
			return out, nil
		}
		if !allowed.Transport.AllowRedirects || len(out.Redirects) >= allowed.Transport.MaxRedirects {
			out.Response = resp
			out.RedirectLimitHit = allowed.Transport.AllowRedirects
			return out, nil
		}

		out.Redirects = append(out.Redirects, RedirectHop{
			FromURL:    current,
			ToURL:      next,
			StatusCode: resp.StatusCode,
		})
		logger.L().Debug("fetch.redirect_followed",
			zap.Int("hop", len(out.Redirects)),
			zap.Int("status", resp.StatusCode),
			zap.String("to", logredact.RedactURL(next)))
		reqOpts = redirectRequestOptions(reqOpts, resp.StatusCode)
		current = next
	}
}

func isRedirectStatus(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// nextLocation 把 Location 头解析成下一跳的绝对 URL，
// 相对地址基于当前 URL 补全。
func nextLocation(current string, resp *TransportResponse) (string, bool) {
	loc := resp.Headers.Get("Location")
	if loc == "" {
		return "", false
	}
	base, err := url.Parse(current)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(loc)
	if err != nil {
		return "", false
	}
	return base.ResolveReference(ref).String(), true
}

// redirectRequestOptions 按标准语义调整下一跳请求：
// 301/302/303 降级为 GET 并丢弃请求体，307/308 保留原方法与请求体。
func redirectRequestOptions(reqOpts *RequestOptions, status int) *RequestOptions {
	if status == http.StatusTemporaryRedirect || status == http.StatusPermanentRedirect {
		return reqOpts
	}
	if reqOpts == nil {
		return nil
	}
	return &RequestOptions{Method: http.MethodGet, Headers: reqOpts.Headers}
}
