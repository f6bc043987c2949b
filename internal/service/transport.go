package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Wei-Shaw/fetchguard/internal/domain"
	"github.com/Wei-Shaw/fetchguard/internal/pkg/logger"
	"github.com/Wei-Shaw/fetchguard/internal/pkg/pinning"
)

// 传输层错误码。决策阶段的问题永远不会以这些错误出现，
// 它们只描述一个已放行请求的运行期失败。
const (
	TransportInvalidDecision  = "INVALID_DECISION"
	TransportConnectionFailed = "CONNECTION_FAILED"
	TransportConnectTimeout   = "CONNECTION_TIMEOUT"
	TransportReadTimeout      = "READ_TIMEOUT"
	TransportTLSError         = "TLS_ERROR"
	TransportPinMismatch      = "CERTIFICATE_PIN_MISMATCH"
	TransportTooLarge         = "RESPONSE_TOO_LARGE"
	TransportProtocolError    = "PROTOCOL_ERROR"
	TransportAborted          = "ABORTED"
)

// TransportError 是传输阶段的类型化错误，Code 取上面的常量。
type TransportError struct {
	Code    string
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Evidence 记录一次真实请求的连接取证，随响应返回并进入审计日志。
type Evidence struct {
	ConnectedIP      string   `json:"connected_ip"`
	ConnectedPort    int      `json:"connected_port"`
	TLSVersion       string   `json:"tls_version,omitempty"`
	CipherSuite      string   `json:"cipher_suite,omitempty"`
	CertificateChain []string `json:"certificate_chain,omitempty"`
	MatchedPin       string   `json:"matched_pin,omitempty"`
	PinsVerified     bool     `json:"pins_verified"`
	PinMismatch      string   `json:"pin_mismatch,omitempty"`
	ConnectMs        int64    `json:"connect_ms"`
	TLSHandshakeMs   int64    `json:"tls_handshake_ms,omitempty"`
	TotalMs          int64    `json:"total_ms"`
}

// TransportResponse 是一次放行请求的响应信封。Body 可能被截断，
// 截断时 Truncated=true，超出上限的字节直接丢弃。
type TransportResponse struct {
	StatusCode    int         `json:"status_code"`
	StatusMessage string      `json:"status_message"`
	Headers       http.Header `json:"headers"`
	Body          []byte      `json:"-"`
	Truncated     bool        `json:"truncated"`
	FinalURL      string      `json:"final_url"`
	Evidence      Evidence    `json:"evidence"`
}

// RequestOptions 允许调用方在放行决策之内微调请求本身。
// Host 头不可覆盖，始终使用决策里锁定的主机名。
type RequestOptions struct {
	Method  string
	Headers map[string]string
	Body    []byte
}

// SecureTransport 按 Allowed 决策执行真实 HTTP 请求：
// 套接字永远拨向决策锁定的 IP，Host 头与 TLS SNI 保留原始主机名，
// 这样二次解析无论返回什么地址都影响不到实际连接目标。
type SecureTransport struct {
	metrics MetricsSink
	// rootCAs 为 nil 时使用系统根证书，测试通过它注入自签 CA
	rootCAs *x509.CertPool
}

func NewSecureTransport(metrics MetricsSink) *SecureTransport {
	return &SecureTransport{metrics: metrics}
}

// Request 执行请求。传入非 Allowed 决策直接拒绝（INVALID_DECISION），
// 自动重定向被禁用，3xx 原样返回给上层的重定向守卫。
func (t *SecureTransport) Request(ctx context.Context, dec Decision, opts *RequestOptions) (*TransportResponse, error) {
	began := time.Now()
	allowed, ok := dec.(*Allowed)
	if !ok || allowed == nil {
		return nil, t.fail(ctx, began, &TransportError{
			Code:    TransportInvalidDecision,
			Message: "transport requires an allowed decision",
		})
	}
	tr := allowed.Transport
	if !tr.ConnectToIP.IsValid() || tr.Port <= 0 || tr.Port > 65535 {
		return nil, t.fail(ctx, began, &TransportError{
			Code:    TransportInvalidDecision,
			Message: "decision carries no dialable address",
		})
	}

	ev := &Evidence{
		ConnectedIP:   tr.ConnectToIP.String(),
		ConnectedPort: tr.Port,
	}

	req, err := t.buildRequest(ctx, &tr, opts)
	if err != nil {
		return nil, t.fail(ctx, began, &TransportError{
			Code:    TransportProtocolError,
			Message: "building request failed",
			Err:     err,
		})
	}

	client := &http.Client{
		Transport: t.buildHTTPTransport(&tr, ev),
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, t.fail(ctx, began, classifyRequestError(ctx, err))
	}
	defer resp.Body.Close()

	// Content-Length 声明就超限的响应不读取正文，直接报错
	if tr.MaxResponseBytes > 0 && resp.ContentLength > tr.MaxResponseBytes {
		return nil, t.fail(ctx, began, &TransportError{
			Code:    TransportTooLarge,
			Message: fmt.Sprintf("declared content length %d exceeds limit %d", resp.ContentLength, tr.MaxResponseBytes),
		})
	}

	body, truncated, err := readBounded(resp.Body, tr.MaxResponseBytes)
	if err != nil {
		return nil, t.fail(ctx, began, classifyReadError(ctx, err))
	}

	ev.TotalMs = time.Since(began).Milliseconds()
	out := &TransportResponse{
		StatusCode:    resp.StatusCode,
		StatusMessage: statusMessage(resp),
		Headers:       filterResponseHeaders(resp.Header),
		Body:          body,
		Truncated:     truncated,
		FinalURL:      tr.OriginalURL,
		Evidence:      *ev,
	}
	t.metrics.RecordTransport(domain.SourceFrom(ctx).String(), "ok", time.Since(began))
	logger.L().Debug("transport.request_ok",
		zap.String("connect_ip", ev.ConnectedIP),
		zap.Int("status", out.StatusCode),
		zap.Bool("truncated", truncated),
		zap.Int64("total_ms", ev.TotalMs))
	return out, nil
}

func (t *SecureTransport) fail(ctx context.Context, began time.Time, terr *TransportError) *TransportError {
	t.metrics.RecordTransport(domain.SourceFrom(ctx).String(), terr.Code, time.Since(began))
	logger.L().Warn("transport.request_failed",
		zap.String("code", terr.Code),
		zap.String("message", terr.Message),
		zap.Error(terr.Err))
	return terr
}

func (t *SecureTransport) buildRequest(ctx context.Context, tr *TransportRequirements, opts *RequestOptions) (*http.Request, error) {
	method := http.MethodGet
	var body io.Reader
	if opts != nil {
		if opts.Method != "" {
			method = opts.Method
		}
		if len(opts.Body) > 0 {
			body = bytes.NewReader(opts.Body)
		}
	}

	scheme := "http"
	if tr.UseTLS {
		scheme = "https"
	}
	rawURL := scheme + "://" + urlHost(tr) + tr.RequestPath
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}

	for k, v := range tr.Headers {
		if strings.EqualFold(k, "Host") {
			req.Host = v
			continue
		}
		req.Header.Set(k, v)
	}
	if opts != nil {
		for k, v := range opts.Headers {
			if strings.EqualFold(k, "Host") {
				continue
			}
			req.Header.Set(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" && tr.UserAgent != "" {
		req.Header.Set("User-Agent", tr.UserAgent)
	}
	return req, nil
}

// buildHTTPTransport 构造单次使用的底层传输。
// DialContext 无视 net/http 给的地址参数，永远拨决策锁定的 IP:port。
func (t *SecureTransport) buildHTTPTransport(tr *TransportRequirements, ev *Evidence) *http.Transport {
	dialAddr := netip.AddrPortFrom(tr.ConnectToIP, uint16(tr.Port)).String()
	dialer := &net.Dialer{Timeout: time.Duration(tr.ConnectTimeoutMs) * time.Millisecond}
	readTimeout := time.Duration(tr.ReadTimeoutMs) * time.Millisecond

	ht := &http.Transport{
		DisableKeepAlives:      true,
		ForceAttemptHTTP2:      false,
		MaxResponseHeaderBytes: 1 << 20,
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			began := time.Now()
			conn, err := dialer.DialContext(ctx, network, dialAddr)
			ev.ConnectMs = time.Since(began).Milliseconds()
			if err != nil {
				return nil, &dialFailure{err: err}
			}
			return newDeadlineConn(conn, readTimeout), nil
		},
	}
	if tr.UseTLS {
		ht.DialTLSContext = func(ctx context.Context, network, _ string) (net.Conn, error) {
			began := time.Now()
			raw, err := dialer.DialContext(ctx, network, dialAddr)
			ev.ConnectMs = time.Since(began).Milliseconds()
			if err != nil {
				return nil, &dialFailure{err: err}
			}
			tlsBegan := time.Now()
			conn := tls.Client(newDeadlineConn(raw, readTimeout), &tls.Config{
				ServerName: tr.Hostname,
				MinVersion: tls.VersionTLS12,
				RootCAs:    t.rootCAs,
			})
			if err := conn.HandshakeContext(ctx); err != nil {
				raw.Close()
				return nil, &handshakeFailure{err: err}
			}
			state := conn.ConnectionState()
			ev.TLSHandshakeMs = time.Since(tlsBegan).Milliseconds()
			ev.TLSVersion = tls.VersionName(state.Version)
			ev.CipherSuite = tls.CipherSuiteName(state.CipherSuite)
			for _, cert := range state.PeerCertificates {
				ev.CertificateChain = append(ev.CertificateChain, pinning.FingerprintCert(cert))
			}

			// 握手完成、发出任何请求字节之前校验证书 pin
			if tr.CertificatePins != nil {
				matched, ok := pinning.VerifyChain(state.PeerCertificates, tr.CertificatePins)
				if ok {
					ev.PinsVerified = true
					ev.MatchedPin = matched
				} else {
					detail := fmt.Sprintf("no configured pin matches any of %d chain certificates", len(state.PeerCertificates))
					if tr.CertificatePins.Enforce {
						conn.Close()
						return nil, &pinFailure{detail: detail}
					}
					ev.PinMismatch = detail
					logger.L().Warn("transport.pin_mismatch_observed",
						zap.String("hostname", tr.Hostname),
						zap.String("detail", detail))
				}
			}
			return conn, nil
		}
	}
	return ht
}

// urlHost 生成请求 URL 的 host 部分：IPv6 加括号，默认端口省略。
func urlHost(tr *TransportRequirements) string {
	host := tr.Hostname
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	defaultPort := 80
	if tr.UseTLS {
		defaultPort = 443
	}
	if tr.Port != defaultPort {
		host += ":" + strconv.Itoa(tr.Port)
	}
	return host
}

// readBounded 读取至多 limit 字节，超出部分丢弃并标记截断。
// limit<=0 表示不设上限。
func readBounded(r io.Reader, limit int64) ([]byte, bool, error) {
	if limit <= 0 {
		body, err := io.ReadAll(r)
		return body, false, err
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(body)) > limit {
		return body[:limit], true, nil
	}
	return body, false, nil
}

func statusMessage(resp *http.Response) string {
	msg := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return msg
}

// classifyRequestError 把 client.Do 的错误折叠成类型化传输错误。
// 判定顺序：pin 失配 > TLS 失败 > 调用方取消 > 拨号失败 > 读超时 > 协议错误。
func classifyRequestError(ctx context.Context, err error) *TransportError {
	var pf *pinFailure
	if errors.As(err, &pf) {
		return &TransportError{Code: TransportPinMismatch, Message: pf.detail}
	}
	var hf *handshakeFailure
	if errors.As(err, &hf) {
		return &TransportError{Code: TransportTLSError, Message: "tls handshake failed", Err: hf.err}
	}
	if ctx.Err() != nil {
		return &TransportError{Code: TransportAborted, Message: "request aborted by caller", Err: ctx.Err()}
	}
	var df *dialFailure
	if errors.As(err, &df) {
		code := TransportConnectionFailed
		msg := "connection failed"
		var nerr net.Error
		if errors.As(df.err, &nerr) && nerr.Timeout() {
			code = TransportConnectTimeout
			msg = "connection timed out"
		}
		return &TransportError{Code: code, Message: msg, Err: df.err}
	}
	if isDeadline(err) {
		return &TransportError{Code: TransportReadTimeout, Message: "reading response timed out", Err: err}
	}
	return &TransportError{Code: TransportProtocolError, Message: "request failed", Err: err}
}

func classifyReadError(ctx context.Context, err error) *TransportError {
	if ctx.Err() != nil {
		return &TransportError{Code: TransportAborted, Message: "request aborted by caller", Err: ctx.Err()}
	}
	if isDeadline(err) {
		return &TransportError{Code: TransportReadTimeout, Message: "reading response body timed out", Err: err}
	}
	return &TransportError{Code: TransportProtocolError, Message: "reading response body failed", Err: err}
}

func isDeadline(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

type dialFailure struct{ err error }

func (e *dialFailure) Error() string { return "dial: " + e.err.Error() }
func (e *dialFailure) Unwrap() error { return e.err }

type handshakeFailure struct{ err error }

func (e *handshakeFailure) Error() string { return "tls handshake: " + e.err.Error() }
func (e *handshakeFailure) Unwrap() error { return e.err }

type pinFailure struct{ detail string }

func (e *pinFailure) Error() string { return "certificate pin mismatch: " + e.detail }

// deadlineConn 每次 Read 前刷新读截止时间，把"单次读等待"限制在 timeout 内。
// 慢滴速响应由此被兜住，而不是只在连接建立时限时。
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func newDeadlineConn(c net.Conn, timeout time.Duration) net.Conn {
	if timeout <= 0 {
		return c
	}
	return &deadlineConn{Conn: c, timeout: timeout}
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}
