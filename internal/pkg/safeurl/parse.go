// Package safeurl 提供不可信 URL 的统一解析与规范化（fail-fast）。
//
// 所有出站抓取入口必须通过本包的 Parse 函数获得 Descriptor，
// 直接使用 url.Parse 处理不可信 URL 是被禁止的。
// 错误消息不携带原始 URL，防止 userinfo 凭据泄漏到日志。
package safeurl

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// 解析阶段的两类失败。上层将其编码进 Denied 决策，从不抛出。
var (
	ErrInvalidURL        = errors.New("invalid url")
	ErrUnsupportedScheme = errors.New("unsupported scheme")
)

// allowedSchemes 出站协议白名单。ftp/file/gopher 等协议一律拒绝。
var allowedSchemes = map[string]int{
	"http":  80,
	"https": 443,
}

// IPKind 标识 host 位置的 IP 字面量类型。
type IPKind string

const (
	IPKindNone IPKind = ""
	IPKindV4   IPKind = "ipv4"
	IPKindV6   IPKind = "ipv6"
)

// Descriptor 是一次解析产出的不可变 URL 描述。
// 每次校验（含每个重定向跳）都重新解析，绝不跨请求复用。
type Descriptor struct {
	Raw           string
	Scheme        string
	Hostname      string
	Port          int // 0 表示未显式指定
	EffectivePort int
	Path          string
	RawQuery      string
	Username      string
	Password      string
	HasUserinfo   bool
	IsIPLiteral   bool
	IPKind        IPKind
	IsIDN         bool
}

// HostPort 返回 "hostname:effectivePort" 形式的连接目标。
func (d *Descriptor) HostPort() string {
	return joinHostPort(d.Hostname, d.EffectivePort)
}

// RequestPath 返回请求行使用的 path?query。
func (d *Descriptor) RequestPath() string {
	p := d.Path
	if p == "" {
		p = "/"
	}
	if d.RawQuery != "" {
		p += "?" + d.RawQuery
	}
	return p
}

// Parse 解析并规范化一个不可信 URL。
//
// 规则:
//   - scheme 仅允许 http/https，其余返回 ErrUnsupportedScheme
//   - 语法错误、缺失 host、端口越界返回 ErrInvalidURL
//   - userinfo 原样提取不做校验，其存在与否由策略层裁决
//   - hostname 统一小写、去掉尾部 "."，非 ASCII 域名经 IDNA 转为
//     punycode 并置 IsIDN
//   - host 为 IPv4 点分四段或方括号 IPv6 时置 IsIPLiteral/IPKind
func Parse(raw string) (*Descriptor, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidURL)
	}

	u, err := parseStd(trimmed)
	if err != nil {
		return nil, err
	}

	scheme := strings.ToLower(u.Scheme)
	if _, ok := allowedSchemes[scheme]; !ok {
		if scheme == "" {
			return nil, fmt.Errorf("%w: missing scheme", ErrInvalidURL)
		}
		return nil, fmt.Errorf("%w: %q (allowed: http, https)", ErrUnsupportedScheme, scheme)
	}

	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	port := 0
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return nil, fmt.Errorf("%w: port out of range", ErrInvalidURL)
		}
		port = n
	}
	effectivePort := port
	if effectivePort == 0 {
		effectivePort = allowedSchemes[scheme]
	}

	d := &Descriptor{
		Raw:           trimmed,
		Scheme:        scheme,
		Port:          port,
		EffectivePort: effectivePort,
		Path:          u.EscapedPath(),
		RawQuery:      u.RawQuery,
	}

	if u.User != nil {
		d.HasUserinfo = true
		d.Username = u.User.Username()
		d.Password, _ = u.User.Password()
	}

	// IP 字面量优先于域名规范化判断。
	// url.Parse 已剥离 IPv6 的方括号，这里拿到的是裸地址。
	switch {
	case IsIPv4(host):
		d.Hostname = host
		d.IsIPLiteral = true
		d.IPKind = IPKindV4
	case IsIPv6(host):
		d.Hostname = strings.ToLower(host)
		d.IsIPLiteral = true
		d.IPKind = IPKindV6
	default:
		normalized, isIDN, err := NormalizeHostname(host)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed hostname", ErrInvalidURL)
		}
		d.Hostname = normalized
		d.IsIDN = isIDN
	}

	return d, nil
}

// NormalizeHostname 小写化、去尾点，并将非 ASCII 域名转为 punycode。
// 返回 (规范化结果, 是否为 IDN, error)。
func NormalizeHostname(host string) (string, bool, error) {
	h := strings.ToLower(strings.TrimSpace(host))
	h = strings.TrimSuffix(h, ".")
	if h == "" {
		return "", false, fmt.Errorf("empty hostname")
	}

	isIDN := false
	if !isASCII(h) {
		isIDN = true
		ascii, err := idna.Lookup.ToASCII(h)
		if err != nil {
			return "", true, fmt.Errorf("idna conversion: %v", err)
		}
		h = ascii
	} else if strings.HasPrefix(h, "xn--") || strings.Contains(h, ".xn--") {
		// 已是 punycode 形式，同样按 IDN 标记
		isIDN = true
	}
	return h, isIDN, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}

func joinHostPort(host string, port int) string {
	if strings.Contains(host, ":") {
		return "[" + host + "]:" + strconv.Itoa(port)
	}
	return host + ":" + strconv.Itoa(port)
}

// IsIPv6 判断 s 是否为合法 IPv6 字面量（含 IPv4-mapped 形式，允许 %zone）。
func IsIPv6(s string) bool {
	if !strings.Contains(s, ":") {
		return false
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	return addr.Is6()
}

// parseStd 封装 url.Parse，错误消息只保留底层原因，不回显原始输入。
func parseStd(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidURL, uerr.Err)
		}
		return nil, fmt.Errorf("%w: malformed syntax", ErrInvalidURL)
	}
	return u, nil
}
