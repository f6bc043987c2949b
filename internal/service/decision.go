package service

import (
	"encoding/json"
	"net/netip"

	"github.com/Wei-Shaw/fetchguard/internal/pkg/pinning"
)

// DenyReason 是拒绝决策的稳定错误码，随决策一并序列化进审计日志。
type DenyReason string

const (
	// 解析阶段
	DenyUnsupportedScheme DenyReason = "UNSUPPORTED_SCHEME"
	DenyInvalidURL        DenyReason = "INVALID_URL"

	// 策略阶段
	DenyUserinfoPresent DenyReason = "USERINFO_PRESENT"
	DenyPortNotAllowed  DenyReason = "PORT_NOT_ALLOWED"
	DenyHostnameBlocked DenyReason = "HOSTNAME_BLOCKED"
	DenyPrivateIP       DenyReason = "PRIVATE_IP"
	DenyLoopback        DenyReason = "LOOPBACK"
	DenyLinkLocal       DenyReason = "LINK_LOCAL"
	DenyReservedRange   DenyReason = "RESERVED_RANGE"
	DenyCarrierGradeNAT DenyReason = "CARRIER_GRADE_NAT"

	// fail-closed 兜底：解析器失败或内部异常一律拒绝
	DenyResolutionFailed DenyReason = "RESOLUTION_FAILED"
	DenyInternalError    DenyReason = "INTERNAL_ERROR"
)

func (r DenyReason) IsValid() bool {
	switch r {
	case DenyUnsupportedScheme, DenyInvalidURL, DenyUserinfoPresent,
		DenyPortNotAllowed, DenyHostnameBlocked, DenyPrivateIP, DenyLoopback,
		DenyLinkLocal, DenyReservedRange, DenyCarrierGradeNAT,
		DenyResolutionFailed, DenyInternalError:
		return true
	default:
		return false
	}
}

func (r DenyReason) String() string {
	return string(r)
}

// 决策过程中各检查项的名称。全部检查都会记录进 Check 列表，
// 第一个失败项决定 Denied.Reason。
const (
	CheckNameParse      = "parse"
	CheckNameUserinfo   = "userinfo"
	CheckNamePort       = "port_allowlist"
	CheckNameBlocklist  = "hostname_blocklist"
	CheckNameEncoding   = "alternate_encoding"
	CheckNameEmbedded   = "embedded_ip"
	CheckNameResolution = "resolution"
	CheckNameIPSafety   = "ip_safety"
	CheckNamePinLookup  = "pin_lookup"
)

// Check 是单项检查的审计记录。
type Check struct {
	Name       string `json:"name"`
	Passed     bool   `json:"passed"`
	Detail     string `json:"detail,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// TransportRequirements 是 Allowed 决策携带的传输参数。
// SecureTransport 只按这里的参数发起连接：
// 拨号目标是 ConnectToIP（防 DNS rebinding），Host 头与 TLS SNI
// 使用 Hostname（保证虚拟主机与证书校验语义不变）。
type TransportRequirements struct {
	OriginalURL      string            `json:"original_url"`
	ConnectToIP      netip.Addr        `json:"connect_to_ip"`
	Port             int               `json:"port"`
	UseTLS           bool              `json:"use_tls"`
	Hostname         string            `json:"hostname"`
	RequestPath      string            `json:"request_path"`
	Headers          map[string]string `json:"headers"`
	MaxResponseBytes int64             `json:"max_response_bytes"`
	ConnectTimeoutMs int64             `json:"connect_timeout_ms"`
	ReadTimeoutMs    int64             `json:"read_timeout_ms"`
	AllowRedirects   bool              `json:"allow_redirects"`
	MaxRedirects     int               `json:"max_redirects"`
	CertificatePins  *pinning.PinSet   `json:"certificate_pins,omitempty"`
	UserAgent        string            `json:"user_agent"`
}

// Audit 是两种决策变体共享的审计字段。
type Audit struct {
	Checks     []Check `json:"checks"`
	DurationMs int64   `json:"duration_ms"`
	RequestID  string  `json:"request_id"`
}

// Decision 是密封的决策联合：只可能是 *Allowed 或 *Denied。
// Allowed 的 Transport 是值字段且由 Guard 完整填充，
// "Allowed 但缺 transport" 在类型上不可表示。
type Decision interface {
	decision()
	Outcome() string
}

// Allowed 表示请求可以发起，并给出必须遵守的传输参数。
type Allowed struct {
	Audit
	Transport TransportRequirements `json:"transport"`
}

// Denied 表示请求被拒绝。Denied 永不携带传输参数。
type Denied struct {
	Audit
	Reason  DenyReason `json:"reason"`
	Message string     `json:"message"`
}

func (*Allowed) decision() {}
func (*Denied) decision()  {}

func (*Allowed) Outcome() string { return "allowed" }
func (*Denied) Outcome() string  { return "denied" }

// MarshalJSON 输出带 status 标签的审计格式。
func (a *Allowed) MarshalJSON() ([]byte, error) {
	type alias Allowed
	return json.Marshal(struct {
		Status string `json:"status"`
		*alias
	}{Status: "allowed", alias: (*alias)(a)})
}

func (d *Denied) MarshalJSON() ([]byte, error) {
	type alias Denied
	return json.Marshal(struct {
		Status string `json:"status"`
		*alias
	}{Status: "denied", alias: (*alias)(d)})
}

// QuickResult 是 QuickCheck 的咨询性结论。
// 它在结构上就没有传输参数，因而不可能被交给 SecureTransport 使用：
// QuickCheck 跳过真实 DNS 解析，放行结论不足以支撑一次网络请求。
type QuickResult struct {
	Allowed    bool       `json:"allowed"`
	Reason     DenyReason `json:"reason,omitempty"`
	Message    string     `json:"message,omitempty"`
	Checks     []Check    `json:"checks"`
	DurationMs int64      `json:"duration_ms"`
	RequestID  string     `json:"request_id"`
}
