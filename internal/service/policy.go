package service

import (
	"fmt"
	"time"

	"github.com/Wei-Shaw/fetchguard/internal/pkg/ipclass"
	"github.com/Wei-Shaw/fetchguard/internal/pkg/safeurl"
)

// PolicyResult 是策略检查的完整结论。
// 所有规则都会执行并记录（不短路），第一个失败项决定 Reason，
// 完整的 Checks 列表保留给审计。
type PolicyResult struct {
	Passed      bool
	FailedCheck string
	Reason      DenyReason
	Message     string
	Checks      []Check
}

// evaluatePolicy 依次执行 userinfo 禁令、端口白名单、主机名阻断表、
// IP 安全分类四条规则。ip 参数允许无效（QuickCheck 对未解析域名跳过
// IP 规则时传入零值）。
func evaluatePolicy(desc *safeurl.Descriptor, ip ipclass.Result, cfg GuardConfig) PolicyResult {
	res := PolicyResult{Passed: true}

	record := func(name string, passed bool, detail string, began time.Time) {
		res.Checks = append(res.Checks, Check{
			Name:       name,
			Passed:     passed,
			Detail:     detail,
			DurationMs: time.Since(began).Milliseconds(),
		})
	}
	fail := func(name string, reason DenyReason, message string) {
		if res.Passed {
			res.Passed = false
			res.FailedCheck = name
			res.Reason = reason
			res.Message = message
		}
	}

	// 1. userinfo 禁令：服务端代发请求的 URL 携带凭据没有任何正当场景
	if cfg.EnableUserinfoRule {
		began := time.Now()
		if desc.HasUserinfo {
			record(CheckNameUserinfo, false, "credentials present in url", began)
			fail(CheckNameUserinfo, DenyUserinfoPresent, "url carries userinfo credentials")
		} else {
			record(CheckNameUserinfo, true, "", began)
		}
	}

	// 2. 端口白名单：空列表表示显式放行全部端口
	if cfg.EnablePortRule {
		began := time.Now()
		if len(cfg.AllowedPorts) == 0 || portAllowed(desc.EffectivePort, cfg.AllowedPorts) {
			record(CheckNamePort, true, fmt.Sprintf("port %d", desc.EffectivePort), began)
		} else {
			record(CheckNamePort, false, fmt.Sprintf("port %d not in allowlist", desc.EffectivePort), began)
			fail(CheckNamePort, DenyPortNotAllowed,
				fmt.Sprintf("port %d is not in the allowed port list", desc.EffectivePort))
		}
	}

	// 3. 静态主机名阻断表
	if cfg.EnableBlocklistRule {
		began := time.Now()
		if pattern, hit := safeurl.MatchesAny(desc.Hostname, cfg.BlockedHostnames); hit {
			record(CheckNameBlocklist, false, "matched "+pattern, began)
			fail(CheckNameBlocklist, DenyHostnameBlocked,
				fmt.Sprintf("hostname matches blocklist entry %q", pattern))
		} else {
			record(CheckNameBlocklist, true, "", began)
		}
	}

	// 4. IP 安全分类：分类结论本身已包含放行开关语义
	if cfg.EnableIPRule && ip.Valid {
		began := time.Now()
		if ip.Safe {
			record(CheckNameIPSafety, true, ip.Classification.String(), began)
		} else {
			record(CheckNameIPSafety, false,
				fmt.Sprintf("%s: %s", ip.Classification, ip.UnsafeReason), began)
			fail(CheckNameIPSafety, classificationDenyReason(ip),
				fmt.Sprintf("address %s is unsafe: %s", ip.Addr, ip.UnsafeReason))
		}
	}

	return res
}

func portAllowed(port int, allowed []int) bool {
	for _, p := range allowed {
		if p == port {
			return true
		}
	}
	return false
}

// classificationDenyReason 把分类结果映射为稳定错误码。
// IPV4_MAPPED 按内嵌地址的分类映射。
func classificationDenyReason(r ipclass.Result) DenyReason {
	c := r.Classification
	if c == ipclass.IPv4Mapped && r.EmbeddedIPv4 != "" {
		inner := ipclass.Classify(r.EmbeddedIPv4, ipclass.Options{})
		c = inner.Classification
	}
	switch c {
	case ipclass.LoopbackV4, ipclass.LoopbackV6:
		return DenyLoopback
	case ipclass.LinkLocalV4, ipclass.LinkLocalV6:
		return DenyLinkLocal
	case ipclass.PrivateRFC1918, ipclass.PrivateFC:
		return DenyPrivateIP
	case ipclass.CarrierGradeNAT:
		return DenyCarrierGradeNAT
	case ipclass.Reserved, ipclass.Multicast, ipclass.Broadcast:
		return DenyReservedRange
	default:
		// 分类器 fail-closed 的无效地址
		return DenyInternalError
	}
}
