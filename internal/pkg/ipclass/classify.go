// Package ipclass 对 IPv4/IPv6 地址做安全分类。
//
// 分类结果是 SSRF 防御的权威依据：无论解析器返回什么、域名长什么样，
// 最终拨号的那个 IP 必须在这里得到 Safe 判定。
// 保留段/组播/广播没有任何合法放行场景，不受 opt-in 开关影响；
// 回环与私网仅在显式 AllowLoopback/AllowPrivate 时放行（内部工具用途）。
package ipclass

import (
	"net/netip"
	"strings"
)

// Classification 是地址类别枚举，取值与审计日志序列化格式一致。
type Classification string

const (
	Public          Classification = "PUBLIC"
	LoopbackV4      Classification = "LOOPBACK_V4"
	LoopbackV6      Classification = "LOOPBACK_V6"
	LinkLocalV4     Classification = "LINK_LOCAL_V4"
	LinkLocalV6     Classification = "LINK_LOCAL_V6"
	PrivateRFC1918  Classification = "PRIVATE_RFC1918"
	PrivateFC       Classification = "PRIVATE_FC"
	CarrierGradeNAT Classification = "CARRIER_GRADE_NAT"
	Reserved        Classification = "RESERVED"
	Multicast       Classification = "MULTICAST"
	Broadcast       Classification = "BROADCAST"
	IPv4Mapped      Classification = "IPV4_MAPPED"
)

func (c Classification) IsValid() bool {
	switch c {
	case Public, LoopbackV4, LoopbackV6, LinkLocalV4, LinkLocalV6,
		PrivateRFC1918, PrivateFC, CarrierGradeNAT, Reserved, Multicast,
		Broadcast, IPv4Mapped:
		return true
	default:
		return false
	}
}

func (c Classification) String() string {
	return string(c)
}

// Options 控制回环/私网的显式放行。保留/组播/广播不受影响。
type Options struct {
	AllowLoopback bool
	AllowPrivate  bool
}

// Result 是一次分类的完整结论。
// UnsafeReason 仅在 Safe=false 时有值；EmbeddedIPv4 仅在 IPV4_MAPPED 时有值。
type Result struct {
	Valid          bool
	Addr           netip.Addr
	Safe           bool
	Classification Classification
	UnsafeReason   string
	EmbeddedIPv4   string
}

// rfc1918 等前缀表在包加载时编译完成，非法字面量直接 panic。
var (
	rfc1918 = mustPrefixes(
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
	)
	loopbackV4  = netip.MustParsePrefix("127.0.0.0/8")
	linkLocalV4 = netip.MustParsePrefix("169.254.0.0/16")
	cgnat       = netip.MustParsePrefix("100.64.0.0/10")
	multicastV4 = netip.MustParsePrefix("224.0.0.0/4")

	// IANA 保留段：未指定、IETF 协议段、TEST-NET、基准测试段、
	// 6to4 中继任播（已废弃）、Class E
	reservedV4 = mustPrefixes(
		"0.0.0.0/8",
		"192.0.0.0/24",
		"192.0.2.0/24",
		"192.88.99.0/24",
		"198.18.0.0/15",
		"198.51.100.0/24",
		"203.0.113.0/24",
		"240.0.0.0/4",
	)

	broadcastV4 = netip.MustParseAddr("255.255.255.255")

	linkLocalV6   = netip.MustParsePrefix("fe80::/10")
	uniqueLocalV6 = netip.MustParsePrefix("fc00::/7")
	multicastV6   = netip.MustParsePrefix("ff00::/8")
	docV6         = netip.MustParsePrefix("2001:db8::/32")
)

func mustPrefixes(cidrs ...string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(cidrs))
	for _, c := range cidrs {
		out = append(out, netip.MustParsePrefix(c))
	}
	return out
}

// Classify 解析并分类一个 IP 字符串。
// 带 %zone 的字面量按去掉 zone 的地址分类。
// 无法解析时返回 Valid=false 且 Safe=false（fail-closed）。
func Classify(ip string, opts Options) Result {
	s := strings.TrimSpace(ip)
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return Result{Valid: false, Safe: false, UnsafeReason: "unparseable address"}
	}
	return ClassifyAddr(addr, opts)
}

// ClassifyAddr 分类一个已解析的地址。
func ClassifyAddr(addr netip.Addr, opts Options) Result {
	addr = addr.WithZone("")

	// IPv4-mapped (::ffff:a.b.c.d)：包装地址的安全性完全由内嵌 IPv4 决定，
	// 一个"看起来公网"的 mapped 地址内嵌 127.0.0.1 时仍然不安全
	if addr.Is4In6() {
		inner := ClassifyAddr(addr.Unmap(), opts)
		r := Result{
			Valid:          true,
			Addr:           addr,
			Safe:           inner.Safe,
			Classification: IPv4Mapped,
			EmbeddedIPv4:   addr.Unmap().String(),
		}
		if !inner.Safe {
			r.UnsafeReason = "ipv4-mapped wrapper: " + inner.UnsafeReason
		}
		return r
	}

	if addr.Is4() {
		return classifyV4(addr, opts)
	}
	return classifyV6(addr, opts)
}

func classifyV4(addr netip.Addr, opts Options) Result {
	r := Result{Valid: true, Addr: addr}

	switch {
	case addr == broadcastV4:
		r.Classification = Broadcast
		r.UnsafeReason = "broadcast address"
	case multicastV4.Contains(addr):
		r.Classification = Multicast
		r.UnsafeReason = "multicast address"
	case containsAny(reservedV4, addr):
		r.Classification = Reserved
		r.UnsafeReason = "reserved address range"
	case loopbackV4.Contains(addr):
		r.Classification = LoopbackV4
		if opts.AllowLoopback {
			r.Safe = true
		} else {
			r.UnsafeReason = "loopback address"
		}
	case linkLocalV4.Contains(addr):
		r.Classification = LinkLocalV4
		r.UnsafeReason = "link-local address (incl. cloud metadata range)"
	case containsAny(rfc1918, addr):
		r.Classification = PrivateRFC1918
		if opts.AllowPrivate {
			r.Safe = true
		} else {
			r.UnsafeReason = "private address (RFC 1918)"
		}
	case cgnat.Contains(addr):
		r.Classification = CarrierGradeNAT
		r.UnsafeReason = "carrier-grade NAT range"
	default:
		r.Classification = Public
		r.Safe = true
	}
	return r
}

func classifyV6(addr netip.Addr, opts Options) Result {
	r := Result{Valid: true, Addr: addr}

	switch {
	case addr == netip.IPv6Loopback():
		r.Classification = LoopbackV6
		if opts.AllowLoopback {
			r.Safe = true
		} else {
			r.UnsafeReason = "loopback address"
		}
	case addr == netip.IPv6Unspecified():
		r.Classification = Reserved
		r.UnsafeReason = "unspecified address"
	case linkLocalV6.Contains(addr):
		r.Classification = LinkLocalV6
		r.UnsafeReason = "link-local address"
	case uniqueLocalV6.Contains(addr):
		r.Classification = PrivateFC
		if opts.AllowPrivate {
			r.Safe = true
		} else {
			r.UnsafeReason = "unique-local address (fc00::/7)"
		}
	case multicastV6.Contains(addr):
		r.Classification = Multicast
		r.UnsafeReason = "multicast address"
	case docV6.Contains(addr):
		r.Classification = Reserved
		r.UnsafeReason = "documentation address range"
	default:
		r.Classification = Public
		r.Safe = true
	}
	return r
}

func containsAny(prefixes []netip.Prefix, addr netip.Addr) bool {
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
