package safeurl

import (
	"fmt"
	"strconv"
	"strings"
)

// IsIPv4 判断 s 是否为严格的点分四段 IPv4 字面量。
//
// 严格性是安全语义的一部分：inet_aton 风格的宽松解析
// （八进制段 0177、十六进制段 0x7f、两段缩写 127.1）全部返回 false，
// 这些形式只能经 DetectAlternateEncoding 显式解码后再分类。
func IsIPv4(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, part := range parts {
		if !isStrictOctet(part) {
			return false
		}
	}
	return true
}

// isStrictOctet 校验单个十进制段: 1-3 位数字、无前导零、值 <= 255。
func isStrictOctet(part string) bool {
	if len(part) == 0 || len(part) > 3 {
		return false
	}
	for i := 0; i < len(part); i++ {
		if part[i] < '0' || part[i] > '9' {
			return false
		}
	}
	// "0" 合法，"01"/"00" 属于八进制写法，拒绝
	if len(part) > 1 && part[0] == '0' {
		return false
	}
	n, err := strconv.Atoi(part)
	return err == nil && n <= 255
}

// ParseIPv4ToNumber 将严格点分四段 IPv4 转为 32 位整数。
func ParseIPv4ToNumber(s string) (uint32, error) {
	if !IsIPv4(s) {
		return 0, fmt.Errorf("not a strict dotted-quad ipv4: %q", s)
	}
	parts := strings.Split(s, ".")
	var n uint32
	for _, part := range parts {
		v, _ := strconv.Atoi(part)
		n = n<<8 | uint32(v)
	}
	return n, nil
}

// NumberToIPv4 将 32 位整数还原为点分四段字符串。
// 与 ParseIPv4ToNumber 构成无损往返。
func NumberToIPv4(n uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", n>>24&0xff, n>>16&0xff, n>>8&0xff, n&0xff)
}

// EncodingKind 标识备选 IPv4 编码的种类。
type EncodingKind string

const (
	EncodingDecimal   EncodingKind = "decimal"
	EncodingOctal     EncodingKind = "octal"
	EncodingHex       EncodingKind = "hex"
	EncodingMixed     EncodingKind = "mixed"
	EncodingShorthand EncodingKind = "shorthand"
)

// DetectAlternateEncoding 识别 host 位置的非标准 IPv4 写法并解码。
//
// 覆盖的绕过手法（均为 inet_aton 兼容形式）:
//   - 纯十进制整数:  2130706433        -> 127.0.0.1
//   - 整体十六进制:  0x7f000001        -> 127.0.0.1
//   - 整体八进制:    017700000001      -> 127.0.0.1
//   - 分段八进制:    0177.0.0.1        -> 127.0.0.1
//   - 分段十六进制:  0x7f.0x0.0x0.0x1  -> 127.0.0.1
//   - 段数缩写:      127.1 / 127.0.1   -> 127.0.0.1（末段填充低位字节)
//
// 严格点分四段不在此列（那是合法字面量，返回 ok=false）。
func DetectAlternateEncoding(host string) (decoded string, kind EncodingKind, ok bool) {
	if host == "" || IsIPv4(host) {
		return "", "", false
	}

	// 整体数值形式（无点号）
	if !strings.Contains(host, ".") {
		return decodeWholeNumber(host)
	}

	parts := strings.Split(host, ".")
	if len(parts) < 2 || len(parts) > 4 {
		return "", "", false
	}

	values := make([]uint64, len(parts))
	sawOctal, sawHex := false, false
	for i, part := range parts {
		v, k, valid := decodePart(part)
		if !valid {
			return "", "", false
		}
		values[i] = v
		switch k {
		case EncodingOctal:
			sawOctal = true
		case EncodingHex:
			sawHex = true
		}
	}

	// inet_aton 语义：前 n-1 段各占 1 字节，末段填满剩余字节
	var n uint64
	tail := values[len(values)-1]
	tailBytes := 5 - len(values)
	if tail >= 1<<(8*tailBytes) {
		return "", "", false
	}
	for _, v := range values[:len(values)-1] {
		if v > 255 {
			return "", "", false
		}
		n = n<<8 | v
	}
	n = n<<(8*tailBytes) | tail

	switch {
	case sawOctal && sawHex:
		kind = EncodingMixed
	case sawOctal:
		kind = EncodingOctal
	case sawHex:
		kind = EncodingHex
	default:
		// 只剩段数缩写：四段纯十进制要么是严格字面量（已在入口排除）
		// 要么越界（已在上面返回）
		kind = EncodingShorthand
	}
	return NumberToIPv4(uint32(n)), kind, true
}

func decodeWholeNumber(host string) (string, EncodingKind, bool) {
	if host == "" {
		return "", "", false
	}
	var (
		n    uint64
		err  error
		kind EncodingKind
	)
	switch {
	case strings.HasPrefix(host, "0x") || strings.HasPrefix(host, "0X"):
		n, err = strconv.ParseUint(host[2:], 16, 64)
		kind = EncodingHex
	case len(host) > 1 && host[0] == '0':
		n, err = strconv.ParseUint(host[1:], 8, 64)
		kind = EncodingOctal
	default:
		n, err = strconv.ParseUint(host, 10, 64)
		kind = EncodingDecimal
	}
	if err != nil || n > 0xFFFFFFFF {
		return "", "", false
	}
	return NumberToIPv4(uint32(n)), kind, true
}

// decodePart 解码单个 inet_aton 段。返回 (值, 编码种类, 是否合法)。
func decodePart(part string) (uint64, EncodingKind, bool) {
	if part == "" {
		return 0, "", false
	}
	if strings.HasPrefix(part, "0x") || strings.HasPrefix(part, "0X") {
		if len(part) == 2 {
			return 0, "", false
		}
		v, err := strconv.ParseUint(part[2:], 16, 64)
		if err != nil {
			return 0, "", false
		}
		return v, EncodingHex, true
	}
	if len(part) > 1 && part[0] == '0' {
		v, err := strconv.ParseUint(part[1:], 8, 64)
		if err != nil {
			return 0, "", false
		}
		return v, EncodingOctal, true
	}
	v, err := strconv.ParseUint(part, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return v, EncodingDecimal, true
}

// DetectEmbeddedIP 识别域名中夹带的 IP 模式。
//
// 常见于借免费泛解析服务把内网地址混过朴素字符串检查的手法:
//   - 连字符形式:   192-168-1-1.evil.com
//   - 十进制标签:   2130706433.evil.com
//   - 点分前缀:     127.0.0.1.nip.io
//
// 这是启发式信号，供策略层做纵深防御记录；权威判定始终是
// 对实际拨号 IP 的分类。
func DetectEmbeddedIP(hostname string) (ip string, pattern string, ok bool) {
	labels := strings.Split(hostname, ".")
	if len(labels) == 0 {
		return "", "", false
	}

	// 点分前缀: 前四个标签构成严格 IPv4 且后面还有真实域名
	if len(labels) >= 5 {
		prefix := strings.Join(labels[:4], ".")
		if IsIPv4(prefix) {
			return prefix, "dotted-prefix", true
		}
	}

	first := labels[0]

	// 连字符形式
	if strings.Count(first, "-") == 3 {
		candidate := strings.ReplaceAll(first, "-", ".")
		if IsIPv4(candidate) {
			return candidate, "dashed", true
		}
	}

	// 十进制标签。最短的非公网数值是 10.0.0.0 = 167772160（9 位），
	// 阈值取 9 避免把年份之类的普通数字子域误报
	if len(first) >= 9 && len(labels) >= 2 {
		allDigits := true
		for i := 0; i < len(first); i++ {
			if first[i] < '0' || first[i] > '9' {
				allDigits = false
				break
			}
		}
		if allDigits {
			if n, err := strconv.ParseUint(first, 10, 64); err == nil && n <= 0xFFFFFFFF {
				return NumberToIPv4(uint32(n)), "decimal-label", true
			}
		}
	}

	return "", "", false
}
