package safeurl

import "strings"

// HostnameMatches 判断 host 是否命中 pattern。
//
// 三种模式:
//   - 精确匹配:     "api.example.com" 仅匹配自身
//   - 通配符:       "*.example.com"   匹配子域，不匹配裸域 example.com
//   - 后缀:         ".example.com"    同上，匹配子域不匹配裸域
//
// 比较不区分大小写，两侧的尾部 "." 均被忽略。
func HostnameMatches(host, pattern string) bool {
	h := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	p := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(pattern)), ".")
	if h == "" || p == "" {
		return false
	}

	if suffix, ok := strings.CutPrefix(p, "*."); ok {
		return matchesSubdomainOf(h, suffix)
	}
	if suffix, ok := strings.CutPrefix(p, "."); ok {
		return matchesSubdomainOf(h, suffix)
	}
	return h == p
}

// matchesSubdomainOf 判断 host 是否为 domain 的真子域。
func matchesSubdomainOf(host, domain string) bool {
	if domain == "" || host == domain {
		return false
	}
	return strings.HasSuffix(host, "."+domain)
}

// MatchesAny 判断 host 是否命中任意一个 pattern。
func MatchesAny(host string, patterns []string) (string, bool) {
	for _, p := range patterns {
		if HostnameMatches(host, p) {
			return p, true
		}
	}
	return "", false
}
