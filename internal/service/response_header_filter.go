package service

import (
	"net/http"
	"strings"
)

// 逐跳头只对守卫与目标之间的这条连接有意义，回给调用方之前剥掉；
// 其余响应头原样透传，调用方要靠 Content-Type 与缓存头做后续处理。
var hopByHopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Proxy-Connection":    {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

// filterResponseHeaders 返回剥离逐跳头后的副本，
// Connection 头点名的字段按 RFC 7230 一并移除。
func filterResponseHeaders(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, vs := range h {
		if _, drop := hopByHopHeaders[http.CanonicalHeaderKey(k)]; drop {
			continue
		}
		out[k] = append([]string(nil), vs...)
	}
	for _, conn := range h.Values("Connection") {
		for _, name := range strings.Split(conn, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out.Del(name)
			}
		}
	}
	return out
}
