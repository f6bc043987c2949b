package httputil

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

const (
	bodyReadInitCap    = 512
	bodyReadMaxInitCap = 1 << 20
)

// ReadBody 读取请求体，按 Content-Length 预分配缓冲，超过 limit 报错。
// limit<=0 表示不限制。入站正文与出站响应一样都要有界。
func ReadBody(req *http.Request, limit int64) ([]byte, error) {
	if req == nil || req.Body == nil {
		return nil, nil
	}
	if limit > 0 && req.ContentLength > limit {
		return nil, fmt.Errorf("request body %d bytes exceeds limit %d", req.ContentLength, limit)
	}

	capHint := bodyReadInitCap
	if req.ContentLength > 0 {
		switch {
		case req.ContentLength < int64(bodyReadInitCap):
			capHint = bodyReadInitCap
		case req.ContentLength > int64(bodyReadMaxInitCap):
			capHint = bodyReadMaxInitCap
		default:
			capHint = int(req.ContentLength)
		}
	}

	src := req.Body
	var limited io.Reader = src
	if limit > 0 {
		limited = io.LimitReader(src, limit+1)
	}

	buf := bytes.NewBuffer(make([]byte, 0, capHint))
	if _, err := io.Copy(buf, limited); err != nil {
		return nil, err
	}
	if limit > 0 && int64(buf.Len()) > limit {
		return nil, fmt.Errorf("request body exceeds limit %d", limit)
	}
	return buf.Bytes(), nil
}
