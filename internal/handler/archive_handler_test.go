package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/Wei-Shaw/fetchguard/internal/service"
)

func setupArchiveRouter(archive *service.ArchiveService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewArchiveHandler(archive)
	router := gin.New()
	router.POST("/v1/archive", h.Archive)
	return router
}

func newArchiveService(endpoint string, fetch *service.FetchService) *service.ArchiveService {
	return service.NewArchiveService(service.ArchiveConfig{
		Enabled:         true,
		Endpoint:        endpoint,
		Region:          "us-east-1",
		Bucket:          "archive-test",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		Prefix:          "fetch",
		ForcePathStyle:  true,
		PresignTTL:      time.Hour,
	}, fetch)
}

func TestArchiveHandler_Disabled(t *testing.T) {
	router := setupArchiveRouter(service.NewArchiveService(service.ArchiveConfig{}, nil))

	rec := postJSON(t, router, "/v1/archive", `{"url":"https://example.com/"}`)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := rec.Body.String()
	require.Equal(t, "ARCHIVE_DISABLED", gjson.Get(body, "reason").String())
	require.Contains(t, gjson.Get(body, "message").String(), "归档存储未启用")
}

func TestArchiveHandler_BindError(t *testing.T) {
	router := setupArchiveRouter(service.NewArchiveService(service.ArchiveConfig{}, nil))

	rec := postJSON(t, router, "/v1/archive", `{}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "参数错误")
}

func TestArchiveHandler_StoresAndPresigns(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html>archived</html>")
	}))
	defer origin.Close()

	// 宽松的 S3 假端点：PUT 一律 200，记录对象路径
	var mu sync.Mutex
	var putPath string
	s3srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			mu.Lock()
			putPath = r.URL.Path
			mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer s3srv.Close()

	guard := newHandlerGuard(tableResolver{})
	fetch := service.NewFetchService(guard, service.NewSecureTransport(service.NewLogMetrics()))
	router := setupArchiveRouter(newArchiveService(s3srv.URL, fetch))

	rec := postJSON(t, router, "/v1/archive", fetchBody(t, origin.URL, origin.URL+"/page", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Equal(t, int64(http.StatusOK), gjson.Get(body, "code").Int())
	key := gjson.Get(body, "data.object_key").String()
	require.True(t, strings.HasPrefix(key, "fetch/"), "object key %q should carry prefix", key)
	require.True(t, strings.HasSuffix(key, ".html"), "object key %q should carry html ext", key)
	require.Equal(t, int64(len("<html>archived</html>")), gjson.Get(body, "data.size").Int())
	require.Equal(t, "text/html", gjson.Get(body, "data.content_type").String())
	require.Equal(t, origin.URL+"/page", gjson.Get(body, "data.source_url").String())
	require.Contains(t, gjson.Get(body, "data.access_url").String(), "X-Amz-Signature")
	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, putPath, "/archive-test/")
}

func TestArchiveHandler_DeniedTargetReported(t *testing.T) {
	guard := newHandlerGuard(tableResolver{})
	fetch := service.NewFetchService(guard, service.NewSecureTransport(service.NewLogMetrics()))
	// S3 端点真被调用就是缺陷，给个必然失败的地址
	router := setupArchiveRouter(newArchiveService("http://127.0.0.1:1", fetch))

	rec := postJSON(t, router, "/v1/archive", `{"url":"http://169.254.169.254/latest/meta-data/"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Equal(t, "HOSTNAME_BLOCKED", gjson.Get(body, "data.denied.reason").String())
	require.False(t, gjson.Get(body, "data.object_key").Exists())
}
