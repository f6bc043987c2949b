package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/Wei-Shaw/fetchguard/internal/domain"
)

func notifyTestServer(t *testing.T) (*httptest.Server, chan []byte) {
	t.Helper()
	payloads := make(chan []byte, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		payloads <- body
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, payloads
}

func waitPayload(t *testing.T, payloads chan []byte) []byte {
	t.Helper()
	select {
	case p := <-payloads:
		return p
	case <-time.After(3 * time.Second):
		t.Fatal("webhook payload not delivered")
		return nil
	}
}

func requireNoPayload(t *testing.T, payloads chan []byte) {
	t.Helper()
	select {
	case p := <-payloads:
		t.Fatalf("unexpected webhook delivery: %s", p)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWebhookNotifier_DeliversDenial(t *testing.T) {
	srv, payloads := notifyTestServer(t)

	n := NewWebhookNotifier(NotifyConfig{WebhookURL: srv.URL, Timeout: 2 * time.Second})
	denied := &Denied{
		Audit:   Audit{RequestID: "req-1", DurationMs: 3},
		Reason:  DenyPrivateIP,
		Message: "address 192.168.1.1 is unsafe",
	}

	ctx := domain.WithSource(context.Background(), domain.SourceFetch)
	n.OnDenied(ctx, "internal.example.com", denied)

	payload := waitPayload(t, payloads)
	require.Equal(t, "url_denied", gjson.GetBytes(payload, "event").String())
	require.Equal(t, "internal.example.com", gjson.GetBytes(payload, "host").String())
	require.Equal(t, "fetch", gjson.GetBytes(payload, "source").String())
	require.Equal(t, "PRIVATE_IP", gjson.GetBytes(payload, "reason").String())
	require.Equal(t, "req-1", gjson.GetBytes(payload, "request_id").String())
	require.NotEmpty(t, gjson.GetBytes(payload, "denied_at").String())
}

func TestWebhookNotifier_DedupWindow(t *testing.T) {
	srv, payloads := notifyTestServer(t)

	n := NewWebhookNotifier(NotifyConfig{
		WebhookURL: srv.URL,
		Timeout:    2 * time.Second,
		DedupTTL:   time.Minute,
	})
	denied := &Denied{Reason: DenyLoopback, Message: "loopback address"}

	ctx := context.Background()
	n.OnDenied(ctx, "victim.example.com", denied)
	waitPayload(t, payloads)

	// 同 host+reason 在窗口内被抑制
	n.OnDenied(ctx, "victim.example.com", denied)
	requireNoPayload(t, payloads)

	// 换 reason 或换 host 都照常推送
	n.OnDenied(ctx, "victim.example.com", &Denied{Reason: DenyPrivateIP})
	waitPayload(t, payloads)
	n.OnDenied(ctx, "other.example.com", denied)
	waitPayload(t, payloads)
}

func TestWebhookNotifier_DisabledAndNil(t *testing.T) {
	// URL 为空即整体关闭，调用是无害的空操作
	n := NewWebhookNotifier(NotifyConfig{})
	require.NotPanics(t, func() {
		n.OnDenied(context.Background(), "a.example.com", &Denied{Reason: DenyLoopback})
	})

	var nilNotifier *WebhookNotifier
	require.NotPanics(t, func() {
		nilNotifier.OnDenied(context.Background(), "a.example.com", &Denied{Reason: DenyLoopback})
	})

	configured := NewWebhookNotifier(NotifyConfig{WebhookURL: "http://127.0.0.1:1/hook"})
	require.NotPanics(t, func() {
		configured.OnDenied(context.Background(), "a.example.com", nil)
	})
}

func TestBuildDenialPayload(t *testing.T) {
	denied := &Denied{
		Audit:   Audit{RequestID: "req-9", DurationMs: 12},
		Reason:  DenyHostnameBlocked,
		Message: `hostname matches blocklist entry "*.internal"`,
	}
	payload, err := buildDenialPayload("db.internal", domain.SourceBatch, denied)
	require.NoError(t, err)

	require.True(t, gjson.ValidBytes(payload))
	require.Equal(t, "url_denied", gjson.GetBytes(payload, "event").String())
	require.Equal(t, "batch", gjson.GetBytes(payload, "source").String())
	require.Equal(t, "HOSTNAME_BLOCKED", gjson.GetBytes(payload, "reason").String())
	require.Equal(t, int64(12), gjson.GetBytes(payload, "duration_ms").Int())
	require.Contains(t, gjson.GetBytes(payload, "message").String(), "*.internal")
}

func TestDedupKey_Distinct(t *testing.T) {
	base := dedupKey("a.example.com", DenyLoopback)
	require.Equal(t, base, dedupKey("a.example.com", DenyLoopback))
	require.NotEqual(t, base, dedupKey("b.example.com", DenyLoopback))
	require.NotEqual(t, base, dedupKey("a.example.com", DenyPrivateIP))
}
