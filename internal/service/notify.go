package service

import (
	"context"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/imroc/req/v3"
	gocache "github.com/patrickmn/go-cache"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/Wei-Shaw/fetchguard/internal/domain"
	"github.com/Wei-Shaw/fetchguard/internal/pkg/logger"
)

// NotifyConfig 配置拒绝事件的 webhook 通知。WebhookURL 为空即整体关闭。
type NotifyConfig struct {
	WebhookURL string
	Timeout    time.Duration
	RetryCount int
	DedupTTL   time.Duration
}

// WebhookNotifier 把拒绝决策异步推送到运营侧 webhook。
// 同一 host+reason 在 DedupTTL 窗口内只发一次，避免扫描类流量刷爆通知。
type WebhookNotifier struct {
	cfg    NotifyConfig
	client *req.Client
	dedup  *gocache.Cache
}

func NewWebhookNotifier(cfg NotifyConfig) *WebhookNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = time.Minute
	}
	client := req.C().SetTimeout(cfg.Timeout)
	if cfg.RetryCount > 0 {
		client.SetCommonRetryCount(cfg.RetryCount).
			SetCommonRetryBackoffInterval(200*time.Millisecond, 2*time.Second)
	}
	return &WebhookNotifier{
		cfg:    cfg,
		client: client,
		dedup:  gocache.New(cfg.DedupTTL, 2*cfg.DedupTTL),
	}
}

// OnDenied 实现 DenialObserver。立即返回，推送在后台完成。
func (n *WebhookNotifier) OnDenied(ctx context.Context, host string, d *Denied) {
	if n == nil || n.cfg.WebhookURL == "" || d == nil {
		return
	}
	key := dedupKey(host, d.Reason)
	if _, seen := n.dedup.Get(key); seen {
		return
	}
	n.dedup.Set(key, struct{}{}, gocache.DefaultExpiration)

	source := domain.SourceFrom(ctx)
	go n.push(host, source, d)
}

func (n *WebhookNotifier) push(host string, source domain.Source, d *Denied) {
	payload, err := buildDenialPayload(host, source, d)
	if err != nil {
		logger.L().Warn("notify.payload_build_failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.Timeout)
	defer cancel()

	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBodyJsonBytes(payload).
		Post(n.cfg.WebhookURL)
	if err != nil {
		logger.L().Warn("notify.webhook_failed",
			zap.String("host", host),
			zap.Error(err))
		return
	}
	if !resp.IsSuccessState() {
		logger.L().Warn("notify.webhook_rejected",
			zap.String("host", host),
			zap.Int("status", resp.StatusCode))
		return
	}
	logger.L().Debug("notify.webhook_sent",
		zap.String("host", host),
		zap.String("reason", d.Reason.String()))
}

func buildDenialPayload(host string, source domain.Source, d *Denied) ([]byte, error) {
	payload := []byte(`{"event":"url_denied"}`)
	var err error
	for _, kv := range []struct {
		path  string
		value any
	}{
		{"host", host},
		{"source", source.String()},
		{"reason", d.Reason.String()},
		{"message", d.Message},
		{"request_id", d.RequestID},
		{"duration_ms", d.DurationMs},
		{"denied_at", time.Now().UTC().Format(time.RFC3339)},
	} {
		payload, err = sjson.SetBytes(payload, kv.path, kv.value)
		if err != nil {
			return nil, err
		}
	}
	return payload, nil
}

func dedupKey(host string, reason DenyReason) string {
	return strconv.FormatUint(xxhash.Sum64String(host+"|"+reason.String()), 16)
}
