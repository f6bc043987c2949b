package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Wei-Shaw/fetchguard/internal/pkg/logger"
)

// ErrArchiveDisabled 表示归档存储未启用或配置不完整。
var ErrArchiveDisabled = errors.New("archive storage is disabled")

// ArchiveConfig 是 S3 归档的静态配置。
type ArchiveConfig struct {
	Enabled         bool
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	ForcePathStyle  bool
	PresignTTL      time.Duration
}

// ArchiveResult 是一次归档的结果。Denied 非 nil 表示抓取被守卫拒绝，
// 此时不会有任何内容写入 S3。
type ArchiveResult struct {
	Denied      *Denied `json:"denied,omitempty"`
	DeniedURL   string  `json:"denied_url,omitempty"`
	ObjectKey   string  `json:"object_key,omitempty"`
	Size        int64   `json:"size,omitempty"`
	ContentType string  `json:"content_type,omitempty"`
	AccessURL   string  `json:"access_url,omitempty"`
	Truncated   bool    `json:"truncated,omitempty"`
	SourceURL   string  `json:"source_url,omitempty"`
}

// ArchiveService 把用户提交的 URL 抓下来存入 S3。
// 抓取一律走受控抓取路径，归档任务没有绕过守卫的特权。
type ArchiveService struct {
	cfg   ArchiveConfig
	fetch *FetchService

	mu     sync.RWMutex
	client *s3.Client

	healthCheckedAt time.Time
	healthErr       error
	healthTTL       time.Duration
}

const defaultArchiveHealthTTL = 30 * time.Second

func NewArchiveService(cfg ArchiveConfig, fetch *FetchService) *ArchiveService {
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 24 * time.Hour
	}
	return &ArchiveService{
		cfg:       cfg,
		fetch:     fetch,
		healthTTL: defaultArchiveHealthTTL,
	}
}

// Enabled 返回归档是否可用。
func (s *ArchiveService) Enabled() bool {
	return s.cfg.Enabled && s.cfg.Bucket != "" &&
		s.cfg.AccessKeyID != "" && s.cfg.SecretAccessKey != ""
}

// Archive 抓取 rawURL 并归档。守卫拒绝时返回携带 Denied 的结果，
// 抓取或上传的运行期失败返回 error。
func (s *ArchiveService) Archive(ctx context.Context, rawURL string, opts *CheckOptions) (*ArchiveResult, error) {
	client, err := s.getClient(ctx)
	if err != nil {
		return nil, err
	}

	outcome, err := s.fetch.Fetch(ctx, rawURL, opts, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch for archive: %w", err)
	}
	if outcome.Denied != nil {
		return &ArchiveResult{Denied: outcome.Denied, DeniedURL: outcome.DeniedURL}, nil
	}
	resp := outcome.Response

	contentType := resp.Headers.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	objectKey := s.GenerateObjectKey(hostForKey(resp.FinalURL), extFromContentType(contentType))

	size := int64(len(resp.Body))
	input := &s3.PutObjectInput{
		Bucket:        &s.cfg.Bucket,
		Key:           &objectKey,
		Body:          bytes.NewReader(resp.Body),
		ContentType:   &contentType,
		ContentLength: &size,
	}
	if _, err := client.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("s3 upload: %w", err)
	}

	accessURL, err := s.PresignedURL(ctx, objectKey, s.cfg.PresignTTL)
	if err != nil {
		logger.L().Warn("archive.presign_failed",
			zap.String("object_key", objectKey),
			zap.Error(err))
		accessURL = ""
	}

	logger.L().Info("archive.stored",
		zap.String("object_key", objectKey),
		zap.Int64("size", size),
		zap.Bool("truncated", resp.Truncated))
	return &ArchiveResult{
		ObjectKey:   objectKey,
		Size:        size,
		ContentType: contentType,
		AccessURL:   accessURL,
		Truncated:   resp.Truncated,
		SourceURL:   resp.FinalURL,
	}, nil
}

// GenerateObjectKey 生成 object key。
// 格式: {prefix}fetch/{host}/{YYYY/MM/DD}/{uuid}{ext}
func (s *ArchiveService) GenerateObjectKey(host, ext string) string {
	datePath := time.Now().Format("2006/01/02")
	key := fmt.Sprintf("fetch/%s/%s/%s%s", host, datePath, uuid.NewString(), ext)
	if s.cfg.Prefix != "" {
		key = strings.TrimRight(s.cfg.Prefix, "/") + "/" + key
	}
	return key
}

// TestConnection 用 HeadBucket 验证配置连通性。
func (s *ArchiveService) TestConnection(ctx context.Context) error {
	client, err := s.getClient(ctx)
	if err != nil {
		return err
	}
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &s.cfg.Bucket}); err != nil {
		return fmt.Errorf("s3 HeadBucket failed: %w", err)
	}
	return nil
}

// IsHealthy 返回归档存储健康状态（带短缓存，避免每次都打 HeadBucket）。
func (s *ArchiveService) IsHealthy(ctx context.Context) bool {
	if s == nil || !s.Enabled() {
		return false
	}
	now := time.Now()
	s.mu.RLock()
	lastCheck := s.healthCheckedAt
	lastErr := s.healthErr
	ttl := s.healthTTL
	s.mu.RUnlock()

	if ttl <= 0 {
		ttl = defaultArchiveHealthTTL
	}
	if !lastCheck.IsZero() && now.Sub(lastCheck) < ttl {
		return lastErr == nil
	}

	err := s.TestConnection(ctx)
	s.mu.Lock()
	s.healthCheckedAt = time.Now()
	s.healthErr = err
	s.mu.Unlock()
	return err == nil
}

// PresignedURL 生成预签名下载 URL。
func (s *ArchiveService) PresignedURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error) {
	client, err := s.getClient(ctx)
	if err != nil {
		return "", err
	}
	presignClient := s3.NewPresignClient(client)
	result, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.cfg.Bucket,
		Key:    &objectKey,
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign url: %w", err)
	}
	return result.URL, nil
}

// getClient 获取或初始化 S3 客户端（带缓存）。
func (s *ArchiveService) getClient(ctx context.Context) (*s3.Client, error) {
	s.mu.RLock()
	if s.client != nil {
		client := s.client
		s.mu.RUnlock()
		return client, nil
	}
	s.mu.RUnlock()
	return s.initClient(ctx)
}

func (s *ArchiveService) initClient(ctx context.Context) (*s3.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 双重检查
	if s.client != nil {
		return s.client, nil
	}
	if !s.Enabled() {
		return nil, ErrArchiveDisabled
	}

	region := s.cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.cfg.AccessKeyID, s.cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s.cfg.Endpoint != "" {
			o.BaseEndpoint = &s.cfg.Endpoint
		}
		if s.cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
		// 兼容 MinIO 等自建端点
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})
	logger.L().Info("archive.client_initialized",
		zap.String("bucket", s.cfg.Bucket),
		zap.String("endpoint", s.cfg.Endpoint),
		zap.String("region", region))
	return s.client, nil
}

// hostForKey 从最终 URL 提取适合做 object key 路径段的主机名。
func hostForKey(rawURL string) string {
	host := rawURL
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	host = strings.Trim(host, "[]")
	if i := strings.LastIndex(host, "@"); i >= 0 {
		host = host[i+1:]
	}
	host = strings.ReplaceAll(host, ":", "_")
	if host == "" {
		host = "unknown"
	}
	return host
}

func extFromContentType(contentType string) string {
	mediaType := contentType
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = mediaType[:i]
	}
	switch strings.TrimSpace(strings.ToLower(mediaType)) {
	case "text/html":
		return ".html"
	case "text/plain":
		return ".txt"
	case "application/json":
		return ".json"
	case "application/xml", "text/xml":
		return ".xml"
	case "application/pdf":
		return ".pdf"
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	default:
		return ".bin"
	}
}
