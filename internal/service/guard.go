package service

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Wei-Shaw/fetchguard/internal/domain"
	"github.com/Wei-Shaw/fetchguard/internal/pkg/ipclass"
	"github.com/Wei-Shaw/fetchguard/internal/pkg/logger"
	"github.com/Wei-Shaw/fetchguard/internal/pkg/pinning"
	"github.com/Wei-Shaw/fetchguard/internal/pkg/safeurl"
)

// DenialObserver 在每次拒绝决策后被回调（如 webhook 通知）。
// 回调必须快速返回，耗时操作自行异步化。
type DenialObserver interface {
	OnDenied(ctx context.Context, host string, d *Denied)
}

// Guard 是决策引擎：parse → resolve → classify → policy → pin lookup，
// 产出一条不可变的 Allowed/Denied 决策。
//
// 失败语义是 fail-closed：解析器报错、分类异常、内部 panic，
// 一律折叠为 Denied，绝不默认放行。
type Guard struct {
	cfg      GuardConfig
	resolver Resolver
	pins     PinStore
	metrics  MetricsSink
	observer DenialObserver
}

// NewGuard 创建决策引擎。observer 允许为 nil。
func NewGuard(cfg GuardConfig, resolver Resolver, pins PinStore, metrics MetricsSink, observer DenialObserver) *Guard {
	return &Guard{
		cfg:      cfg,
		resolver: resolver,
		pins:     pins,
		metrics:  metrics,
		observer: observer,
	}
}

// Check 对一个不可信 URL 做完整校验（域名场景包含真实 DNS 解析）。
// 解析出的候选地址有任何一个不安全即整体拒绝，不挑选"安全的那个"。
func (g *Guard) Check(ctx context.Context, rawURL string, opts *CheckOptions) (dec Decision) {
	began := time.Now()
	requestID := uuid.NewString()
	cfg := g.cfg.withOptions(opts)

	defer func() {
		if r := recover(); r != nil {
			logger.L().Error("guard.check_panic",
				zap.String("request_id", requestID),
				zap.Any("panic", r))
			dec = g.deny(ctx, began, requestID, nil, "",
				DenyInternalError, "internal error during validation")
		}
	}()

	desc, checks, err := g.parseStep(rawURL)
	if err != nil {
		reason := DenyInvalidURL
		if errors.Is(err, safeurl.ErrUnsupportedScheme) {
			reason = DenyUnsupportedScheme
		}
		return g.deny(ctx, began, requestID, checks, "", reason, err.Error())
	}

	candidates, checks, denyReason, denyMsg := g.resolveStep(ctx, desc, checks)
	if denyReason != "" {
		return g.deny(ctx, began, requestID, checks, desc.Hostname, denyReason, denyMsg)
	}

	ipres := classifyAll(candidates, classOptions(cfg))

	pol := evaluatePolicy(desc, ipres, cfg)
	checks = append(checks, pol.Checks...)
	if !pol.Passed {
		return g.deny(ctx, began, requestID, checks, desc.Hostname, pol.Reason, pol.Message)
	}

	var pinSet *pinning.PinSet
	if desc.Scheme == "https" {
		pbegan := time.Now()
		pinSet = g.pins.GetPins(desc.Hostname)
		detail := "no pins configured"
		if pinSet != nil {
			detail = fmt.Sprintf("%d pins, enforce=%v", len(pinSet.AllPins()), pinSet.Enforce)
		}
		checks = append(checks, Check{
			Name:       CheckNamePinLookup,
			Passed:     true,
			Detail:     detail,
			DurationMs: time.Since(pbegan).Milliseconds(),
		})
	}

	allowed := &Allowed{
		Audit: Audit{
			Checks:     checks,
			DurationMs: time.Since(began).Milliseconds(),
			RequestID:  requestID,
		},
		Transport: buildTransport(desc, candidates[0], cfg, pinSet),
	}
	g.metrics.RecordDecision(domain.SourceFrom(ctx).String(), "allowed", "", time.Since(began))
	logger.L().Debug("guard.check_allowed",
		zap.String("request_id", requestID),
		zap.String("host", desc.Hostname),
		zap.String("connect_ip", allowed.Transport.ConnectToIP.String()))
	return allowed
}

// QuickCheck 是同步、免 DNS 的预筛：仅执行 parse + 字面量分类 + 策略。
// 结论是咨询性的，放行不代表后续真实解析安全，不能单独作为请求前置门。
func (g *Guard) QuickCheck(rawURL string, opts *CheckOptions) *QuickResult {
	began := time.Now()
	requestID := uuid.NewString()
	cfg := g.cfg.withOptions(opts)

	res := &QuickResult{Allowed: true, RequestID: requestID}

	desc, checks, err := g.parseStep(rawURL)
	if err != nil {
		res.Allowed = false
		res.Reason = DenyInvalidURL
		if errors.Is(err, safeurl.ErrUnsupportedScheme) {
			res.Reason = DenyUnsupportedScheme
		}
		res.Message = err.Error()
		res.Checks = checks
		res.DurationMs = time.Since(began).Milliseconds()
		return res
	}

	var ipres ipclass.Result
	if addr, ok, check := literalAddr(desc); ok {
		if check != nil {
			checks = append(checks, *check)
		}
		ipres = ipclass.ClassifyAddr(addr, classOptions(cfg))
	} else if ip, pattern, found := safeurl.DetectEmbeddedIP(desc.Hostname); found {
		checks = append(checks, Check{
			Name:   CheckNameEmbedded,
			Passed: true,
			Detail: fmt.Sprintf("hostname embeds %s (%s pattern)", ip, pattern),
		})
	}

	pol := evaluatePolicy(desc, ipres, cfg)
	checks = append(checks, pol.Checks...)
	if !pol.Passed {
		res.Allowed = false
		res.Reason = pol.Reason
		res.Message = pol.Message
	}
	res.Checks = checks
	res.DurationMs = time.Since(began).Milliseconds()
	return res
}

// parseStep 解析 URL 并产出首条检查记录。
func (g *Guard) parseStep(rawURL string) (*safeurl.Descriptor, []Check, error) {
	began := time.Now()
	desc, err := safeurl.Parse(rawURL)
	if err != nil {
		return nil, []Check{{
			Name:       CheckNameParse,
			Passed:     false,
			Detail:     err.Error(),
			DurationMs: time.Since(began).Milliseconds(),
		}}, err
	}
	return desc, []Check{{
		Name:       CheckNameParse,
		Passed:     true,
		DurationMs: time.Since(began).Milliseconds(),
	}}, nil
}

// resolveStep 确定候选地址：字面量与备选编码直接得出，域名走解析器。
// 返回的 denyReason 非空表示解析失败（fail-closed）。
func (g *Guard) resolveStep(ctx context.Context, desc *safeurl.Descriptor, checks []Check) ([]netip.Addr, []Check, DenyReason, string) {
	if addr, ok, check := literalAddr(desc); ok {
		if check != nil {
			checks = append(checks, *check)
		}
		return []netip.Addr{addr}, checks, "", ""
	}

	if ip, pattern, found := safeurl.DetectEmbeddedIP(desc.Hostname); found {
		// 纵深防御信号：记录并告警，权威判定仍是解析结果的分类
		checks = append(checks, Check{
			Name:   CheckNameEmbedded,
			Passed: true,
			Detail: fmt.Sprintf("hostname embeds %s (%s pattern)", ip, pattern),
		})
		logger.L().Warn("guard.embedded_ip_hostname",
			zap.String("host", desc.Hostname),
			zap.String("embedded_ip", ip),
			zap.String("pattern", pattern))
	}

	began := time.Now()
	addrs, err := g.resolver.LookupIP(ctx, desc.Hostname)
	if err != nil {
		checks = append(checks, Check{
			Name:       CheckNameResolution,
			Passed:     false,
			Detail:     err.Error(),
			DurationMs: time.Since(began).Milliseconds(),
		})
		return nil, checks, DenyResolutionFailed, "hostname resolution failed"
	}
	if len(addrs) == 0 {
		checks = append(checks, Check{
			Name:       CheckNameResolution,
			Passed:     false,
			Detail:     "no addresses",
			DurationMs: time.Since(began).Milliseconds(),
		})
		return nil, checks, DenyResolutionFailed, "hostname resolution returned no addresses"
	}
	checks = append(checks, Check{
		Name:       CheckNameResolution,
		Passed:     true,
		Detail:     fmt.Sprintf("%d addresses", len(addrs)),
		DurationMs: time.Since(began).Milliseconds(),
	})
	return addrs, checks, "", ""
}

// literalAddr 把 IP 字面量或备选编码主机还原为地址。
// 第三个返回值是备选编码的检查记录（仅编码场景非 nil）。
func literalAddr(desc *safeurl.Descriptor) (netip.Addr, bool, *Check) {
	if desc.IsIPLiteral {
		addr, err := netip.ParseAddr(desc.Hostname)
		if err != nil {
			return netip.Addr{}, false, nil
		}
		return addr.WithZone(""), true, nil
	}
	if decoded, kind, ok := safeurl.DetectAlternateEncoding(desc.Hostname); ok {
		addr, err := netip.ParseAddr(decoded)
		if err != nil {
			return netip.Addr{}, false, nil
		}
		return addr, true, &Check{
			Name:   CheckNameEncoding,
			Passed: true,
			Detail: fmt.Sprintf("%s encoding decodes to %s", kind, decoded),
		}
	}
	return netip.Addr{}, false, nil
}

// classifyAll 分类全部候选地址。任何一个不安全即返回那个不安全结论，
// 全部安全时返回第一个候选（也是后续拨号目标）的结论。
func classifyAll(candidates []netip.Addr, opts ipclass.Options) ipclass.Result {
	if len(candidates) == 0 {
		return ipclass.Result{Valid: false, Safe: false, UnsafeReason: "no candidate addresses"}
	}
	first := ipclass.ClassifyAddr(candidates[0], opts)
	if !first.Safe {
		return first
	}
	for _, addr := range candidates[1:] {
		if r := ipclass.ClassifyAddr(addr, opts); !r.Safe {
			return r
		}
	}
	return first
}

func classOptions(cfg GuardConfig) ipclass.Options {
	return ipclass.Options{
		AllowLoopback: cfg.AllowLoopback,
		AllowPrivate:  cfg.AllowPrivateIPs,
	}
}

// buildTransport 组装 Allowed 决策的传输参数。
// connect 是已验证安全的拨号地址；Host 头与 SNI 保留原始主机名。
func buildTransport(desc *safeurl.Descriptor, connect netip.Addr, cfg GuardConfig, pins *pinning.PinSet) TransportRequirements {
	headers := map[string]string{
		"Host":       hostHeaderValue(desc),
		"User-Agent": cfg.UserAgent,
	}
	return TransportRequirements{
		OriginalURL:      desc.Raw,
		ConnectToIP:      connect.Unmap().WithZone(""),
		Port:             desc.EffectivePort,
		UseTLS:           desc.Scheme == "https",
		Hostname:         desc.Hostname,
		RequestPath:      desc.RequestPath(),
		Headers:          headers,
		MaxResponseBytes: cfg.MaxResponseBytes,
		ConnectTimeoutMs: cfg.ConnectTimeout.Milliseconds(),
		ReadTimeoutMs:    cfg.ReadTimeout.Milliseconds(),
		AllowRedirects:   cfg.MaxRedirects > 0,
		MaxRedirects:     cfg.MaxRedirects,
		CertificatePins:  pins,
		UserAgent:        cfg.UserAgent,
	}
}

// hostHeaderValue 生成 Host 头：默认端口省略端口号，IPv6 字面量加方括号。
func hostHeaderValue(desc *safeurl.Descriptor) string {
	host := desc.Hostname
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	defaultPort := 80
	if desc.Scheme == "https" {
		defaultPort = 443
	}
	if desc.EffectivePort != defaultPort {
		host += ":" + strconv.Itoa(desc.EffectivePort)
	}
	return host
}

func (g *Guard) deny(ctx context.Context, began time.Time, requestID string, checks []Check, host string, reason DenyReason, message string) *Denied {
	d := &Denied{
		Audit: Audit{
			Checks:     checks,
			DurationMs: time.Since(began).Milliseconds(),
			RequestID:  requestID,
		},
		Reason:  reason,
		Message: message,
	}
	g.metrics.RecordDecision(domain.SourceFrom(ctx).String(), "denied", reason.String(), time.Since(began))
	logger.L().Info("guard.check_denied",
		zap.String("request_id", requestID),
		zap.String("host", host),
		zap.String("reason", reason.String()),
		zap.String("message", message))
	if g.observer != nil {
		g.observer.OnDenied(ctx, host, d)
	}
	return d
}
