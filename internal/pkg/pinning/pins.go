// Package pinning 提供 SPKI 证书固定的数据类型与校验。
//
// pin 格式为 "sha256/<44 位 base64>"，即证书 SubjectPublicKeyInfo 的
// SHA-256 摘要。匹配语义与 HPKP 一致：证书链中任意一张证书命中
// pins ∪ backupPins 中任意一枚即通过。
package pinning

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

const (
	// PinPrefix 是唯一支持的摘要算法前缀。
	PinPrefix = "sha256/"
	// pin 摘要部分固定为 32 字节的标准 base64 编码，共 44 字符。
	encodedHashLen = 44
)

// PinSet 是某一主机名的固定配置。
// ExpiresAt 过期的条目在查询时视同不存在。
type PinSet struct {
	Hostname          string     `json:"hostname" yaml:"hostname"`
	Pins              []string   `json:"pins" yaml:"pins"`
	BackupPins        []string   `json:"backup_pins,omitempty" yaml:"backup_pins,omitempty"`
	IncludeSubdomains bool       `json:"include_subdomains" yaml:"include_subdomains"`
	Enforce           bool       `json:"enforce" yaml:"enforce"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

// ValidatePin 校验单枚 pin 的格式。
func ValidatePin(pin string) error {
	if !strings.HasPrefix(pin, PinPrefix) {
		return fmt.Errorf("pin must start with %q: %q", PinPrefix, pin)
	}
	encoded := pin[len(PinPrefix):]
	if len(encoded) != encodedHashLen {
		return fmt.Errorf("pin hash must be %d base64 chars, got %d", encodedHashLen, len(encoded))
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("pin hash is not valid base64: %v", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("pin hash must decode to 32 bytes, got %d", len(raw))
	}
	return nil
}

// Validate 校验整个 PinSet：主机名非空、至少一枚主 pin、全部格式合法。
func (s *PinSet) Validate() error {
	if s == nil {
		return fmt.Errorf("nil pin set")
	}
	if strings.TrimSpace(s.Hostname) == "" {
		return fmt.Errorf("pin set hostname is required")
	}
	if len(s.Pins) == 0 {
		return fmt.Errorf("pin set for %s has no pins", s.Hostname)
	}
	for _, p := range s.Pins {
		if err := ValidatePin(p); err != nil {
			return fmt.Errorf("host %s: %w", s.Hostname, err)
		}
	}
	for _, p := range s.BackupPins {
		if err := ValidatePin(p); err != nil {
			return fmt.Errorf("host %s backup: %w", s.Hostname, err)
		}
	}
	return nil
}

// Expired 判断条目在 now 时刻是否已过期。未设置 ExpiresAt 视为永不过期。
func (s *PinSet) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}

// AllPins 返回 pins ∪ backupPins（保序去重）。
func (s *PinSet) AllPins() []string {
	seen := make(map[string]struct{}, len(s.Pins)+len(s.BackupPins))
	out := make([]string, 0, len(s.Pins)+len(s.BackupPins))
	for _, p := range s.Pins {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	for _, p := range s.BackupPins {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// Clone 返回深拷贝，供 copy-on-write 存储使用。
func (s *PinSet) Clone() *PinSet {
	if s == nil {
		return nil
	}
	c := *s
	c.Pins = append([]string(nil), s.Pins...)
	c.BackupPins = append([]string(nil), s.BackupPins...)
	if s.ExpiresAt != nil {
		t := *s.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}
