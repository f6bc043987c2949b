package pinning

import (
	"crypto/x509"

	"github.com/tam7t/hpkp"
)

// FingerprintCert 计算证书的 SPKI pin（含 "sha256/" 前缀）。
func FingerprintCert(cert *x509.Certificate) string {
	return PinPrefix + hpkp.Fingerprint(cert)
}

// VerifyChain 按 HPKP 语义校验证书链：
// 链中任意一张证书的 SPKI 摘要命中 pins ∪ backupPins 即通过。
// 返回命中的 pin（未命中时为空）。
func VerifyChain(chain []*x509.Certificate, set *PinSet) (matchedPin string, ok bool) {
	if set == nil || len(chain) == 0 {
		return "", false
	}
	allowed := make(map[string]struct{})
	for _, p := range set.AllPins() {
		allowed[p] = struct{}{}
	}
	for _, cert := range chain {
		fp := FingerprintCert(cert)
		if _, hit := allowed[fp]; hit {
			return fp, true
		}
	}
	return "", false
}
