package ipclass

import (
	"net/netip"
	"testing"
)

func TestClassify_IPv4各类别(t *testing.T) {
	cases := []struct {
		ip   string
		want Classification
		safe bool
	}{
		{"8.8.8.8", Public, true},
		{"1.1.1.1", Public, true},
		{"93.184.216.34", Public, true},

		{"127.0.0.1", LoopbackV4, false},
		{"127.255.255.254", LoopbackV4, false},

		{"10.0.0.1", PrivateRFC1918, false},
		{"10.255.255.255", PrivateRFC1918, false},
		{"172.16.0.1", PrivateRFC1918, false},
		{"172.31.255.255", PrivateRFC1918, false},
		{"192.168.0.1", PrivateRFC1918, false},
		{"192.168.255.255", PrivateRFC1918, false},

		// 172.32.x 不在 172.16/12 内
		{"172.32.0.1", Public, true},

		{"169.254.1.1", LinkLocalV4, false},
		{"169.254.169.254", LinkLocalV4, false},

		{"100.64.0.1", CarrierGradeNAT, false},
		{"100.127.255.255", CarrierGradeNAT, false},
		{"100.128.0.1", Public, true},

		{"0.0.0.0", Reserved, false},
		{"0.1.2.3", Reserved, false},
		{"192.0.2.1", Reserved, false},
		{"198.18.0.1", Reserved, false},
		{"198.51.100.7", Reserved, false},
		{"203.0.113.9", Reserved, false},
		{"240.0.0.1", Reserved, false},

		{"224.0.0.1", Multicast, false},
		{"239.255.255.255", Multicast, false},

		{"255.255.255.255", Broadcast, false},
	}
	for _, c := range cases {
		r := Classify(c.ip, Options{})
		if !r.Valid {
			t.Errorf("%s: 应为合法地址", c.ip)
			continue
		}
		if r.Classification != c.want {
			t.Errorf("%s: classification = %s, want %s", c.ip, r.Classification, c.want)
		}
		if r.Safe != c.safe {
			t.Errorf("%s: safe = %v, want %v", c.ip, r.Safe, c.safe)
		}
		if !r.Safe && r.UnsafeReason == "" {
			t.Errorf("%s: 不安全结论必须携带原因", c.ip)
		}
		if r.Safe && r.UnsafeReason != "" {
			t.Errorf("%s: 安全结论不应携带原因: %q", c.ip, r.UnsafeReason)
		}
	}
}

func TestClassify_IPv6各类别(t *testing.T) {
	cases := []struct {
		ip   string
		want Classification
		safe bool
	}{
		{"2001:4860:4860::8888", Public, true},
		{"2606:4700:4700::1111", Public, true},

		{"::1", LoopbackV6, false},
		{"::", Reserved, false},
		{"fe80::1", LinkLocalV6, false},
		{"fe80::dead:beef", LinkLocalV6, false},
		{"fc00::1", PrivateFC, false},
		{"fd12:3456:789a::1", PrivateFC, false},
		{"ff02::1", Multicast, false},
		{"2001:db8::1", Reserved, false},
	}
	for _, c := range cases {
		r := Classify(c.ip, Options{})
		if r.Classification != c.want || r.Safe != c.safe {
			t.Errorf("%s: got (%s, %v), want (%s, %v)", c.ip, r.Classification, r.Safe, c.want, c.safe)
		}
	}
}

func TestClassify_IPv4Mapped由内嵌地址决定(t *testing.T) {
	r := Classify("::ffff:127.0.0.1", Options{})
	if r.Classification != IPv4Mapped {
		t.Fatalf("classification = %s, want IPV4_MAPPED", r.Classification)
	}
	if r.EmbeddedIPv4 != "127.0.0.1" {
		t.Errorf("EmbeddedIPv4 = %q, want 127.0.0.1", r.EmbeddedIPv4)
	}
	if r.Safe {
		t.Error("内嵌回环地址的 mapped 包装不应判定为安全")
	}

	r2 := Classify("::ffff:8.8.8.8", Options{})
	if r2.Classification != IPv4Mapped || !r2.Safe {
		t.Errorf("内嵌公网地址应判定为安全: got (%s, %v)", r2.Classification, r2.Safe)
	}
	if r2.EmbeddedIPv4 != "8.8.8.8" {
		t.Errorf("EmbeddedIPv4 = %q, want 8.8.8.8", r2.EmbeddedIPv4)
	}

	r3 := Classify("::ffff:192.168.1.1", Options{})
	if r3.Safe {
		t.Error("内嵌私网地址的 mapped 包装不应判定为安全")
	}
}

func TestClassify_显式放行开关(t *testing.T) {
	// AllowLoopback 仅放行回环
	r := Classify("127.0.0.1", Options{AllowLoopback: true})
	if !r.Safe {
		t.Error("AllowLoopback 应放行 127.0.0.1")
	}
	if r := Classify("10.0.0.1", Options{AllowLoopback: true}); r.Safe {
		t.Error("AllowLoopback 不应放行私网")
	}

	// AllowPrivate 放行 RFC1918 与 fc00::/7
	if r := Classify("192.168.1.1", Options{AllowPrivate: true}); !r.Safe {
		t.Error("AllowPrivate 应放行 192.168.1.1")
	}
	if r := Classify("fd00::1", Options{AllowPrivate: true}); !r.Safe {
		t.Error("AllowPrivate 应放行 fd00::1")
	}
	if r := Classify("::1", Options{AllowPrivate: true}); r.Safe {
		t.Error("AllowPrivate 不应放行回环")
	}

	// 保留/组播/广播任何开关都不放行
	both := Options{AllowLoopback: true, AllowPrivate: true}
	for _, ip := range []string{"0.0.0.0", "240.0.0.1", "224.0.0.1", "255.255.255.255", "ff02::1"} {
		if r := Classify(ip, both); r.Safe {
			t.Errorf("%s: 保留/组播/广播不应被任何开关放行", ip)
		}
	}

	// mapped 包装跟随内嵌地址的放行语义
	if r := Classify("::ffff:127.0.0.1", Options{AllowLoopback: true}); !r.Safe {
		t.Error("AllowLoopback 应放行内嵌回环的 mapped 地址")
	}
}

func TestClassify_非法输入FailClosed(t *testing.T) {
	for _, ip := range []string{"", "not-an-ip", "999.1.1.1", "fe80:::1"} {
		r := Classify(ip, Options{})
		if r.Valid {
			t.Errorf("%q: 应判定为非法", ip)
		}
		if r.Safe {
			t.Errorf("%q: 非法输入必须 fail-closed", ip)
		}
		if r.UnsafeReason == "" {
			t.Errorf("%q: 必须携带原因", ip)
		}
	}
}

func TestClassify_Zone剥离(t *testing.T) {
	r := Classify("fe80::1%eth0", Options{})
	if !r.Valid {
		t.Fatal("带 zone 的 link-local 应能解析")
	}
	if r.Classification != LinkLocalV6 || r.Safe {
		t.Errorf("got (%s, %v), want (LINK_LOCAL_V6, false)", r.Classification, r.Safe)
	}
}

func TestClassifyAddr(t *testing.T) {
	addr := netip.MustParseAddr("10.1.2.3")
	r := ClassifyAddr(addr, Options{})
	if r.Classification != PrivateRFC1918 {
		t.Errorf("classification = %s, want PRIVATE_RFC1918", r.Classification)
	}
}

func TestClassification_IsValid(t *testing.T) {
	for _, c := range []Classification{
		Public, LoopbackV4, LoopbackV6, LinkLocalV4, LinkLocalV6,
		PrivateRFC1918, PrivateFC, CarrierGradeNAT, Reserved, Multicast,
		Broadcast, IPv4Mapped,
	} {
		if !c.IsValid() {
			t.Errorf("%s 应为合法枚举值", c)
		}
	}
	if Classification("BOGUS").IsValid() {
		t.Error("未知枚举值应判定非法")
	}
}

func BenchmarkClassifyV4(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Classify("8.8.8.8", Options{})
	}
}

func BenchmarkClassifyMapped(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Classify("::ffff:192.168.1.1", Options{})
	}
}
