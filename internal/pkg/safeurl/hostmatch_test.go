package safeurl

import "testing"

func TestHostnameMatches(t *testing.T) {
	cases := []struct {
		host    string
		pattern string
		want    bool
	}{
		// 精确匹配
		{"example.com", "example.com", true},
		{"api.example.com", "api.example.com", true},
		{"example.com", "example.org", false},
		{"EXAMPLE.COM", "example.com", true},
		{"example.com.", "example.com", true},

		// 通配符：匹配子域，不匹配裸域
		{"api.example.com", "*.example.com", true},
		{"a.b.example.com", "*.example.com", true},
		{"example.com", "*.example.com", false},
		{"evilexample.com", "*.example.com", false},
		{"example.com.evil.net", "*.example.com", false},

		// 后缀：同通配符语义
		{"api.example.com", ".example.com", true},
		{"example.com", ".example.com", false},
		{"evilexample.com", ".example.com", false},

		// 空输入
		{"", "example.com", false},
		{"example.com", "", false},
	}
	for _, c := range cases {
		if got := HostnameMatches(c.host, c.pattern); got != c.want {
			t.Errorf("HostnameMatches(%q, %q) = %v, want %v", c.host, c.pattern, got, c.want)
		}
	}
}

func TestMatchesAny(t *testing.T) {
	patterns := []string{"localhost", "*.internal", "metadata.google.internal"}

	if p, ok := MatchesAny("db.internal", patterns); !ok || p != "*.internal" {
		t.Errorf("db.internal 应命中 *.internal: got (%q, %v)", p, ok)
	}
	if p, ok := MatchesAny("localhost", patterns); !ok || p != "localhost" {
		t.Errorf("localhost 应精确命中: got (%q, %v)", p, ok)
	}
	if _, ok := MatchesAny("example.com", patterns); ok {
		t.Error("example.com 不应命中任何模式")
	}
}
