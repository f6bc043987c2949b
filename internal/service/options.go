package service

import "time"

// GuardConfig 是防护管线的生效参数集。
// 来源于配置文件默认值，可被单次调用的 CheckOptions 覆盖。
type GuardConfig struct {
	// AllowedPorts 为空切片表示放行全部端口（显式 opt-out，默认不为空）。
	AllowedPorts     []int
	AllowPrivateIPs  bool
	AllowLoopback    bool
	MaxRedirects     int
	MaxResponseBytes int64
	ConnectTimeout   time.Duration
	ReadTimeout      time.Duration
	ResolveTimeout   time.Duration
	UserAgent        string
	BlockedHostnames []string

	// 各策略规则的独立开关，默认全部开启。
	EnableUserinfoRule  bool
	EnablePortRule      bool
	EnableBlocklistRule bool
	EnableIPRule        bool
}

// DefaultBlockedHostnames 是静态主机名阻断表的默认值：
// localhost 及其变体、常见内部域后缀、各云厂商元数据端点。
func DefaultBlockedHostnames() []string {
	return []string{
		"localhost",
		"*.localhost",
		"*.local",
		"*.internal",
		"metadata",
		"metadata.google.internal",
		"metadata.goog",
		"169.254.169.254",
		"169.254.170.2",
		"100.100.100.200",
		"192.0.0.192",
		"fd00:ec2::254",
	}
}

// DefaultGuardConfig 返回出厂默认：仅 80/443、全部安全规则开启。
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		AllowedPorts:        []int{80, 443},
		MaxRedirects:        5,
		MaxResponseBytes:    10 << 20,
		ConnectTimeout:      10 * time.Second,
		ReadTimeout:         30 * time.Second,
		ResolveTimeout:      5 * time.Second,
		UserAgent:           "fetchguard/1.0",
		BlockedHostnames:    DefaultBlockedHostnames(),
		EnableUserinfoRule:  true,
		EnablePortRule:      true,
		EnableBlocklistRule: true,
		EnableIPRule:        true,
	}
}

// CheckOptions 是单次校验的覆盖项。nil 字段沿用 GuardConfig 默认值；
// AllowedPorts 指向空切片时表示放行全部端口。
type CheckOptions struct {
	AllowedPorts     *[]int
	AllowPrivateIPs  *bool
	AllowLoopback    *bool
	MaxRedirects     *int
	MaxResponseBytes *int64
}

// withOptions 返回应用覆盖项后的新配置，原配置不变。
func (c GuardConfig) withOptions(opts *CheckOptions) GuardConfig {
	if opts == nil {
		return c
	}
	out := c
	if opts.AllowedPorts != nil {
		out.AllowedPorts = append([]int(nil), (*opts.AllowedPorts)...)
	}
	if opts.AllowPrivateIPs != nil {
		out.AllowPrivateIPs = *opts.AllowPrivateIPs
	}
	if opts.AllowLoopback != nil {
		out.AllowLoopback = *opts.AllowLoopback
	}
	if opts.MaxRedirects != nil {
		out.MaxRedirects = *opts.MaxRedirects
	}
	if opts.MaxResponseBytes != nil {
		out.MaxResponseBytes = *opts.MaxResponseBytes
	}
	return out
}
