package service

import "github.com/Wei-Shaw/fetchguard/internal/pkg/pinning"

// PinStore 是进程级的证书固定存储。
// 实现必须保证并发读安全，且 add/remove 对并发查询原子可见
// （读者不能看到半更新的 PinSet）。
type PinStore interface {
	// AddPins 校验并写入一条固定配置，同主机名旧条目被整体替换。
	AddPins(set *pinning.PinSet) error
	// RemovePins 删除指定主机名的条目，返回是否存在。
	RemovePins(hostname string) bool
	// GetPins 查询主机名的生效配置：精确匹配优先，未命中时沿父域
	// 逐级查找 includeSubdomains=true 的条目；过期条目视同不存在。
	GetPins(hostname string) *pinning.PinSet
	// ReplaceAll 原子替换全部条目（启动加载与配置重载使用）。
	ReplaceAll(sets []pinning.PinSet) error
	// Snapshot 返回全部未过期条目的副本。
	Snapshot() []pinning.PinSet
}
