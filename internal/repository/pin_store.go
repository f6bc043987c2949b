package repository

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Wei-Shaw/fetchguard/internal/pkg/logger"
	"github.com/Wei-Shaw/fetchguard/internal/pkg/pinning"
	"github.com/Wei-Shaw/fetchguard/internal/pkg/safeurl"
)

// MemoryPinStore 是证书 pin 的内存实现：读多写少，
// 读走 RLock 并返回深拷贝，写整体持锁，读者永远看不到半更新状态。
type MemoryPinStore struct {
	mu   sync.RWMutex
	sets map[string]*pinning.PinSet

	cron    *cron.Cron
	sweepID cron.EntryID
}

func NewMemoryPinStore() *MemoryPinStore {
	return &MemoryPinStore{sets: make(map[string]*pinning.PinSet)}
}

// AddPins 新增或整体替换一个主机的 pin 集合。
func (s *MemoryPinStore) AddPins(set *pinning.PinSet) error {
	if set == nil {
		return fmt.Errorf("pin set is required")
	}
	if err := set.Validate(); err != nil {
		return err
	}
	key, err := storeKey(set.Hostname)
	if err != nil {
		return err
	}
	clone := set.Clone()
	clone.Hostname = key

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[key] = clone
	return nil
}

// RemovePins 删除一个主机的 pin 集合，存在并删除时返回 true。
func (s *MemoryPinStore) RemovePins(hostname string) bool {
	key, err := storeKey(hostname)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sets[key]; !ok {
		return false
	}
	delete(s.sets, key)
	return true
}

// GetPins 查询主机生效的 pin 集合：先精确命中，未命中时逐级上溯父域，
// 仅 IncludeSubdomains=true 的父域集合对子域生效。过期集合视同不存在。
// 返回的是深拷贝，调用方可安全持有。
func (s *MemoryPinStore) GetPins(hostname string) *pinning.PinSet {
	key, err := storeKey(hostname)
	if err != nil {
		return nil
	}
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if set, ok := s.sets[key]; ok && !set.Expired(now) {
		return set.Clone()
	}
	labels := strings.Split(key, ".")
	for i := 1; i < len(labels); i++ {
		parent := strings.Join(labels[i:], ".")
		set, ok := s.sets[parent]
		if !ok || !set.IncludeSubdomains || set.Expired(now) {
			continue
		}
		return set.Clone()
	}
	return nil
}

// ReplaceAll 原子替换全部 pin 集合。任何一条校验失败则整体不生效。
func (s *MemoryPinStore) ReplaceAll(sets []pinning.PinSet) error {
	next := make(map[string]*pinning.PinSet, len(sets))
	for i := range sets {
		set := &sets[i]
		if err := set.Validate(); err != nil {
			return fmt.Errorf("pin set %q: %w", set.Hostname, err)
		}
		key, err := storeKey(set.Hostname)
		if err != nil {
			return fmt.Errorf("pin set %q: %w", set.Hostname, err)
		}
		clone := set.Clone()
		clone.Hostname = key
		next[key] = clone
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets = next
	return nil
}

// Snapshot 导出全部集合的深拷贝，按主机名排序。
func (s *MemoryPinStore) Snapshot() []pinning.PinSet {
	s.mu.RLock()
	out := make([]pinning.PinSet, 0, len(s.sets))
	for _, set := range s.sets {
		out = append(out, *set.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Hostname < out[j].Hostname })
	return out
}

// LoadFromFile 从 YAML 文件加载并原子替换全部 pin 集合。
func (s *MemoryPinStore) LoadFromFile(path string) error {
	sets, err := pinning.LoadFile(path)
	if err != nil {
		return err
	}
	if err := s.ReplaceAll(sets); err != nil {
		return err
	}
	logger.L().Info("pin_store.loaded",
		zap.String("path", path),
		zap.Int("count", len(sets)))
	return nil
}

// StartSweeper 启动过期清扫任务。spec 用 cron 表达式（支持 @every 形式）。
func (s *MemoryPinStore) StartSweeper(spec string) error {
	if spec == "" {
		spec = "@every 1m"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("sweeper already started")
	}
	c := cron.New()
	id, err := c.AddFunc(spec, s.sweepExpired)
	if err != nil {
		return fmt.Errorf("schedule pin sweep: %w", err)
	}
	s.cron = c
	s.sweepID = id
	c.Start()
	return nil
}

// Stop 停止清扫任务，等待在途执行结束。
func (s *MemoryPinStore) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// sweepExpired 移除已过期的集合。过期集合在读路径本就视同不存在，
// 清扫只是把它们从内存里真正拿掉。
func (s *MemoryPinStore) sweepExpired() {
	now := time.Now()
	removed := 0

	s.mu.Lock()
	for key, set := range s.sets {
		if set.Expired(now) {
			delete(s.sets, key)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		logger.L().Info("pin_store.sweep_removed", zap.Int("count", removed))
	}
}

// storeKey 规范化主机名作为存储键（小写、去端尾点、IDN 转 punycode）。
func storeKey(hostname string) (string, error) {
	key, _, err := safeurl.NormalizeHostname(hostname)
	if err != nil || key == "" {
		return "", fmt.Errorf("invalid pin hostname %q", hostname)
	}
	return key, nil
}
