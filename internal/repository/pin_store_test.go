package repository

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Wei-Shaw/fetchguard/internal/pkg/pinning"
)

const (
	testPinA = "sha256/AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="
	testPinB = "sha256/AQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQE="
	testPinC = "sha256/AgICAgICAgICAgICAgICAgICAgICAgICAgICAgICAgI="
)

func TestMemoryPinStore_AddGetRemove(t *testing.T) {
	store := NewMemoryPinStore()

	require.NoError(t, store.AddPins(&pinning.PinSet{
		Hostname: "API.Example.COM.",
		Pins:     []string{testPinA},
		Enforce:  true,
	}))

	// 存储键规范化：大小写、尾部点都不影响命中
	got := store.GetPins("api.example.com")
	require.NotNil(t, got)
	require.Equal(t, "api.example.com", got.Hostname)
	require.Equal(t, []string{testPinA}, got.Pins)
	require.True(t, got.Enforce)

	// 返回的是深拷贝，改写不影响存储内容
	got.Pins[0] = "tampered"
	again := store.GetPins("api.example.com")
	require.Equal(t, []string{testPinA}, again.Pins)

	require.True(t, store.RemovePins("api.example.com"))
	require.False(t, store.RemovePins("api.example.com"))
	require.Nil(t, store.GetPins("api.example.com"))
}

func TestMemoryPinStore_AddValidation(t *testing.T) {
	store := NewMemoryPinStore()

	require.Error(t, store.AddPins(nil))
	require.Error(t, store.AddPins(&pinning.PinSet{Hostname: "example.com"}))
	require.Error(t, store.AddPins(&pinning.PinSet{
		Hostname: "example.com",
		Pins:     []string{"sha256/short"},
	}))
	require.Error(t, store.AddPins(&pinning.PinSet{
		Hostname: "",
		Pins:     []string{testPinA},
	}))
}

func TestMemoryPinStore_SubdomainWalk(t *testing.T) {
	store := NewMemoryPinStore()

	require.NoError(t, store.AddPins(&pinning.PinSet{
		Hostname:          "example.com",
		Pins:              []string{testPinA},
		IncludeSubdomains: true,
	}))
	require.NoError(t, store.AddPins(&pinning.PinSet{
		Hostname: "exact.example.org",
		Pins:     []string{testPinB},
	}))

	// 子域沿父域命中 includeSubdomains=true 的条目
	got := store.GetPins("deep.a.example.com")
	require.NotNil(t, got)
	require.Equal(t, "example.com", got.Hostname)

	// 父域条目未开 includeSubdomains 时对子域不生效
	require.Nil(t, store.GetPins("sub.exact.example.org"))
	require.NotNil(t, store.GetPins("exact.example.org"))

	// 精确条目优先于父域条目
	require.NoError(t, store.AddPins(&pinning.PinSet{
		Hostname: "a.example.com",
		Pins:     []string{testPinC},
	}))
	got = store.GetPins("a.example.com")
	require.Equal(t, "a.example.com", got.Hostname)
	require.Equal(t, []string{testPinC}, got.Pins)
}

func TestMemoryPinStore_Expiry(t *testing.T) {
	store := NewMemoryPinStore()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	require.NoError(t, store.AddPins(&pinning.PinSet{
		Hostname:  "expired.example.com",
		Pins:      []string{testPinA},
		ExpiresAt: &past,
	}))
	require.NoError(t, store.AddPins(&pinning.PinSet{
		Hostname:  "live.example.com",
		Pins:      []string{testPinB},
		ExpiresAt: &future,
	}))
	require.NoError(t, store.AddPins(&pinning.PinSet{
		Hostname:          "expired-parent.example.com",
		Pins:              []string{testPinC},
		IncludeSubdomains: true,
		ExpiresAt:         &past,
	}))

	// 过期条目视同不存在，精确与父域查找一致
	require.Nil(t, store.GetPins("expired.example.com"))
	require.NotNil(t, store.GetPins("live.example.com"))
	require.Nil(t, store.GetPins("sub.expired-parent.example.com"))

	// 清扫把过期条目真正移除
	store.sweepExpired()
	snapshot := store.Snapshot()
	require.Len(t, snapshot, 1)
	require.Equal(t, "live.example.com", snapshot[0].Hostname)
}

func TestMemoryPinStore_ReplaceAllAtomic(t *testing.T) {
	store := NewMemoryPinStore()
	require.NoError(t, store.AddPins(&pinning.PinSet{
		Hostname: "keep.example.com",
		Pins:     []string{testPinA},
	}))

	// 任何一条非法则整体不生效
	err := store.ReplaceAll([]pinning.PinSet{
		{Hostname: "good.example.com", Pins: []string{testPinB}},
		{Hostname: "bad.example.com", Pins: []string{"not-a-pin"}},
	})
	require.Error(t, err)
	require.NotNil(t, store.GetPins("keep.example.com"))
	require.Nil(t, store.GetPins("good.example.com"))

	require.NoError(t, store.ReplaceAll([]pinning.PinSet{
		{Hostname: "b.example.com", Pins: []string{testPinB}},
		{Hostname: "a.example.com", Pins: []string{testPinC}},
	}))
	require.Nil(t, store.GetPins("keep.example.com"))

	snapshot := store.Snapshot()
	require.Len(t, snapshot, 2)
	// Snapshot 按主机名排序
	require.Equal(t, "a.example.com", snapshot[0].Hostname)
	require.Equal(t, "b.example.com", snapshot[1].Hostname)
}

func TestMemoryPinStore_LoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pins.yaml")
	content := `pins:
  - hostname: api.example.com
    pins:
      - ` + testPinA + `
    enforce: true
  - hostname: cdn.example.com
    pins:
      - ` + testPinB + `
    include_subdomains: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	store := NewMemoryPinStore()
	require.NoError(t, store.LoadFromFile(path))
	require.NotNil(t, store.GetPins("api.example.com"))
	require.NotNil(t, store.GetPins("edge.cdn.example.com"))

	require.Error(t, store.LoadFromFile(filepath.Join(dir, "missing.yaml")))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("pins:\n  - hostname: x\n    pins: [oops]\n"), 0o600))
	require.Error(t, store.LoadFromFile(bad))
	// 加载失败不影响既有内容
	require.NotNil(t, store.GetPins("api.example.com"))
}

func TestMemoryPinStore_Sweeper(t *testing.T) {
	store := NewMemoryPinStore()
	require.NoError(t, store.StartSweeper("@every 1h"))
	require.Error(t, store.StartSweeper("@every 1h"))
	store.Stop()
	store.Stop()

	require.Error(t, NewMemoryPinStore().StartSweeper("not a cron spec"))
}

func TestMemoryPinStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryPinStore()
	require.NoError(t, store.AddPins(&pinning.PinSet{
		Hostname:          "example.com",
		Pins:              []string{testPinA},
		IncludeSubdomains: true,
	}))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = store.AddPins(&pinning.PinSet{
					Hostname: "rotating.example.com",
					Pins:     []string{testPinB},
				})
				store.RemovePins("rotating.example.com")
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = store.GetPins("deep.example.com")
				_ = store.Snapshot()
			}
		}()
	}
	wg.Wait()

	require.NotNil(t, store.GetPins("example.com"))
}
