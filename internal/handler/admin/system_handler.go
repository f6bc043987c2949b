package admin

import (
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/Wei-Shaw/fetchguard/internal/pkg/response"
)

// SystemHandler exposes a host and runtime snapshot
type SystemHandler struct {
	startedAt time.Time
}

// NewSystemHandler creates a new system snapshot handler
func NewSystemHandler() *SystemHandler {
	return &SystemHandler{startedAt: time.Now()}
}

// Info returns host, memory, cpu and Go runtime stats
// GET /admin/system
// 容器里部分探测项可能拿不到，探测失败的字段直接省略而不是整体报错。
func (h *SystemHandler) Info(c *gin.Context) {
	ctx := c.Request.Context()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	out := gin.H{
		"go_version":       runtime.Version(),
		"goroutines":       runtime.NumGoroutine(),
		"gomaxprocs":       runtime.GOMAXPROCS(0),
		"uptime_seconds":   int64(time.Since(h.startedAt).Seconds()),
		"heap_alloc_bytes": ms.HeapAlloc,
		"heap_sys_bytes":   ms.HeapSys,
		"gc_runs":          ms.NumGC,
	}

	if info, err := host.InfoWithContext(ctx); err == nil {
		out["host"] = gin.H{
			"hostname":         info.Hostname,
			"os":               info.OS,
			"platform":         info.Platform,
			"platform_version": info.PlatformVersion,
			"kernel_version":   info.KernelVersion,
			"uptime_seconds":   info.Uptime,
		}
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		out["memory"] = gin.H{
			"total_bytes":     vm.Total,
			"available_bytes": vm.Available,
			"used_bytes":      vm.Used,
			"used_percent":    vm.UsedPercent,
		}
	}
	if cores, err := cpu.CountsWithContext(ctx, true); err == nil {
		out["cpu_cores"] = cores
	}
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		out["cpu_percent"] = percents[0]
	}

	response.Success(c, out)
}
