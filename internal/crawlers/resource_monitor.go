package crawlers

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/osintkit/tiercrawl/internal/utils"
)

// ResourceMonitor derives a browser tab ceiling from live system resources.
// Each rendering tab costs real memory, so the ceiling tracks available RAM
// and backs off under CPU pressure rather than trusting a static number.
type ResourceMonitor struct {
	limit        int
	tabMemory    uint64
	cpuThreshold float64

	mu       sync.Mutex
	cached   int
	cachedAt time.Time
}

// NewResourceMonitor creates a monitor capped at limit tabs. tabMemory is
// the assumed per-tab memory cost; zero picks a conservative 150MB.
func NewResourceMonitor(limit int, tabMemory uint64) *ResourceMonitor {
	if limit < 1 {
		limit = 1
	}
	if tabMemory == 0 {
		tabMemory = 150 << 20
	}
	return &ResourceMonitor{
		limit:        limit,
		tabMemory:    tabMemory,
		cpuThreshold: 85,
	}
}

// MaxTabs returns the number of tabs the system can sustain right now,
// never above the configured limit and never below 1. The reading is cached
// for a second since sampling has a cost of its own.
func (m *ResourceMonitor) MaxTabs() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.cachedAt) < time.Second && m.cached > 0 {
		return m.cached
	}

	tabs := m.limit
	if vm, err := mem.VirtualMemory(); err == nil {
		byMemory := int(vm.Available / m.tabMemory)
		if byMemory < tabs {
			tabs = byMemory
		}
	} else {
		utils.Warnf("read system memory: %v", err)
	}

	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		if percentages[0] > m.cpuThreshold {
			tabs /= 2
		}
	}

	if tabs < 1 {
		tabs = 1
	}
	m.cached = tabs
	m.cachedAt = time.Now()
	return tabs
}
