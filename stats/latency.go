package stats

import (
	"sort"
	"sync"
	"time"
)

// LatencySummary 单个指标的延迟分位统计
type LatencySummary struct {
	Count uint64        `json:"count"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
	Max   time.Duration `json:"max"`
}

type latencyMetric struct {
	samples []int64 // 纳秒，环形缓冲区
	nextIdx int
	filled  bool
	count   uint64
	maxNs   int64
}

// LatencyRecorder 固定容量延迟记录器（支持分位数）
type LatencyRecorder struct {
	mu       sync.RWMutex
	capacity int
	metrics  map[string]*latencyMetric
}

func NewLatencyRecorder(capacity int) *LatencyRecorder {
	if capacity <= 0 {
		capacity = 2048
	}
	return &LatencyRecorder{
		capacity: capacity,
		metrics:  make(map[string]*latencyMetric),
	}
}

// Record 记录一个样本
func (r *LatencyRecorder) Record(name string, d time.Duration) {
	ns := d.Nanoseconds()
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.metrics[name]
	if !ok {
		m = &latencyMetric{samples: make([]int64, r.capacity)}
		r.metrics[name] = m
	}
	m.samples[m.nextIdx] = ns
	m.nextIdx++
	if m.nextIdx >= r.capacity {
		m.nextIdx = 0
		m.filled = true
	}
	m.count++
	if ns > m.maxNs {
		m.maxNs = ns
	}
}

// Summaries 导出所有指标的分位统计
func (r *LatencyRecorder) Summaries() map[string]LatencySummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]LatencySummary, len(r.metrics))
	for name, m := range r.metrics {
		n := m.nextIdx
		if m.filled {
			n = r.capacity
		}
		if n == 0 {
			out[name] = LatencySummary{Count: m.count}
			continue
		}
		sorted := make([]int64, n)
		copy(sorted, m.samples[:n])
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		out[name] = LatencySummary{
			Count: m.count,
			P50:   time.Duration(sorted[percentileIdx(n, 50)]),
			P95:   time.Duration(sorted[percentileIdx(n, 95)]),
			P99:   time.Duration(sorted[percentileIdx(n, 99)]),
			Max:   time.Duration(m.maxNs),
		}
	}
	return out
}

func percentileIdx(n, p int) int {
	idx := n*p/100 - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return idx
}
