package stats

import (
	"sync/atomic"
	"time"
)

// Stats 运行期计数器，挂在 /status 上观测
type Stats struct {
	depositTotal          uint64
	withdrawTotal         uint64
	withdrawRejectedTotal uint64
	withdrawAbortedTotal  uint64

	latency *LatencyRecorder
}

func NewStats() *Stats {
	return &Stats{
		latency: NewLatencyRecorder(2048),
	}
}

func (s *Stats) IncDeposit()          { atomic.AddUint64(&s.depositTotal, 1) }
func (s *Stats) IncWithdraw()         { atomic.AddUint64(&s.withdrawTotal, 1) }
func (s *Stats) IncWithdrawRejected() { atomic.AddUint64(&s.withdrawRejectedTotal, 1) }
func (s *Stats) IncWithdrawAborted()  { atomic.AddUint64(&s.withdrawAbortedTotal, 1) }

// RecordLatency 记录一次操作耗时
func (s *Stats) RecordLatency(name string, d time.Duration) {
	s.latency.Record(name, d)
}

// Snapshot 一次性导出所有计数
type Snapshot struct {
	DepositTotal          uint64                    `json:"deposit_total"`
	WithdrawTotal         uint64                    `json:"withdraw_total"`
	WithdrawRejectedTotal uint64                    `json:"withdraw_rejected_total"`
	WithdrawAbortedTotal  uint64                    `json:"withdraw_aborted_total"`
	Latency               map[string]LatencySummary `json:"latency"`
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		DepositTotal:          atomic.LoadUint64(&s.depositTotal),
		WithdrawTotal:         atomic.LoadUint64(&s.withdrawTotal),
		WithdrawRejectedTotal: atomic.LoadUint64(&s.withdrawRejectedTotal),
		WithdrawAbortedTotal:  atomic.LoadUint64(&s.withdrawAbortedTotal),
		Latency:               s.latency.Summaries(),
	}
}
