package audit

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
	"vaultd/config"
	"vaultd/db"
	"vaultd/interfaces"
	"vaultd/keys"
	"vaultd/logs"
	"vaultd/types"
	"vaultd/utils"
)

// Record 一条审计记录。Seq 全局单调递增，键按序列号零填充，
// 因此按键前缀扫描即按时间序回放。
type Record struct {
	Seq     uint64          `json:"seq"`
	Type    types.EventType `json:"type"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

// Log 追加式审计日志。
// Emit 在返回前同步落盘：提款失败路径先写审计记录再回滚状态，
// 所以这里不能走异步写队列。
type Log struct {
	dbManager *db.Manager
	cfg       *config.Config
	seq       uint64 // atomic

	mu   sync.RWMutex
	subs []chan Record
}

// NewLog 创建审计日志并恢复序列号
func NewLog(dbManager *db.Manager, cfg *config.Config) (*Log, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	l := &Log{
		dbManager: dbManager,
		cfg:       cfg,
	}
	val, err := dbManager.Read(keys.KeyLatestAuditSeq())
	if err == nil {
		seq, perr := strconv.ParseUint(val, 10, 64)
		if perr != nil {
			return nil, fmt.Errorf("audit: corrupt latest seq %q: %w", val, perr)
		}
		l.seq = seq
	} else if err != db.ErrKeyNotFound {
		return nil, err
	}
	// 游标走的是异步队列，可能落后于已落盘的记录；扫描补齐
	err = dbManager.IteratePrefix(keys.PrefixAudit(), func(_ string, value []byte) error {
		var rec Record
		if uerr := json.Unmarshal(value, &rec); uerr != nil {
			return nil // 跳过坏记录，不阻塞启动
		}
		if rec.Seq > l.seq {
			l.seq = rec.Seq
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Emit 实现 interfaces.EventSink。同步持久化，再通知订阅者。
func (l *Log) Emit(ev interfaces.Event) error {
	payload, err := json.Marshal(ev.Data())
	if err != nil {
		return fmt.Errorf("audit: marshal payload: %w", err)
	}
	rec := Record{
		Seq:     atomic.AddUint64(&l.seq, 1),
		Type:    ev.Type(),
		At:      time.Now().UTC(),
		Payload: payload,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("audit: marshal record: %w", err)
	}

	key := keys.KeyAuditEvent(rec.Seq, utils.ShortID(data))
	if err := l.dbManager.SetSync(key, data); err != nil {
		return fmt.Errorf("audit: persist record: %w", err)
	}
	// 序列号游标走异步队列即可，丢失时重启会从扫描中恢复更大值
	l.dbManager.EnqueueSet(keys.KeyLatestAuditSeq(), strconv.FormatUint(rec.Seq, 10))

	l.notify(rec)
	logs.Trace("[Audit] #%d %s", rec.Seq, rec.Type)
	return nil
}

// Subscribe 返回一个接收后续审计记录的通道。
// 慢消费者会丢事件（非阻塞投递），持久化记录才是权威序列。
func (l *Log) Subscribe() <-chan Record {
	ch := make(chan Record, l.cfg.Audit.SubscriberBuffer)
	l.mu.Lock()
	l.subs = append(l.subs, ch)
	l.mu.Unlock()
	return ch
}

func (l *Log) notify(rec Record) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, ch := range l.subs {
		select {
		case ch <- rec:
		default:
			logs.Warn("[Audit] subscriber buffer full, dropping #%d", rec.Seq)
		}
	}
}

// List 按时间序返回最多 limit 条审计记录（从最早开始）
func (l *Log) List(limit int) ([]Record, error) {
	maxLimit := l.cfg.Audit.MaxListLimit
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}
	records := make([]Record, 0, limit)
	stop := fmt.Errorf("audit: done")
	err := l.dbManager.IteratePrefix(keys.PrefixAudit(), func(_ string, value []byte) error {
		var rec Record
		if uerr := json.Unmarshal(value, &rec); uerr != nil {
			return uerr
		}
		records = append(records, rec)
		if len(records) >= limit {
			return stop
		}
		return nil
	})
	if err != nil && err != stop {
		return nil, err
	}
	return records, nil
}

// LatestSeq 当前序列号
func (l *Log) LatestSeq() uint64 {
	return atomic.LoadUint64(&l.seq)
}
