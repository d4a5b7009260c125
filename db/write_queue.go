package db

import (
	"time"
	"vaultd/logs"

	"github.com/dgraph-io/badger/v4"
)

// InitWriteQueue 启动批量写 goroutine
func (mgr *Manager) InitWriteQueue(maxBatchSize int, flushInterval time.Duration) {
	if maxBatchSize <= 0 {
		maxBatchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 200 * time.Millisecond
	}
	mgr.maxBatchSize = maxBatchSize
	mgr.flushInterval = flushInterval
	mgr.writeQueueChan = make(chan WriteTask, mgr.cfg.Database.WriteQueueSize)
	mgr.forceFlushChan = make(chan flushRequest, 1)
	mgr.stopChan = make(chan struct{})
	mgr.wg.Add(1)
	go mgr.runWriteQueue()
}

// EnqueueSet 把一次写操作放入队列
func (mgr *Manager) EnqueueSet(key, value string) {
	mgr.writeQueueChan <- WriteTask{Key: key, Value: value}
}

// EnqueueDelete 把一次删除操作放入队列
func (mgr *Manager) EnqueueDelete(key string) {
	mgr.writeQueueChan <- WriteTask{Key: key, Delete: true}
}

// ForceFlush 同步地把队列中尚未落盘的任务全部写入
func (mgr *Manager) ForceFlush() error {
	req := flushRequest{done: make(chan error, 1)}
	select {
	case mgr.forceFlushChan <- req:
		return <-req.done
	case <-mgr.stopChan:
		return mgr.flushRemaining()
	}
}

// runWriteQueue 写队列主循环：攒批 + 定时刷盘
func (mgr *Manager) runWriteQueue() {
	defer mgr.wg.Done()

	batch := make([]WriteTask, 0, mgr.maxBatchSize)
	ticker := time.NewTicker(mgr.flushInterval)
	defer ticker.Stop()

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := mgr.flushBatch(batch)
		batch = batch[:0]
		return err
	}

	for {
		select {
		case task := <-mgr.writeQueueChan:
			batch = append(batch, task)
			if len(batch) >= mgr.maxBatchSize {
				if err := flush(); err != nil {
					logs.Error("[DB] write queue flush failed: %v", err)
				}
			}
		case <-ticker.C:
			if err := flush(); err != nil {
				logs.Error("[DB] write queue flush failed: %v", err)
			}
		case req := <-mgr.forceFlushChan:
			// 先把 channel 里积压的任务也取出来
			mgr.drainInto(&batch)
			req.done <- flush()
		case <-mgr.stopChan:
			mgr.drainInto(&batch)
			if err := flush(); err != nil {
				logs.Error("[DB] final flush failed: %v", err)
			}
			return
		}
	}
}

// drainInto 非阻塞地取出队列中剩余任务
func (mgr *Manager) drainInto(batch *[]WriteTask) {
	for {
		select {
		case task := <-mgr.writeQueueChan:
			*batch = append(*batch, task)
		default:
			return
		}
	}
}

// flushBatch 按 MaxCountPerTxn 分段提交，避免单事务过大
func (mgr *Manager) flushBatch(batch []WriteTask) error {
	maxPerTxn := mgr.cfg.Database.MaxCountPerTxn
	if maxPerTxn <= 0 {
		maxPerTxn = 500
	}
	for start := 0; start < len(batch); start += maxPerTxn {
		end := start + maxPerTxn
		if end > len(batch) {
			end = len(batch)
		}
		chunk := batch[start:end]
		err := mgr.Db.Update(func(txn *badger.Txn) error {
			for _, task := range chunk {
				if task.Delete {
					if err := txn.Delete([]byte(task.Key)); err != nil {
						return err
					}
					continue
				}
				if err := txn.Set([]byte(task.Key), []byte(task.Value)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// flushRemaining 停机后兜底刷掉 channel 残留
func (mgr *Manager) flushRemaining() error {
	batch := make([]WriteTask, 0, mgr.maxBatchSize)
	mgr.drainInto(&batch)
	if len(batch) == 0 {
		return nil
	}
	return mgr.flushBatch(batch)
}
