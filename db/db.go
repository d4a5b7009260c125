package db

import (
	"sync"
	"time"
	"vaultd/config"
	"vaultd/logs"

	"github.com/dgraph-io/badger/v4"
)

// ErrKeyNotFound 重新导出，调用方不必直接依赖 badger
var ErrKeyNotFound = badger.ErrKeyNotFound

// WriteTask 写队列中的一个任务
type WriteTask struct {
	Key    string
	Value  string
	Delete bool
}

type flushRequest struct {
	done chan error
}

// Manager 封装 BadgerDB 的管理器
type Manager struct {
	Db  *badger.DB
	cfg *config.Config

	// 队列通道，批量写的 goroutine 用它来取写请求
	writeQueueChan chan WriteTask
	// 强制刷盘通道
	forceFlushChan chan flushRequest
	// 用于通知写队列 goroutine 停止
	stopChan chan struct{}
	wg       sync.WaitGroup

	maxBatchSize  int
	flushInterval time.Duration

	closeOnce sync.Once
}

// NewManager 打开数据库并启动写队列
func NewManager(cfg *config.Config, dir string) (*Manager, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	opts := badger.DefaultOptions(dir).
		WithValueLogFileSize(cfg.Database.ValueLogFileSize).
		WithLogger(nil)
	database, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	mgr := &Manager{
		Db:  database,
		cfg: cfg,
	}
	mgr.InitWriteQueue(cfg.Database.MaxBatchSize, cfg.Database.FlushInterval)
	return mgr, nil
}

// Read 读取单个 key，未找到时返回 badger.ErrKeyNotFound
func (mgr *Manager) Read(key string) (string, error) {
	var val []byte
	err := mgr.Db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return "", err
	}
	return string(val), nil
}

// SetSync 同步写入并落盘。审计记录用它保证"先持久化、再回滚"。
func (mgr *Manager) SetSync(key string, value []byte) error {
	err := mgr.Db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return err
	}
	return mgr.Db.Sync()
}

// IteratePrefix 按前缀遍历，fn 返回错误时终止
func (mgr *Manager) IteratePrefix(prefix string, fn func(key string, value []byte) error) error {
	return mgr.Db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(string(item.Key()), val); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteKey 同步删除单个 key
func (mgr *Manager) DeleteKey(key string) error {
	return mgr.Db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Close 停止写队列并关闭数据库
func (mgr *Manager) Close() error {
	var err error
	mgr.closeOnce.Do(func() {
		close(mgr.stopChan)
		mgr.wg.Wait()
		if ferr := mgr.flushRemaining(); ferr != nil {
			logs.Error("[DB] flush on close failed: %v", ferr)
			err = ferr
		}
		if cerr := mgr.Db.Close(); cerr != nil {
			err = cerr
		}
	})
	return err
}
