package auth

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"vaultd/db"
	"vaultd/interfaces"
	"vaultd/keys"
	"vaultd/logs"
	"vaultd/types"
	"vaultd/utils"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrAlreadyConsumed 授权ID已被消费过
	ErrAlreadyConsumed = errors.New("authorization already consumed")
	// ErrScopeMismatch 授权ID与提款参数的承诺不一致
	ErrScopeMismatch = errors.New("authorization scope mismatch")
)

// 消费集分片数。固定为2的幂，用 SipHash 低位选片
const shardCount = 16

type consumedShard struct {
	mu  sync.RWMutex
	ids map[common.Hash]struct{}
}

// Manager 持有已消费授权ID集合。
// 集合单调增长：一个ID一旦消费（并提交）就永远存在，这是防重放的基础。
// 它不感知余额，也不执行转账。
type Manager struct {
	shards    [shardCount]*consumedShard
	dbManager *db.Manager
	sink      interfaces.EventSink
}

// NewManager 创建授权管理器并从DB恢复消费集
func NewManager(dbManager *db.Manager, sink interfaces.EventSink) (*Manager, error) {
	mgr := &Manager{
		dbManager: dbManager,
		sink:      sink,
	}
	for i := range mgr.shards {
		mgr.shards[i] = &consumedShard{ids: make(map[common.Hash]struct{})}
	}
	if err := mgr.loadFromDB(); err != nil {
		return nil, err
	}
	return mgr, nil
}

// loadFromDB 启动时重建内存消费集
func (mgr *Manager) loadFromDB() error {
	if mgr.dbManager == nil {
		return nil
	}
	count := 0
	prefix := keys.PrefixConsumed()
	err := mgr.dbManager.IteratePrefix(prefix, func(key string, _ []byte) error {
		idHex := strings.TrimPrefix(key, prefix)
		item, ok := utils.ConvertHexToAuthID(idHex)
		if !ok {
			logs.Warn("[Auth] skip malformed consumed key: %s", key)
			return nil
		}
		id := common.Hash(item)
		shard := mgr.shardFor(id)
		shard.ids[id] = struct{}{}
		count++
		return nil
	})
	if err != nil {
		return fmt.Errorf("auth: load consumed set: %w", err)
	}
	logs.Info("[Auth] loaded %d consumed authorization ids", count)
	return nil
}

func (mgr *Manager) shardFor(id common.Hash) *consumedShard {
	item := utils.AuthIDItem(id)
	return mgr.shards[item.Hash()&(shardCount-1)]
}

// VerifyAuthorization 原子的 check-and-consume：
//  1. id 已在消费集 → ErrAlreadyConsumed
//  2. id 与重算的承诺不等 → ErrScopeMismatch
//  3. 把 id 写入消费集（内存 + 持久化队列）
//  4. 发出 AuthorizationConsumed 事件
//
// 失败路径不产生任何状态变化。
func (mgr *Manager) VerifyAuthorization(vault common.Address, chainID *big.Int, recipient common.Address, amount *big.Int, id common.Hash) error {
	if chainID == nil || amount == nil || amount.BitLen() > 256 || chainID.BitLen() > 256 {
		return ErrScopeMismatch
	}

	shard := mgr.shardFor(id)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if _, ok := shard.ids[id]; ok {
		return ErrAlreadyConsumed
	}

	expected := ComputeAuthorizationID(vault, chainID, recipient, amount)
	if id != expected {
		return ErrScopeMismatch
	}

	// check 通过，在同一把分片锁内完成 consume
	shard.ids[id] = struct{}{}
	if mgr.dbManager != nil {
		mgr.dbManager.EnqueueSet(keys.KeyConsumed(idHex(id)), "")
	}

	if mgr.sink != nil {
		if err := mgr.sink.Emit(types.NewAuthorizationConsumed(id, vault, recipient, amount)); err != nil {
			logs.Error("[Auth] emit consumed event failed: %v", err)
		}
	}
	return nil
}

// RollbackConsumption 撤销一次尚未对外提交的消费。
// 只允许金库在同一提款单元的回滚路径内调用；对已提交的消费调用它
// 会破坏单调性，因此除该路径外不得使用。
func (mgr *Manager) RollbackConsumption(id common.Hash) {
	shard := mgr.shardFor(id)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if _, ok := shard.ids[id]; !ok {
		return
	}
	delete(shard.ids, id)
	if mgr.dbManager != nil {
		mgr.dbManager.EnqueueDelete(keys.KeyConsumed(idHex(id)))
	}
	logs.Verbose("[Auth] rolled back consumption of %s", id.Hex())
}

// IsAuthorizationConsumed 纯读
func (mgr *Manager) IsAuthorizationConsumed(id common.Hash) bool {
	shard := mgr.shardFor(id)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	_, ok := shard.ids[id]
	return ok
}

// ConsumedCount 当前消费集大小，仅用于状态观测
func (mgr *Manager) ConsumedCount() int {
	total := 0
	for _, shard := range mgr.shards {
		shard.mu.RLock()
		total += len(shard.ids)
		shard.mu.RUnlock()
	}
	return total
}

func idHex(id common.Hash) string {
	return strings.TrimPrefix(id.Hex(), "0x")
}
