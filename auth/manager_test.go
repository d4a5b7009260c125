package auth

import (
	"math/big"
	"sync"
	"testing"
	"vaultd/config"
	"vaultd/db"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	mgr, err := NewManager(nil, nil)
	require.NoError(t, err)
	return mgr
}

func TestVerifyAuthorizationSuccess(t *testing.T) {
	mgr := newTestManager(t)
	vault := common.HexToAddress("0x1111111111111111111111111111111111111111")
	recipient := common.HexToAddress("0x2222222222222222222222222222222222222222")
	chainID := big.NewInt(1)
	amount := big.NewInt(5)

	id := ComputeAuthorizationID(vault, chainID, recipient, amount)
	require.False(t, mgr.IsAuthorizationConsumed(id))

	err := mgr.VerifyAuthorization(vault, chainID, recipient, amount, id)
	assert.NoError(t, err)
	assert.True(t, mgr.IsAuthorizationConsumed(id))
	assert.Equal(t, 1, mgr.ConsumedCount())
}

// TestVerifyAuthorizationReplay 同一个ID第二次使用必须失败，
// 无论参数是否相同
func TestVerifyAuthorizationReplay(t *testing.T) {
	mgr := newTestManager(t)
	vault := common.HexToAddress("0x1111111111111111111111111111111111111111")
	recipient := common.HexToAddress("0x2222222222222222222222222222222222222222")
	other := common.HexToAddress("0x3333333333333333333333333333333333333333")
	chainID := big.NewInt(1)
	amount := big.NewInt(5)

	id := ComputeAuthorizationID(vault, chainID, recipient, amount)
	require.NoError(t, mgr.VerifyAuthorization(vault, chainID, recipient, amount, id))

	// 完全相同的参数
	err := mgr.VerifyAuthorization(vault, chainID, recipient, amount, id)
	assert.ErrorIs(t, err, ErrAlreadyConsumed)

	// 换一套参数也一样：先查消费集，再查承诺
	err = mgr.VerifyAuthorization(other, chainID, recipient, amount, id)
	assert.ErrorIs(t, err, ErrAlreadyConsumed)
}

// TestVerifyAuthorizationScopeMismatch 授权绑定的是精确四元组，
// 任何字段偏离都必须拒绝，且不产生状态变化
func TestVerifyAuthorizationScopeMismatch(t *testing.T) {
	mgr := newTestManager(t)
	vault := common.HexToAddress("0x1111111111111111111111111111111111111111")
	recipientA := common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipientB := common.HexToAddress("0x3333333333333333333333333333333333333333")
	chainID := big.NewInt(1)
	amount := big.NewInt(5)

	// 给 recipientB 签发的ID拿去给 recipientA 提款
	id := ComputeAuthorizationID(vault, chainID, recipientB, amount)
	err := mgr.VerifyAuthorization(vault, chainID, recipientA, amount, id)
	assert.ErrorIs(t, err, ErrScopeMismatch)

	// 失败不得污染消费集
	assert.False(t, mgr.IsAuthorizationConsumed(id))
	assert.Equal(t, 0, mgr.ConsumedCount())

	// 金额偏离
	err = mgr.VerifyAuthorization(vault, chainID, recipientB, big.NewInt(6), id)
	assert.ErrorIs(t, err, ErrScopeMismatch)

	// 链偏离
	err = mgr.VerifyAuthorization(vault, big.NewInt(2), recipientB, amount, id)
	assert.ErrorIs(t, err, ErrScopeMismatch)

	// 正确的四元组仍然可用
	assert.NoError(t, mgr.VerifyAuthorization(vault, chainID, recipientB, amount, id))
}

func TestRollbackConsumption(t *testing.T) {
	mgr := newTestManager(t)
	vault := common.HexToAddress("0x1111111111111111111111111111111111111111")
	recipient := common.HexToAddress("0x2222222222222222222222222222222222222222")
	chainID := big.NewInt(1)
	amount := big.NewInt(5)

	id := ComputeAuthorizationID(vault, chainID, recipient, amount)
	require.NoError(t, mgr.VerifyAuthorization(vault, chainID, recipient, amount, id))
	require.True(t, mgr.IsAuthorizationConsumed(id))

	// 回滚后同一个授权重新可用（转账失败路径）
	mgr.RollbackConsumption(id)
	assert.False(t, mgr.IsAuthorizationConsumed(id))
	assert.NoError(t, mgr.VerifyAuthorization(vault, chainID, recipient, amount, id))

	// 对未消费ID回滚是空操作
	mgr.RollbackConsumption(common.HexToHash("0xabcd"))
}

// TestVerifyAuthorizationConcurrent 并发使用同一个ID，必须恰好一个成功
func TestVerifyAuthorizationConcurrent(t *testing.T) {
	mgr := newTestManager(t)
	vault := common.HexToAddress("0x1111111111111111111111111111111111111111")
	recipient := common.HexToAddress("0x2222222222222222222222222222222222222222")
	chainID := big.NewInt(1)
	amount := big.NewInt(5)
	id := ComputeAuthorizationID(vault, chainID, recipient, amount)

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- mgr.VerifyAuthorization(vault, chainID, recipient, amount, id)
		}()
	}
	wg.Wait()
	close(results)

	success, replayed := 0, 0
	for err := range results {
		switch {
		case err == nil:
			success++
		case err == ErrAlreadyConsumed:
			replayed++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, success)
	assert.Equal(t, workers-1, replayed)
}

// TestManagerPersistence 消费集跨重启恢复
func TestManagerPersistence(t *testing.T) {
	cfg := config.DefaultConfig()
	dbManager, err := db.NewManager(cfg, t.TempDir())
	require.NoError(t, err)
	defer dbManager.Close()

	mgr, err := NewManager(dbManager, nil)
	require.NoError(t, err)

	vault := common.HexToAddress("0x1111111111111111111111111111111111111111")
	recipient := common.HexToAddress("0x2222222222222222222222222222222222222222")
	chainID := big.NewInt(1)
	amount := big.NewInt(5)
	id := ComputeAuthorizationID(vault, chainID, recipient, amount)

	require.NoError(t, mgr.VerifyAuthorization(vault, chainID, recipient, amount, id))
	require.NoError(t, dbManager.ForceFlush())

	// 新实例从同一个DB重建消费集
	reloaded, err := NewManager(dbManager, nil)
	require.NoError(t, err)
	assert.True(t, reloaded.IsAuthorizationConsumed(id))
	assert.ErrorIs(t, reloaded.VerifyAuthorization(vault, chainID, recipient, amount, id), ErrAlreadyConsumed)
}
