package audit

import (
	"encoding/json"
	"math/big"
	"testing"
	"vaultd/config"
	"vaultd/db"
	"vaultd/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testDepositor = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testRecipient = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testAuthID    = common.HexToHash("0x00000000000000000000000000000000000000000000000000000000000000aa")
)

func newTestLog(t *testing.T) (*Log, *db.Manager) {
	t.Helper()
	dbManager, err := db.NewManager(config.DefaultConfig(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { dbManager.Close() })
	l, err := NewLog(dbManager, config.DefaultConfig())
	require.NoError(t, err)
	return l, dbManager
}

func TestEmitAndList(t *testing.T) {
	l, _ := newTestLog(t)
	require.Equal(t, uint64(0), l.LatestSeq())

	require.NoError(t, l.Emit(types.NewDeposited(testDepositor, big.NewInt(100), big.NewInt(100))))
	require.NoError(t, l.Emit(types.NewWithdrawn(testRecipient, big.NewInt(30), testAuthID, big.NewInt(70))))

	assert.Equal(t, uint64(2), l.LatestSeq())

	records, err := l.List(10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// 序列号单调且按时间序回放
	assert.Equal(t, uint64(1), records[0].Seq)
	assert.Equal(t, types.EventDepositRecorded, records[0].Type)
	assert.Equal(t, uint64(2), records[1].Seq)
	assert.Equal(t, types.EventWithdrawalCommitted, records[1].Type)

	// payload 可以解析回事件体
	var payload types.DepositedEvent
	require.NoError(t, json.Unmarshal(records[0].Payload, &payload))
	assert.Equal(t, testDepositor, payload.Depositor)
	assert.Equal(t, int64(100), (*big.Int)(payload.Amount).Int64())
}

func TestListLimit(t *testing.T) {
	l, _ := newTestLog(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Emit(types.NewDeposited(testDepositor, big.NewInt(1), big.NewInt(int64(i+1)))))
	}

	records, err := l.List(3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, uint64(1), records[0].Seq)

	// limit<=0 时取配置上限
	records, err = l.List(0)
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

// TestSeqRecovery 重启后序列号从已落盘记录恢复，不回退不重复
func TestSeqRecovery(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()

	dbManager, err := db.NewManager(cfg, dir)
	require.NoError(t, err)

	l, err := NewLog(dbManager, cfg)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Emit(types.NewDeposited(testDepositor, big.NewInt(1), big.NewInt(int64(i+1)))))
	}
	require.NoError(t, dbManager.Close())

	reopened, err := db.NewManager(cfg, dir)
	require.NoError(t, err)
	defer reopened.Close()

	restored, err := NewLog(reopened, cfg)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), restored.LatestSeq())

	// 新记录接在后面
	require.NoError(t, restored.Emit(types.NewDeposited(testDepositor, big.NewInt(1), big.NewInt(4))))
	records, err := restored.List(10)
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, uint64(4), records[3].Seq)
}

// TestSeqRecoveryStaleCursor 游标落后于已落盘记录时取扫描出的最大值
func TestSeqRecoveryStaleCursor(t *testing.T) {
	l, dbManager := newTestLog(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Emit(types.NewDeposited(testDepositor, big.NewInt(1), big.NewInt(int64(i+1)))))
	}
	// 游标人为落后（模拟异步队列未刷就崩溃）
	require.NoError(t, dbManager.SetSync("v1_latest_audit_seq", []byte("1")))

	restored, err := NewLog(dbManager, config.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), restored.LatestSeq())
}

func TestSubscribe(t *testing.T) {
	l, _ := newTestLog(t)
	ch := l.Subscribe()

	require.NoError(t, l.Emit(types.NewDeposited(testDepositor, big.NewInt(7), big.NewInt(7))))

	select {
	case rec := <-ch:
		assert.Equal(t, uint64(1), rec.Seq)
		assert.Equal(t, types.EventDepositRecorded, rec.Type)
	default:
		t.Fatal("expected record on subscriber channel")
	}
}
