package sender

import (
	"context"
	"math/big"
	"sync"
	"vaultd/logs"

	"github.com/ethereum/go-ethereum/common"
)

// TransferRecord 一次成功执行的转账
type TransferRecord struct {
	Recipient common.Address
	Amount    *big.Int
}

// LoopbackEngine 进程内转账引擎，不产生真实外部效果。
// 本地运行和测试用；FailNext 注入一次性失败来演练回滚路径。
type LoopbackEngine struct {
	mu        sync.Mutex
	Transfers []TransferRecord
	FailNext  error
}

func NewLoopbackEngine() *LoopbackEngine {
	return &LoopbackEngine{}
}

// Transfer 实现 interfaces.TransferEngine
func (e *LoopbackEngine) Transfer(_ context.Context, recipient common.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.FailNext != nil {
		err := e.FailNext
		e.FailNext = nil
		return err
	}
	e.Transfers = append(e.Transfers, TransferRecord{
		Recipient: recipient,
		Amount:    new(big.Int).Set(amount),
	})
	logs.Verbose("[Sender] loopback transfer %s -> %s", amount.String(), recipient.Hex())
	return nil
}

// Count 已执行的转账数
func (e *LoopbackEngine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Transfers)
}
