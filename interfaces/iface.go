package interfaces

import (
	"context"
	"math/big"
	"vaultd/types"

	"github.com/ethereum/go-ethereum/common"
)

type Event interface {
	Type() types.EventType
	Data() interface{}
}

// EventSink 审计事件接收端。Emit 必须在返回前完成持久化，
// 失败审计记录要求先落盘再回滚状态。
type EventSink interface {
	Emit(ev Event) error
}

// ============================================
// 授权管理器接口定义
// ============================================

// Authorizer 校验并消费单次授权
type Authorizer interface {
	// VerifyAuthorization 原子的 check-and-consume：
	// 成功即把 id 标记为已消费；失败不产生任何状态变化。
	VerifyAuthorization(vault common.Address, chainID *big.Int, recipient common.Address, amount *big.Int, id common.Hash) error

	// RollbackConsumption 撤销一次尚未对外提交的消费记录。
	// 仅允许金库在同一提款单元的回滚路径内调用。
	RollbackConsumption(id common.Hash)

	// IsAuthorizationConsumed 纯读
	IsAuthorizationConsumed(id common.Hash) bool
}

// TransferEngine 外部价值转移执行器。
// 返回 nil 表示转账已完全成功，任何错误都会触发整个提款单元回滚。
type TransferEngine interface {
	Transfer(ctx context.Context, recipient common.Address, amount *big.Int) error
}
