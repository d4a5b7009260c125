package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ============================================
// 事件系统
// ============================================

type EventType string

const (
	EventDepositRecorded       EventType = "deposit.recorded"
	EventWithdrawalCommitted   EventType = "withdrawal.committed"
	EventWithdrawalAborted     EventType = "withdrawal.aborted"
	EventAuthorizationConsumed EventType = "authorization.consumed"
	EventAuthorizationRejected EventType = "authorization.rejected"
)

type BaseEvent struct {
	EventType EventType
	EventData interface{}
}

func (e BaseEvent) Type() EventType   { return e.EventType }
func (e BaseEvent) Data() interface{} { return e.EventData }

// ============================================
// 事件负载
// ============================================

// DepositedEvent 入账事件
type DepositedEvent struct {
	Depositor  common.Address `json:"depositor"`
	Amount     *hexutil.Big   `json:"amount"`
	NewBalance *hexutil.Big   `json:"new_balance"`
}

// WithdrawnEvent 提款提交事件
type WithdrawnEvent struct {
	Recipient       common.Address `json:"recipient"`
	Amount          *hexutil.Big   `json:"amount"`
	AuthorizationID common.Hash    `json:"authorization_id"`
	NewBalance      *hexutil.Big   `json:"new_balance"`
}

// WithdrawalAbortedEvent 提款整体回滚事件（转账失败路径）
type WithdrawalAbortedEvent struct {
	Recipient       common.Address `json:"recipient"`
	Amount          *hexutil.Big   `json:"amount"`
	AuthorizationID common.Hash    `json:"authorization_id"`
	Reason          string         `json:"reason"`
}

// AuthorizationConsumedEvent 授权消费事件
type AuthorizationConsumedEvent struct {
	AuthorizationID common.Hash    `json:"authorization_id"`
	Vault           common.Address `json:"vault"`
	Recipient       common.Address `json:"recipient"`
	Amount          *hexutil.Big   `json:"amount"`
}

// AuthorizationRejectedEvent 授权校验失败事件
type AuthorizationRejectedEvent struct {
	AuthorizationID common.Hash    `json:"authorization_id"`
	Requestor       common.Address `json:"requestor"`
	Reason          string         `json:"reason"`
}

// NewDeposited 构造入账事件
func NewDeposited(depositor common.Address, amount, newBalance *big.Int) BaseEvent {
	return BaseEvent{
		EventType: EventDepositRecorded,
		EventData: DepositedEvent{
			Depositor:  depositor,
			Amount:     (*hexutil.Big)(new(big.Int).Set(amount)),
			NewBalance: (*hexutil.Big)(new(big.Int).Set(newBalance)),
		},
	}
}

// NewWithdrawn 构造提款提交事件
func NewWithdrawn(recipient common.Address, amount *big.Int, id common.Hash, newBalance *big.Int) BaseEvent {
	return BaseEvent{
		EventType: EventWithdrawalCommitted,
		EventData: WithdrawnEvent{
			Recipient:       recipient,
			Amount:          (*hexutil.Big)(new(big.Int).Set(amount)),
			AuthorizationID: id,
			NewBalance:      (*hexutil.Big)(new(big.Int).Set(newBalance)),
		},
	}
}

// NewWithdrawalAborted 构造提款回滚事件
func NewWithdrawalAborted(recipient common.Address, amount *big.Int, id common.Hash, reason string) BaseEvent {
	return BaseEvent{
		EventType: EventWithdrawalAborted,
		EventData: WithdrawalAbortedEvent{
			Recipient:       recipient,
			Amount:          (*hexutil.Big)(new(big.Int).Set(amount)),
			AuthorizationID: id,
			Reason:          reason,
		},
	}
}

// NewAuthorizationConsumed 构造授权消费事件
func NewAuthorizationConsumed(id common.Hash, vault, recipient common.Address, amount *big.Int) BaseEvent {
	return BaseEvent{
		EventType: EventAuthorizationConsumed,
		EventData: AuthorizationConsumedEvent{
			AuthorizationID: id,
			Vault:           vault,
			Recipient:       recipient,
			Amount:          (*hexutil.Big)(new(big.Int).Set(amount)),
		},
	}
}

// NewAuthorizationRejected 构造授权校验失败事件
func NewAuthorizationRejected(id common.Hash, requestor common.Address, reason string) BaseEvent {
	return BaseEvent{
		EventType: EventAuthorizationRejected,
		EventData: AuthorizationRejectedEvent{
			AuthorizationID: id,
			Requestor:       requestor,
			Reason:          reason,
		},
	}
}
