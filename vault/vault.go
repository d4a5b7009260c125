package vault

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
	"vaultd/db"
	"vaultd/interfaces"
	"vaultd/keys"
	"vaultd/logs"
	"vaultd/stats"
	"vaultd/types"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInvalidState 状态机不允许该操作（未初始化提款、重复初始化）
	ErrInvalidState = errors.New("vault invalid state")
	// ErrInvalidArgument 参数非法
	ErrInvalidArgument = errors.New("vault invalid argument")
	// ErrInsufficientBalance 余额不足
	ErrInsufficientBalance = errors.New("vault insufficient balance")
	// ErrTransferFailed 外部转账失败，整个提款单元已回滚
	ErrTransferFailed = errors.New("vault transfer failed")
)

// Vault 托管池化余额。
// 余额只通过 Deposit(+) 和已提交的 Withdraw(-) 变化，永不为负；
// 授权校验委托给绑定的 Authorizer，绑定一次后不可变。
type Vault struct {
	// 一把锁串行化整个提款单元（校验→记账→转账→提交/回滚），
	// 复现原执行环境"每次提款是一个全序原子单元"的模型
	mu sync.Mutex

	address common.Address
	chainID *big.Int

	balance     *big.Int
	initialized bool
	authorizer  interfaces.Authorizer

	transfer  interfaces.TransferEngine
	sink      interfaces.EventSink
	dbManager *db.Manager
	stats     *stats.Stats
}

// NewVault 创建金库并从DB恢复余额。创建后处于未初始化状态，
// 必须先 Initialize 绑定授权管理器才能提款；入账不受此限制。
func NewVault(address common.Address, chainID *big.Int, dbManager *db.Manager, transfer interfaces.TransferEngine, sink interfaces.EventSink, st *stats.Stats) (*Vault, error) {
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("%w: chain id must be positive", ErrInvalidArgument)
	}
	v := &Vault{
		address:   address,
		chainID:   new(big.Int).Set(chainID),
		balance:   new(big.Int),
		transfer:  transfer,
		sink:      sink,
		dbManager: dbManager,
		stats:     st,
	}
	if dbManager != nil {
		val, err := dbManager.Read(keys.KeyVaultBalance())
		if err == nil {
			bal, ok := new(big.Int).SetString(val, 10)
			if !ok || bal.Sign() < 0 {
				return nil, fmt.Errorf("vault: corrupt persisted balance %q", val)
			}
			v.balance = bal
		} else if err != db.ErrKeyNotFound {
			return nil, err
		}
	}
	logs.Info("[Vault] %s restored, balance=%s", address.Hex(), v.balance.String())
	return v, nil
}

// Initialize 绑定授权管理器，只允许一次。
// 状态机：{Uninitialized} --Initialize--> {Initialized}，单向。
func (v *Vault) Initialize(authorizer interfaces.Authorizer) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.initialized {
		return fmt.Errorf("%w: already initialized", ErrInvalidState)
	}
	if authorizer == nil {
		return fmt.Errorf("%w: nil authorizer", ErrInvalidArgument)
	}
	v.authorizer = authorizer
	v.initialized = true
	if v.dbManager != nil {
		v.dbManager.EnqueueSet(keys.KeyVaultInitialized(), "1")
		v.dbManager.EnqueueSet(keys.KeyVaultAuthorizer(), fmt.Sprintf("%T", authorizer))
	}
	logs.Info("[Vault] initialized with authorizer %T", authorizer)
	return nil
}

// Deposit 入账。初始化之前也必须可用（资金先行托管）。
func (v *Vault) Deposit(depositor common.Address, amount *big.Int) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: deposit amount must be positive", ErrInvalidArgument)
	}
	if amount.BitLen() > 256 {
		return nil, fmt.Errorf("%w: deposit amount exceeds 256 bits", ErrInvalidArgument)
	}

	v.balance.Add(v.balance, amount)
	v.persistBalance()

	if v.sink != nil {
		if err := v.sink.Emit(types.NewDeposited(depositor, amount, v.balance)); err != nil {
			logs.Error("[Vault] emit deposit event failed: %v", err)
		}
	}
	if v.stats != nil {
		v.stats.IncDeposit()
	}
	logs.Verbose("[Vault] deposit %s from %s, balance=%s", amount.String(), depositor.Hex(), v.balance.String())
	return new(big.Int).Set(v.balance), nil
}

// Withdraw 提款。前置检查按顺序执行，每一步是独立的失败：
//  1. 已初始化            → ErrInvalidState
//  2. recipient 非零      → ErrInvalidArgument
//  3. amount > 0          → ErrInvalidArgument
//  4. balance >= amount   → ErrInsufficientBalance
//  5. id 非零             → ErrInvalidArgument
//
// 随后 check-and-consume 授权、先记账再转账（checks-effects-interactions），
// 转账失败时整个单元（余额扣减 + 授权消费）一并回滚，只有完全成功才提交。
func (v *Vault) Withdraw(ctx context.Context, requestor, recipient common.Address, amount *big.Int, id common.Hash) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	start := time.Now()

	if !v.initialized {
		return fmt.Errorf("%w: vault not initialized", ErrInvalidState)
	}
	if recipient == (common.Address{}) {
		return fmt.Errorf("%w: zero recipient", ErrInvalidArgument)
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: withdraw amount must be positive", ErrInvalidArgument)
	}
	if amount.BitLen() > 256 {
		return fmt.Errorf("%w: withdraw amount exceeds 256 bits", ErrInvalidArgument)
	}
	if v.balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, want %s", ErrInsufficientBalance, v.balance.String(), amount.String())
	}
	if id == (common.Hash{}) {
		return fmt.Errorf("%w: zero authorization id", ErrInvalidArgument)
	}

	// 委托授权校验。成功即消费（尚未对外提交）
	if err := v.authorizer.VerifyAuthorization(v.address, v.chainID, recipient, amount, id); err != nil {
		// 审计事件先落盘；校验失败本身不产生状态变化，无需回滚
		if v.sink != nil {
			if serr := v.sink.Emit(types.NewAuthorizationRejected(id, requestor, err.Error())); serr != nil {
				logs.Error("[Vault] emit rejection event failed: %v", serr)
			}
		}
		if v.stats != nil {
			v.stats.IncWithdrawRejected()
		}
		return err
	}

	// effects：外部交互之前先扣减余额。顺序是硬性要求，不是优化——
	// 它保证转账触发的重入调用只能看到已扣减的余额和已消费的ID
	prev := new(big.Int).Set(v.balance)
	v.balance.Sub(v.balance, amount)
	v.persistBalance()

	// interactions：外部价值转移
	if err := v.transfer.Transfer(ctx, recipient, amount); err != nil {
		// 先持久化失败审计，再整体回滚（余额 + 授权消费）
		if v.sink != nil {
			if serr := v.sink.Emit(types.NewWithdrawalAborted(recipient, amount, id, err.Error())); serr != nil {
				logs.Error("[Vault] emit abort event failed: %v", serr)
			}
		}
		v.balance.Set(prev)
		v.persistBalance()
		v.authorizer.RollbackConsumption(id)
		if v.stats != nil {
			v.stats.IncWithdrawAborted()
		}
		logs.Warn("[Vault] withdraw %s to %s aborted: %v", amount.String(), recipient.Hex(), err)
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	// commit
	if v.sink != nil {
		if err := v.sink.Emit(types.NewWithdrawn(recipient, amount, id, v.balance)); err != nil {
			logs.Error("[Vault] emit withdrawn event failed: %v", err)
		}
	}
	if v.stats != nil {
		v.stats.IncWithdraw()
		v.stats.RecordLatency("withdraw", time.Since(start))
	}
	logs.Info("[Vault] withdraw %s to %s committed, balance=%s", amount.String(), recipient.Hex(), v.balance.String())
	return nil
}

// GetBalance 纯读，返回余额副本
func (v *Vault) GetBalance() *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.balance)
}

// GetAuthorizationManager 纯读，返回绑定的授权管理器句柄
func (v *Vault) GetAuthorizationManager() interfaces.Authorizer {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.authorizer
}

// IsInitialized 纯读
func (v *Vault) IsInitialized() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.initialized
}

// Address 金库地址（承诺计算的第一个字段）
func (v *Vault) Address() common.Address { return v.address }

// ChainID 链标识副本
func (v *Vault) ChainID() *big.Int { return new(big.Int).Set(v.chainID) }

func (v *Vault) persistBalance() {
	if v.dbManager == nil {
		return
	}
	v.dbManager.EnqueueSet(keys.KeyVaultBalance(), v.balance.String())
}
