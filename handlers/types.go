package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"vaultd/auth"
	"vaultd/vault"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ============================================
// 请求/响应 DTO
// ============================================

// DepositRequest 入账请求。Amount 为最小面额的十进制字符串
type DepositRequest struct {
	Depositor string `json:"depositor"`
	Amount    string `json:"amount"`
}

// DepositResponse 入账响应
type DepositResponse struct {
	NewBalance        string `json:"new_balance"`
	NewBalanceDisplay string `json:"new_balance_display"`
}

// WithdrawRequest 提款请求
type WithdrawRequest struct {
	Requestor       string `json:"requestor"`
	Recipient       string `json:"recipient"`
	Amount          string `json:"amount"`
	AuthorizationID string `json:"authorization_id"`
}

// WithdrawResponse 提款响应
type WithdrawResponse struct {
	Committed         bool   `json:"committed"`
	NewBalance        string `json:"new_balance"`
	NewBalanceDisplay string `json:"new_balance_display"`
}

// BalanceResponse 余额响应
type BalanceResponse struct {
	Balance        string `json:"balance"`
	BalanceDisplay string `json:"balance_display"`
	Initialized    bool   `json:"initialized"`
}

// ConsumedResponse 授权消费状态
type ConsumedResponse struct {
	AuthorizationID string `json:"authorization_id"`
	Consumed        bool   `json:"consumed"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ============================================
// 辅助函数
// ============================================

// parseAmount 解析十进制最小面额数量
func parseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return amount, nil
}

// parseAddress 解析 0x 开头的20字节地址
func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// displayAmount 最小面额 → 展示单位（例如 wei → token）
func (hm *HandlerManager) displayAmount(v *big.Int) string {
	return decimal.NewFromBigInt(v, -hm.cfg.Vault.TokenDecimals).String()
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor 把领域错误映射到HTTP状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, vault.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, vault.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, vault.ErrInsufficientBalance):
		return http.StatusConflict
	case errors.Is(err, auth.ErrAlreadyConsumed):
		return http.StatusConflict
	case errors.Is(err, auth.ErrScopeMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, vault.ErrTransferFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
