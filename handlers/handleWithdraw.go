package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"vaultd/logs"

	"github.com/ethereum/go-ethereum/common"
)

// HandleWithdraw 处理提款请求。
// 已提交过的授权ID重复提交时幂等返回，不再进入金库。
func (hm *HandlerManager) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, hm.cfg.Server.MaxRequestBodySize)

	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	requestor, err := parseAddress(req.Requestor)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	recipient, err := parseAddress(req.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id := common.HexToHash(req.AuthorizationID)

	// 重复提交的已提交提款直接幂等返回
	if _, seen := hm.committed.Get(id); seen {
		balance := hm.vault.GetBalance()
		writeJSON(w, http.StatusOK, WithdrawResponse{
			Committed:         true,
			NewBalance:        balance.String(),
			NewBalanceDisplay: hm.displayAmount(balance),
		})
		return
	}

	if err := hm.vault.Withdraw(r.Context(), requestor, recipient, amount, id); err != nil {
		logs.Warn("[API] withdraw failed: %v", err)
		writeError(w, statusFor(err), err)
		return
	}
	hm.committed.Add(id, struct{}{})

	balance := hm.vault.GetBalance()
	writeJSON(w, http.StatusOK, WithdrawResponse{
		Committed:         true,
		NewBalance:        balance.String(),
		NewBalanceDisplay: hm.displayAmount(balance),
	})
}
