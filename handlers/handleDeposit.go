package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"vaultd/logs"
)

// HandleDeposit 处理入账请求
func (hm *HandlerManager) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, hm.cfg.Server.MaxRequestBodySize)

	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	depositor, err := parseAddress(req.Depositor)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	newBalance, err := hm.vault.Deposit(depositor, amount)
	if err != nil {
		logs.Warn("[API] deposit rejected: %v", err)
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, DepositResponse{
		NewBalance:        newBalance.String(),
		NewBalanceDisplay: hm.displayAmount(newBalance),
	})
}
