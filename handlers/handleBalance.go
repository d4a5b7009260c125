package handlers

import (
	"net/http"
)

// HandleBalance 余额查询，纯读
func (hm *HandlerManager) HandleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	balance := hm.vault.GetBalance()
	writeJSON(w, http.StatusOK, BalanceResponse{
		Balance:        balance.String(),
		BalanceDisplay: hm.displayAmount(balance),
		Initialized:    hm.vault.IsInitialized(),
	})
}
