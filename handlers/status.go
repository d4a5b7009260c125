package handlers

import (
	"net/http"
	"vaultd/stats"
)

// StatusResponse 节点状态
type StatusResponse struct {
	Vault          string         `json:"vault"`
	ChainID        string         `json:"chain_id"`
	Initialized    bool           `json:"initialized"`
	Balance        string         `json:"balance"`
	ConsumedCount  int            `json:"consumed_count"`
	LatestAuditSeq uint64         `json:"latest_audit_seq"`
	Stats          stats.Snapshot `json:"stats"`
}

// HandleStatus 状态查询
func (hm *HandlerManager) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := StatusResponse{
		Vault:          hm.vault.Address().Hex(),
		ChainID:        hm.vault.ChainID().String(),
		Initialized:    hm.vault.IsInitialized(),
		Balance:        hm.vault.GetBalance().String(),
		ConsumedCount:  hm.authMgr.ConsumedCount(),
		LatestAuditSeq: hm.auditLog.LatestSeq(),
	}
	if hm.Stats != nil {
		resp.Stats = hm.Stats.Snapshot()
	}
	writeJSON(w, http.StatusOK, resp)
}
