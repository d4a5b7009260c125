package handlers

import (
	"net/http"
	"strconv"
	"vaultd/logs"
)

// HandleAuditEvents 按时间序返回审计事件
// GET /audit/events?limit=100
func (hm *HandlerManager) HandleAuditEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	records, err := hm.auditLog.List(limit)
	if err != nil {
		logs.Error("[API] list audit events failed: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}
