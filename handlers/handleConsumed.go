package handlers

import (
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

// HandleConsumed 查询某个授权ID是否已被消费，纯读
// GET /authorization/consumed?id=0x...
func (hm *HandlerManager) HandleConsumed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	idHex := r.URL.Query().Get("id")
	if len(idHex) != 66 || idHex[:2] != "0x" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("id must be 0x + 64 hex chars"))
		return
	}
	id := common.HexToHash(idHex)
	writeJSON(w, http.StatusOK, ConsumedResponse{
		AuthorizationID: id.Hex(),
		Consumed:        hm.authMgr.IsAuthorizationConsumed(id),
	})
}
