package handlers

import (
	"net/http"
	"vaultd/audit"
	"vaultd/auth"
	"vaultd/config"
	"vaultd/stats"
	"vaultd/vault"

	lru "github.com/hashicorp/golang-lru"
)

// HandlerManager 管理所有HTTP处理器及其依赖
type HandlerManager struct {
	vault     *vault.Vault
	authMgr   *auth.Manager
	auditLog  *audit.Log
	cfg       *config.Config
	committed *lru.Cache // 最近已提交提款的授权ID，用于幂等响应重复提交
	Stats     *stats.Stats
}

// NewHandlerManager 创建新的处理器管理器
func NewHandlerManager(
	v *vault.Vault,
	authMgr *auth.Manager,
	auditLog *audit.Log,
	cfg *config.Config,
	st *stats.Stats,
) *HandlerManager {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	committed, _ := lru.New(10000)
	return &HandlerManager{
		vault:     v,
		authMgr:   authMgr,
		auditLog:  auditLog,
		cfg:       cfg,
		committed: committed,
		Stats:     st,
	}
}

// RegisterRoutes 注册所有路由
func (hm *HandlerManager) RegisterRoutes(mux *http.ServeMux) {
	// 核心操作
	mux.HandleFunc("/deposit", hm.HandleDeposit)
	mux.HandleFunc("/withdraw", hm.HandleWithdraw)
	// 纯读
	mux.HandleFunc("/balance", hm.HandleBalance)
	mux.HandleFunc("/authorization/consumed", hm.HandleConsumed)
	mux.HandleFunc("/audit/events", hm.HandleAuditEvents)
	mux.HandleFunc("/status", hm.HandleStatus)
}
