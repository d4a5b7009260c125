package main

import (
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"vaultd/audit"
	"vaultd/auth"
	"vaultd/config"
	"vaultd/db"
	"vaultd/handlers"
	"vaultd/interfaces"
	"vaultd/logs"
	"vaultd/sender"
	"vaultd/stats"
	"vaultd/utils"
	"vaultd/vault"

	"github.com/ethereum/go-ethereum/common"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（JSON），为空时使用默认配置")
	flag.Parse()

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}

	// 解析金库地址：优先从 operator 私钥推导
	vaultAddr, err := resolveVaultAddress(cfg)
	if err != nil {
		fmt.Printf("Failed to resolve vault address: %v\n", err)
		os.Exit(1)
	}
	logs.VaultTag = vaultAddr.Hex()

	// 打开数据库
	dbManager, err := db.NewManager(cfg, cfg.Vault.DataDir)
	if err != nil {
		logs.Error("Failed to open database: %v", err)
		os.Exit(1)
	}
	defer dbManager.Close()

	// 审计日志（授权管理器和金库共用的事件落盘通道）
	auditLog, err := audit.NewLog(dbManager, cfg)
	if err != nil {
		logs.Error("Failed to init audit log: %v", err)
		os.Exit(1)
	}

	// 授权管理器
	authMgr, err := auth.NewManager(dbManager, auditLog)
	if err != nil {
		logs.Error("Failed to init authorization manager: %v", err)
		os.Exit(1)
	}

	// 外部转账引擎
	var transfer interfaces.TransferEngine
	if cfg.Sender.PayoutEndpoint != "" {
		transfer = sender.NewEngine(cfg)
		logs.Info("Using HTTP payout engine: %s", cfg.Sender.PayoutEndpoint)
	} else {
		transfer = sender.NewLoopbackEngine()
		logs.Warn("No payout endpoint configured, using loopback engine")
	}

	st := stats.NewStats()

	// 金库
	chainID := new(big.Int).SetUint64(cfg.Vault.ChainID)
	v, err := vault.NewVault(vaultAddr, chainID, dbManager, transfer, auditLog, st)
	if err != nil {
		logs.Error("Failed to init vault: %v", err)
		os.Exit(1)
	}
	// 启动即绑定授权管理器，状态机在进程内保持单向
	if err := v.Initialize(authMgr); err != nil {
		logs.Error("Failed to initialize vault: %v", err)
		os.Exit(1)
	}

	hm := handlers.NewHandlerManager(v, authMgr, auditLog, cfg, st)

	srv, err := startServers(cfg, hm)
	if err != nil {
		logs.Error("Failed to start servers: %v", err)
		os.Exit(1)
	}

	logs.Info("vaultd ready, vault=%s chain=%d port=%s", vaultAddr.Hex(), cfg.Vault.ChainID, cfg.Server.Port)

	// 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logs.Info("Shutting down...")
	srv.Shutdown()
	if err := dbManager.ForceFlush(); err != nil {
		logs.Error("Final flush failed: %v", err)
	}
}

// resolveVaultAddress 从配置解析金库地址
func resolveVaultAddress(cfg *config.Config) (common.Address, error) {
	if cfg.Vault.OperatorKey != "" {
		priv, err := utils.ParseSecp256k1PrivateKey(cfg.Vault.OperatorKey)
		if err != nil {
			return common.Address{}, err
		}
		return utils.DeriveEthereumAddress(priv), nil
	}
	if cfg.Vault.Address != "" {
		if !common.IsHexAddress(cfg.Vault.Address) {
			return common.Address{}, fmt.Errorf("invalid vault address %q", cfg.Vault.Address)
		}
		return common.HexToAddress(cfg.Vault.Address), nil
	}
	return common.Address{}, fmt.Errorf("either Vault.OperatorKey or Vault.Address must be set")
}
