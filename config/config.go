// config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config 主配置结构
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Vault     VaultConfig
	Sender    SenderConfig
	Audit     AuditConfig
	RateLimit RateLimitConfig
}

// ServerConfig HTTP/3服务器配置
type ServerConfig struct {
	Port string // "6800"

	// TLS配置
	TLSMinVersion string // "1.3"
	TLSMaxVersion string // "1.3"

	// QUIC配置
	QUICKeepAlivePeriod time.Duration // 10 * time.Second
	QUICMaxIdleTimeout  time.Duration // 5 * time.Minute
	QUICAllow0RTT       bool          // true

	// HTTP配置
	HTTPTimeout        time.Duration // 30 * time.Second
	MaxRequestBodySize int64         // 1 << 20 (1MB)

	// 证书配置
	CertValidityDays int // 365
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// BadgerDB配置
	ValueLogFileSize int64         // 64 << 20 (64MB)
	MaxBatchSize     int           // 100
	FlushInterval    time.Duration // 200 * time.Millisecond

	// 写队列配置
	WriteQueueSize int // 100000
	MaxCountPerTxn int // 500
}

// VaultConfig 金库配置
type VaultConfig struct {
	// 链标识，参与授权ID承诺计算，启动后不可变
	ChainID uint64 // 1

	// 金库地址。OperatorKey 非空时优先从私钥推导
	Address     string // "0x..."
	OperatorKey string // WIF 或 32字节hex私钥

	// 数据目录
	DataDir string // "./data"

	// 展示层换算精度（最小面额 -> 展示单位）
	TokenDecimals int32 // 18
}

// SenderConfig 外部转账执行器配置
type SenderConfig struct {
	// 收款端点。为空时使用进程内 loopback 引擎
	PayoutEndpoint string

	// 重试配置
	MaxRetries int // 3

	// 超时配置
	BaseRetryDelay time.Duration // 1 * time.Second
	MaxRetryDelay  time.Duration // 30 * time.Second
	RequestTimeout time.Duration // 10 * time.Second
}

// AuditConfig 审计日志配置
type AuditConfig struct {
	// 订阅通道缓冲大小
	SubscriberBuffer int // 1024
	// 单次查询返回的最大事件数
	MaxListLimit int // 500
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	RequestLimit    int           // 每个 IP 每个窗口允许的最大请求次数
	ResetInterval   time.Duration // 请求计数的时间窗口
	CleanupInterval time.Duration // 不活跃记录清理间隔
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                "6800",
			TLSMinVersion:       "1.3",
			TLSMaxVersion:       "1.3",
			QUICKeepAlivePeriod: 10 * time.Second,
			QUICMaxIdleTimeout:  5 * time.Minute,
			QUICAllow0RTT:       true,
			HTTPTimeout:         30 * time.Second,
			MaxRequestBodySize:  1 << 20,
			CertValidityDays:    365,
		},
		Database: DatabaseConfig{
			ValueLogFileSize: 64 << 20,
			MaxBatchSize:     100,
			FlushInterval:    200 * time.Millisecond,
			WriteQueueSize:   100000,
			MaxCountPerTxn:   500,
		},
		Vault: VaultConfig{
			ChainID:       1,
			DataDir:       "./data",
			TokenDecimals: 18,
		},
		Sender: SenderConfig{
			PayoutEndpoint: "",
			MaxRetries:     3,
			BaseRetryDelay: 1 * time.Second,
			MaxRetryDelay:  30 * time.Second,
			RequestTimeout: 10 * time.Second,
		},
		Audit: AuditConfig{
			SubscriberBuffer: 1024,
			MaxListLimit:     500,
		},
		RateLimit: RateLimitConfig{
			RequestLimit:    1000,
			ResetInterval:   time.Second,
			CleanupInterval: 2 * time.Minute,
		},
	}
}

// LoadFromFile 从JSON文件加载配置，文件不存在时回退到默认配置
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate 验证配置合法性
func (c *Config) Validate() error {
	if c.Vault.ChainID == 0 {
		return fmt.Errorf("Vault.ChainID must be positive")
	}
	if c.Vault.DataDir == "" {
		return fmt.Errorf("Vault.DataDir must not be empty")
	}
	if c.Database.MaxBatchSize <= 0 {
		return fmt.Errorf("Database.MaxBatchSize must be positive")
	}
	if c.Database.WriteQueueSize <= 0 {
		return fmt.Errorf("Database.WriteQueueSize must be positive")
	}
	if c.Sender.MaxRetries < 0 {
		return fmt.Errorf("Sender.MaxRetries must not be negative")
	}
	return nil
}
