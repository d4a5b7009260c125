// keys/keys.go
// 统一的 Key 定义包，供金库、授权管理器和审计日志共同使用
package keys

import (
	"fmt"
	"strings"
)

// ===================== 版本控制 =====================
// 设置全局 Key 版本前缀（例如 "v1" → 产出 "v1_<key>"）。
// 如需立刻兼容旧数据，暂时将 KeyVersion 设为 "" 即可不加版本前缀。
const KeyVersion = "v1"

// withVer 把版本号拼到最前面（保持下划线风格：v1_<...>）
func withVer(s string) string {
	if KeyVersion == "" {
		return s
	}
	return KeyVersion + "_" + s
}

// StripVersion 读取回退辅助：把带版本的键去掉版本前缀，便于双读回退。
func StripVersion(prefixed string) string {
	if KeyVersion == "" {
		return prefixed
	}
	p := KeyVersion + "_"
	return strings.TrimPrefix(prefixed, p)
}

// ===================== 金库状态 =====================

// KeyVaultBalance 托管余额（最小面额的十进制字符串）
// 例：v1_vault_balance
func KeyVaultBalance() string { return withVer("vault_balance") }

// KeyVaultInitialized 初始化标记
// 例：v1_vault_initialized
func KeyVaultInitialized() string { return withVer("vault_initialized") }

// KeyVaultAuthorizer 绑定的授权管理器标签（仅观测用）
// 例：v1_vault_authorizer
func KeyVaultAuthorizer() string { return withVer("vault_authorizer") }

// ===================== 授权消费集 =====================

// KeyConsumed 已消费授权ID
// 例：v1_consumed_<idHex>
func KeyConsumed(idHex string) string {
	return withVer(fmt.Sprintf("consumed_%s", idHex))
}

// PrefixConsumed 消费集扫描前缀
func PrefixConsumed() string { return withVer("consumed_") }

// ===================== 审计日志 =====================

// KeyAuditEvent 审计事件，按序列号零填充保证字典序即时间序
// 例：v1_audit_00000000000000000042_<shortID>
func KeyAuditEvent(seq uint64, shortID string) string {
	return withVer(fmt.Sprintf("audit_%020d_%s", seq, shortID))
}

// PrefixAudit 审计日志扫描前缀
func PrefixAudit() string { return withVer("audit_") }

// KeyLatestAuditSeq 最新审计序列号
// 例：v1_latest_audit_seq
func KeyLatestAuditSeq() string { return withVer("latest_audit_seq") }
