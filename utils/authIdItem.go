package utils

import (
	"encoding/hex"
	"vaultd/logs"

	"github.com/dchest/siphash"
)

// AuthIDItem 表示一个32字节的授权ID，对应以太坊风格哈希(0x+64 hex)
type AuthIDItem [32]byte

// Hash 使用SipHash对32字节的数据进行哈希，用于分片选择等场景
func (t AuthIDItem) Hash() uint64 {
	return siphash.Hash(0x12345678, 0x87654321, t[:])
}

// 将AuthIDItem转换为 0x+64 hex 格式字符串
func (t AuthIDItem) String() string {
	return "0x" + hex.EncodeToString(t[:])
}

// ConvertHexToAuthID 把字符串形式的授权ID转换为 AuthIDItem(32字节)
func ConvertHexToAuthID(idHex string) (AuthIDItem, bool) {
	var res AuthIDItem
	decoded, err := hex.DecodeString(stripHexPrefix(idHex))
	if err != nil {
		logs.Error("hex.DecodeString failed")
		return res, false
	}
	if len(decoded) != 32 {
		return res, false
	}
	copy(res[:], decoded)
	return res, true
}

func stripHexPrefix(s string) string {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s[2:]
	}
	return s
}
