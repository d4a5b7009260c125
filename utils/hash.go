package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"vaultd/logs"

	"github.com/spaolacci/murmur3"
	"golang.org/x/crypto/sha3"
)

// MurmurHash 使用Murmur3哈希算法
func MurmurHash(data []byte) []byte {
	h := murmur3.New64()
	_, err := h.Write(data)
	if err != nil {
		logs.Verbose("hash error: %v", err)
	}
	sum64 := h.Sum64()
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(sum64 >> (8 * i))
	}
	return b
}

// ShortID 取 Murmur3 哈希的 hex 表示，用作审计事件等场景的短标识
func ShortID(data []byte) string {
	return hex.EncodeToString(MurmurHash(data))
}

func Sha256Hash(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// Keccak256 以太坊风格的 legacy Keccak-256（非 NIST SHA3）
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}
