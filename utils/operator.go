package utils

import (
	"encoding/hex"
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// DeriveEthereumAddress 以太坊地址推导: keccak256(pubUncompressed[1:])最后20字节
func DeriveEthereumAddress(privKey *secp256k1.PrivateKey) common.Address {
	// 先获取 uncompressed 公钥 (首字节0x04 + 32字节X + 32字节Y = 65字节)
	pubUncompressed := privKey.PubKey().SerializeUncompressed()

	// keccak-256，跳过首字节 0x04，剩余 64 字节是 X、Y
	hash := sha3.NewLegacyKeccak256()
	hash.Write(pubUncompressed[1:])
	digest := hash.Sum(nil) // 32字节

	// 取后20字节作为地址
	return common.BytesToAddress(digest[12:])
}

// ParseSecp256k1PrivateKey 同时支持 WIF 或 16 进制的32字节私钥字符串
func ParseSecp256k1PrivateKey(keyStr string) (*secp256k1.PrivateKey, error) {
	// 1) 尝试当作WIF解析
	if wif, err := btcutil.DecodeWIF(keyStr); err == nil {
		return wif.PrivKey, nil
	}

	// 2) 如果不是WIF，则尝试按Hex进行解析
	raw, err := hex.DecodeString(stripHexPrefix(keyStr))
	if err != nil {
		return nil, errors.New("invalid key (neither valid WIF nor valid hex): " + err.Error())
	}
	if len(raw) != 32 {
		return nil, errors.New("invalid private key length in hex (must be 32 bytes)")
	}

	// 3) 使用 32 字节原生私钥
	privKey := secp256k1.PrivKeyFromBytes(raw)
	return privKey, nil
}
