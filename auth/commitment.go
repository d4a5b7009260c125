package auth

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// 承诺编码布局（与链下签发方约定，必须逐字节一致）：
//   vault[20] ‖ chainID[32 big-endian] ‖ recipient[20] ‖ amount[32 big-endian]
const commitmentSize = 20 + 32 + 20 + 32

// ComputeAuthorizationID 计算授权ID承诺。
// id = Keccak-256(vault ‖ chainID ‖ recipient ‖ amount)，
// 授权的有效性完全由该哈希等式定义，不涉及签名。
func ComputeAuthorizationID(vault common.Address, chainID *big.Int, recipient common.Address, amount *big.Int) common.Hash {
	var buf [commitmentSize]byte
	copy(buf[0:20], vault[:])
	chainID.FillBytes(buf[20:52])
	copy(buf[52:72], recipient[:])
	amount.FillBytes(buf[72:104])

	h := sha3.NewLegacyKeccak256()
	h.Write(buf[:])
	return common.BytesToHash(h.Sum(nil))
}
