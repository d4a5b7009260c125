package handlers

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"vaultd/audit"
	"vaultd/auth"
	"vaultd/config"
	"vaultd/db"
	"vaultd/sender"
	"vaultd/vault"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testVaultAddr = common.HexToAddress("0x00112233445566778899aabbccddeeff00112233")
	testChainID   = big.NewInt(31337)
	depositorHex  = "0xcccccccccccccccccccccccccccccccccccccccc"
	recipientHex  = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

type apiEnv struct {
	hm     *HandlerManager
	engine *sender.LoopbackEngine
	mux    *http.ServeMux
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Vault.TokenDecimals = 2 // 展示换算好算

	dbManager, err := db.NewManager(cfg, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { dbManager.Close() })

	auditLog, err := audit.NewLog(dbManager, cfg)
	require.NoError(t, err)
	authMgr, err := auth.NewManager(dbManager, auditLog)
	require.NoError(t, err)
	engine := sender.NewLoopbackEngine()

	v, err := vault.NewVault(testVaultAddr, testChainID, dbManager, engine, auditLog, nil)
	require.NoError(t, err)
	require.NoError(t, v.Initialize(authMgr))

	hm := NewHandlerManager(v, authMgr, auditLog, cfg, nil)
	mux := http.NewServeMux()
	hm.RegisterRoutes(mux)
	return &apiEnv{hm: hm, engine: engine, mux: mux}
}

func (env *apiEnv) post(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	return rec
}

func (env *apiEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (env *apiEnv) deposit(t *testing.T, amount string) *httptest.ResponseRecorder {
	t.Helper()
	return env.post(t, "/deposit", DepositRequest{Depositor: depositorHex, Amount: amount})
}

func (env *apiEnv) withdraw(t *testing.T, amount string, id common.Hash) *httptest.ResponseRecorder {
	t.Helper()
	return env.post(t, "/withdraw", WithdrawRequest{
		Requestor:       depositorHex,
		Recipient:       recipientHex,
		Amount:          amount,
		AuthorizationID: id.Hex(),
	})
}

func testAuthID(amount int64) common.Hash {
	return auth.ComputeAuthorizationID(testVaultAddr, testChainID, common.HexToAddress(recipientHex), big.NewInt(amount))
}

func TestHandleDeposit(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.deposit(t, "1000")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON[DepositResponse](t, rec)
	assert.Equal(t, "1000", resp.NewBalance)
	assert.Equal(t, "10", resp.NewBalanceDisplay) // decimals=2
}

func TestHandleDepositRejections(t *testing.T) {
	env := newAPIEnv(t)

	// 非法地址
	rec := env.post(t, "/deposit", DepositRequest{Depositor: "nope", Amount: "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 非法金额
	rec = env.post(t, "/deposit", DepositRequest{Depositor: depositorHex, Amount: "1.5"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 零金额：领域层 InvalidArgument → 400
	rec = env.deposit(t, "0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// GET 不允许
	rec = env.get(t, "/deposit")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleWithdraw(t *testing.T) {
	env := newAPIEnv(t)
	require.Equal(t, http.StatusOK, env.deposit(t, "1000").Code)

	rec := env.withdraw(t, "300", testAuthID(300))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON[WithdrawResponse](t, rec)
	assert.True(t, resp.Committed)
	assert.Equal(t, "700", resp.NewBalance)
	assert.Equal(t, 1, env.engine.Count())
}

// TestHandleWithdrawIdempotentReplay 已提交的提款重复提交幂等返回，不触发第二次转账
func TestHandleWithdrawIdempotentReplay(t *testing.T) {
	env := newAPIEnv(t)
	require.Equal(t, http.StatusOK, env.deposit(t, "1000").Code)

	id := testAuthID(300)
	require.Equal(t, http.StatusOK, env.withdraw(t, "300", id).Code)

	rec := env.withdraw(t, "300", id)
	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON[WithdrawResponse](t, rec)
	assert.True(t, resp.Committed)
	assert.Equal(t, "700", resp.NewBalance)
	assert.Equal(t, 1, env.engine.Count())
}

// TestHandleWithdrawErrorMapping 领域错误到HTTP状态码的映射
func TestHandleWithdrawErrorMapping(t *testing.T) {
	env := newAPIEnv(t)
	require.Equal(t, http.StatusOK, env.deposit(t, "100").Code)

	// 余额不足 → 409
	rec := env.withdraw(t, "500", testAuthID(500))
	assert.Equal(t, http.StatusConflict, rec.Code)

	// 承诺不匹配 → 422
	wrongID := auth.ComputeAuthorizationID(testVaultAddr, testChainID, common.HexToAddress(depositorHex), big.NewInt(50))
	rec = env.withdraw(t, "50", wrongID)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// 转账失败 → 502，余额回滚
	env.engine.FailNext = assert.AnError
	rec = env.withdraw(t, "50", testAuthID(50))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	balance := decodeJSON[BalanceResponse](t, env.get(t, "/balance"))
	assert.Equal(t, "100", balance.Balance)

	// 回滚后同一授权再次可用
	rec = env.withdraw(t, "50", testAuthID(50))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleBalance(t *testing.T) {
	env := newAPIEnv(t)
	require.Equal(t, http.StatusOK, env.deposit(t, "250").Code)

	rec := env.get(t, "/balance")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON[BalanceResponse](t, rec)
	assert.Equal(t, "250", resp.Balance)
	assert.Equal(t, "2.5", resp.BalanceDisplay)
	assert.True(t, resp.Initialized)
}

func TestHandleConsumed(t *testing.T) {
	env := newAPIEnv(t)
	require.Equal(t, http.StatusOK, env.deposit(t, "100").Code)

	id := testAuthID(10)
	rec := env.get(t, "/authorization/consumed?id="+id.Hex())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeJSON[ConsumedResponse](t, rec).Consumed)

	require.Equal(t, http.StatusOK, env.withdraw(t, "10", id).Code)

	rec = env.get(t, "/authorization/consumed?id="+id.Hex())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeJSON[ConsumedResponse](t, rec).Consumed)

	// 非法ID格式
	rec = env.get(t, "/authorization/consumed?id=0x1234")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.get(t, "/authorization/consumed?id="+strings.Repeat("f", 66))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAuditEvents(t *testing.T) {
	env := newAPIEnv(t)
	require.Equal(t, http.StatusOK, env.deposit(t, "100").Code)
	require.Equal(t, http.StatusOK, env.withdraw(t, "40", testAuthID(40)).Code)

	rec := env.get(t, "/audit/events?limit=10")
	require.Equal(t, http.StatusOK, rec.Code)
	records := decodeJSON[[]audit.Record](t, rec)
	// deposit + consumed + withdrawn
	require.Len(t, records, 3)
	assert.Equal(t, uint64(1), records[0].Seq)
}

func TestHandleStatus(t *testing.T) {
	env := newAPIEnv(t)
	require.Equal(t, http.StatusOK, env.deposit(t, "100").Code)
	require.Equal(t, http.StatusOK, env.withdraw(t, "40", testAuthID(40)).Code)

	rec := env.get(t, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON[StatusResponse](t, rec)
	assert.Equal(t, testVaultAddr.Hex(), resp.Vault)
	assert.Equal(t, testChainID.String(), resp.ChainID)
	assert.True(t, resp.Initialized)
	assert.Equal(t, "60", resp.Balance)
	assert.Equal(t, 1, resp.ConsumedCount)
	assert.Equal(t, uint64(3), resp.LatestAuditSeq)
}
