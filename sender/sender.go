package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"math/rand/v2"
	"net/http"
	"time"
	"vaultd/config"
	"vaultd/logs"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// payoutRequest 发给外部收款端点的请求体
type payoutRequest struct {
	Recipient common.Address `json:"recipient"`
	Amount    *hexutil.Big   `json:"amount"`
}

// Engine 通过 HTTP 收款端点执行外部价值转移。
// 有界重试 + 指数退避；在重试窗口内仍然失败即向金库报告失败，
// 由金库回滚整个提款单元。
type Engine struct {
	endpoint   string
	client     *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewEngine 创建 HTTP 转账引擎
func NewEngine(cfg *config.Config) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Engine{
		endpoint:   cfg.Sender.PayoutEndpoint,
		maxRetries: cfg.Sender.MaxRetries,
		baseDelay:  cfg.Sender.BaseRetryDelay,
		maxDelay:   cfg.Sender.MaxRetryDelay,
		client: &http.Client{
			Timeout: cfg.Sender.RequestTimeout,
		},
	}
}

// Transfer 实现 interfaces.TransferEngine
func (e *Engine) Transfer(ctx context.Context, recipient common.Address, amount *big.Int) error {
	payload, err := json.Marshal(payoutRequest{
		Recipient: recipient,
		Amount:    (*hexutil.Big)(amount),
	})
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			delay := e.retryDelay(attempt)
			logs.Verbose("[Sender] retry %d/%d after %v: %v", attempt, e.maxRetries, delay, lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if lastErr = e.doPayout(ctx, payload); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("payout to %s failed after %d attempts: %w", recipient.Hex(), e.maxRetries+1, lastErr)
}

func (e *Engine) doPayout(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respData, _ := io.ReadAll(resp.Body)
		return &httpStatusError{
			op:         "payout",
			statusCode: resp.StatusCode,
			body:       string(respData),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// retryDelay 指数退避 + 抖动，封顶 maxDelay
func (e *Engine) retryDelay(attempt int) time.Duration {
	delay := e.baseDelay << (attempt - 1)
	if delay > e.maxDelay || delay <= 0 {
		delay = e.maxDelay
	}
	jitter := time.Duration(rand.Int64N(int64(delay)/2 + 1))
	return delay + jitter
}
