package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"swap-sync-go/catalog"
)

// LCDClient 通过节点的 LCD REST 网关实现只读查询。
// Execute 不在此实现：交易签名与广播由钱包侧完成。
type LCDClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Limiter    RateLimiter
}

func NewLCDClient(baseURL string, limiter RateLimiter) *LCDClient {
	return &LCDClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Limiter:    limiter,
	}
}

type smartQueryResponse struct {
	Data json.RawMessage `json:"data"`
}

type bankBalancesResponse struct {
	Balances []Coin `json:"balances"`
}

// QueryContract 对合约做 smart query。
func (c *LCDClient) QueryContract(ctx context.Context, contract string, req, resp interface{}) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return err
	}
	encoded := base64.URLEncoding.EncodeToString(raw)
	url := fmt.Sprintf("%s/compute/v1beta1/query/%s?query=%s", c.BaseURL, contract, encoded)

	body, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	var wrapper smartQueryResponse
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return fmt.Errorf("decode smart query envelope: %w", err)
	}
	if err := json.Unmarshal(wrapper.Data, resp); err != nil {
		return fmt.Errorf("decode smart query result: %w", err)
	}
	return nil
}

// QueryNativeBalance 查询 bank 模块余额。地址没有余额记录时返回 "0"。
func (c *LCDClient) QueryNativeBalance(ctx context.Context, address string) (string, error) {
	url := fmt.Sprintf("%s/cosmos/bank/v1beta1/balances/%s", c.BaseURL, address)
	body, err := c.get(ctx, url)
	if err != nil {
		return "", err
	}
	var resp bankBalancesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode bank balances: %w", err)
	}
	for _, coin := range resp.Balances {
		if coin.Denom == catalog.NativeDenom {
			return coin.Amount, nil
		}
	}
	return "0", nil
}

// Execute 本实现不持有签名者。
func (c *LCDClient) Execute(_ context.Context, _ string, _ interface{}, _ []Coin) (*Receipt, error) {
	return nil, ErrExecuteUnsupported
}

func (c *LCDClient) get(ctx context.Context, url string) ([]byte, error) {
	if c.Limiter != nil {
		c.Limiter.Wait()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lcd %s: status %d: %s", url, res.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
