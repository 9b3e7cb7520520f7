package gateway

import (
	"context"
	"fmt"
	"strings"

	"swap-sync-go/catalog"
	"swap-sync-go/metrics"
)

// PoolViewingKey 交易对合约余额查询使用的公共 viewing key，
// 由 pair 合约在实例化时对自身设置。
const PoolViewingKey = "SecretSwap"

type snip20BalanceQuery struct {
	Balance struct {
		Address string `json:"address"`
		Key     string `json:"key"`
	} `json:"balance"`
}

type snip20BalanceResponse struct {
	Balance *struct {
		Amount string `json:"amount"`
	} `json:"balance"`
	ViewingKeyError *struct {
		Msg string `json:"msg"`
	} `json:"viewing_key_error"`
}

// FetchBalance 查询 owner 持有的 token 数量，换算为展示精度。
// 原生资产直接查 bank；snip20 需要 viewing key，key 缺失或错误分别
// 返回 ErrMissingViewingKey / ErrWrongViewingKey，调用方应视为余额暂时未知。
func FetchBalance(ctx context.Context, q Querier, tok catalog.Token, owner, viewingKey string) (float64, error) {
	if tok.IsNative() {
		raw, err := q.QueryNativeBalance(ctx, owner)
		if err != nil {
			metrics.QueryFailuresTotal.Inc()
			return 0, fmt.Errorf("query native balance: %w", err)
		}
		return catalog.FromRawAmount(raw, tok.Decimals)
	}

	if viewingKey == "" {
		return 0, ErrMissingViewingKey
	}

	var query snip20BalanceQuery
	query.Balance.Address = owner
	query.Balance.Key = viewingKey

	var resp snip20BalanceResponse
	if err := q.QueryContract(ctx, tok.Address, query, &resp); err != nil {
		if strings.Contains(err.Error(), WrongViewingKeyMessage) {
			return 0, ErrWrongViewingKey
		}
		metrics.QueryFailuresTotal.Inc()
		return 0, fmt.Errorf("query snip20 balance %s: %w", tok.Symbol, err)
	}
	if resp.ViewingKeyError != nil {
		return 0, ErrWrongViewingKey
	}
	if resp.Balance == nil {
		return 0, fmt.Errorf("snip20 balance %s: empty response", tok.Symbol)
	}
	return catalog.FromRawAmount(resp.Balance.Amount, tok.Decimals)
}

// FetchPoolReserve 查询交易对合约持有的 token 储备。
func FetchPoolReserve(ctx context.Context, q Querier, tok catalog.Token, pair *catalog.Pair) (float64, error) {
	return FetchBalance(ctx, q, tok, pair.ContractAddr, PoolViewingKey)
}
