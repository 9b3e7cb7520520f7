package catalog

import (
	"context"
	"fmt"
)

// Querier 加载目录所需的最小查询接口。
type Querier interface {
	QueryContract(ctx context.Context, contract string, req, resp interface{}) error
}

type pairsQuery struct {
	Pairs struct{} `json:"pairs"`
}

type pairsResponse struct {
	Pairs []struct {
		AssetInfos    []assetInfo `json:"asset_infos"`
		ContractAddr  string      `json:"contract_addr"`
		TokenCodeHash string      `json:"token_code_hash"`
	} `json:"pairs"`
}

type assetInfo struct {
	Token *struct {
		ContractAddr  string `json:"contract_addr"`
		TokenCodeHash string `json:"token_code_hash"`
	} `json:"token"`
	NativeToken *struct {
		Denom string `json:"denom"`
	} `json:"native_token"`
}

type tokenInfoQuery struct {
	TokenInfo struct{} `json:"token_info"`
}

type tokenInfoResponse struct {
	TokenInfo struct {
		Symbol   string `json:"symbol"`
		Decimals int    `json:"decimals"`
	} `json:"token_info"`
}

// Load 从工厂合约一次性拉取交易对目录，并补齐每个代币的元数据。
// 同一代币只查询一次 token_info。
func Load(ctx context.Context, q Querier, factoryContract string) (*Registry, error) {
	var resp pairsResponse
	if err := q.QueryContract(ctx, factoryContract, pairsQuery{}, &resp); err != nil {
		return nil, fmt.Errorf("query factory pairs: %w", err)
	}

	reg := newRegistry()
	for _, raw := range resp.Pairs {
		if len(raw.AssetInfos) != 2 {
			return nil, fmt.Errorf("pair %s: expected 2 assets, got %d", raw.ContractAddr, len(raw.AssetInfos))
		}
		var symbols [2]string
		for i, info := range raw.AssetInfos {
			switch {
			case info.NativeToken != nil:
				reg.addToken(Token{
					Symbol:   NativeSymbol,
					Decimals: NativeDecimals,
				})
				symbols[i] = NativeSymbol
			case info.Token != nil:
				sym, err := loadTokenInfo(ctx, q, reg, info.Token.ContractAddr, info.Token.TokenCodeHash)
				if err != nil {
					return nil, err
				}
				symbols[i] = sym
			default:
				return nil, fmt.Errorf("pair %s: asset %d has no token info", raw.ContractAddr, i)
			}
		}
		reg.addPair(&Pair{
			ContractAddr: raw.ContractAddr,
			CodeHash:     raw.TokenCodeHash,
			Symbols:      symbols,
		})
	}
	return reg, nil
}

func loadTokenInfo(ctx context.Context, q Querier, reg *Registry, addr, codeHash string) (string, error) {
	var info tokenInfoResponse
	if err := q.QueryContract(ctx, addr, tokenInfoQuery{}, &info); err != nil {
		return "", fmt.Errorf("query token_info %s: %w", addr, err)
	}
	sym := info.TokenInfo.Symbol
	if sym == "" {
		return "", fmt.Errorf("token %s: empty symbol", addr)
	}
	reg.addToken(Token{
		Symbol:   sym,
		Decimals: info.TokenInfo.Decimals,
		Address:  addr,
		CodeHash: codeHash,
	})
	return sym, nil
}
