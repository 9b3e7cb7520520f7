package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"swap-sync-go/amm"
	"swap-sync-go/catalog"
)

// SwapRequest 一笔待执行的兑换。
type SwapRequest struct {
	Pair              *catalog.Pair
	FromToken         catalog.Token
	OfferAmount       float64 // 卖出数量（展示精度）
	AskAmount         float64 // 预估可得数量（展示精度）
	SlippageTolerance float64 // 如 0.005
}

type assetInfoMsg struct {
	NativeToken *struct {
		Denom string `json:"denom"`
	} `json:"native_token,omitempty"`
}

type swapMsg struct {
	Swap struct {
		OfferAsset *struct {
			Info   assetInfoMsg `json:"info"`
			Amount string       `json:"amount"`
		} `json:"offer_asset,omitempty"`
		BeliefPrice string `json:"belief_price"`
		MaxSpread   string `json:"max_spread"`
	} `json:"swap"`
}

type sendMsg struct {
	Send struct {
		Recipient string `json:"recipient"`
		Amount    string `json:"amount"`
		Msg       string `json:"msg"`
	} `json:"send"`
}

// ExecuteSwap 构造并提交兑换消息。原生资产直接对 pair 合约执行 swap 并附带
// 资金；snip20 走 send+内嵌消息。belief price 取期望回报率的倒数，
// max_spread 恒为 "0"，滑点保护由 belief price 承担。
func ExecuteSwap(ctx context.Context, q Querier, req SwapRequest) (*Receipt, error) {
	if req.Pair == nil {
		return nil, fmt.Errorf("swap without a pair")
	}
	if req.OfferAmount <= 0 || req.AskAmount <= 0 {
		return nil, amm.ErrInvalidAmount
	}

	expectedReturn := req.AskAmount * (1 - req.SlippageTolerance)
	beliefPrice, err := amm.ReverseDecimal(expectedReturn / req.OfferAmount)
	if err != nil {
		return nil, fmt.Errorf("belief price: %w", err)
	}

	rawAmount := catalog.ToRawAmount(req.OfferAmount, req.FromToken.Decimals)

	var msg swapMsg
	msg.Swap.BeliefPrice = formatDecimal(beliefPrice)
	msg.Swap.MaxSpread = "0"

	if req.FromToken.IsNative() {
		msg.Swap.OfferAsset = &struct {
			Info   assetInfoMsg `json:"info"`
			Amount string       `json:"amount"`
		}{
			Info: assetInfoMsg{NativeToken: &struct {
				Denom string `json:"denom"`
			}{Denom: catalog.NativeDenom}},
			Amount: rawAmount,
		}
		funds := []Coin{{Denom: catalog.NativeDenom, Amount: rawAmount}}
		return q.Execute(ctx, req.Pair.ContractAddr, msg, funds)
	}

	inner, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	var send sendMsg
	send.Send.Recipient = req.Pair.ContractAddr
	send.Send.Amount = rawAmount
	send.Send.Msg = base64.StdEncoding.EncodeToString(inner)
	return q.Execute(ctx, req.FromToken.Address, send, nil)
}

// formatDecimal 结算层接受最多 18 位小数的十进制字符串。
func formatDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', 18, 64)
	// trim trailing zeros but keep at least one digit after the point
	i := len(s) - 1
	for i > 0 && s[i] == '0' {
		i--
	}
	if s[i] == '.' {
		i--
	}
	return s[:i+1]
}
