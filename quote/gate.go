package quote

import (
	"errors"

	"swap-sync-go/amm"
)

// Gate UI 面向的放行判定，决定兑换按钮的状态。
type Gate int

const (
	GateEnterAmount Gate = iota
	GateInsufficientBalance
	GateNoPair
	GateLoadingPrice
	GateInsufficientLiquidity
	GateReady
)

func (g Gate) String() string {
	switch g {
	case GateEnterAmount:
		return "ENTER_AMOUNT"
	case GateInsufficientBalance:
		return "INSUFFICIENT_BALANCE"
	case GateNoPair:
		return "NO_PAIR"
	case GateLoadingPrice:
		return "LOADING_PRICE"
	case GateInsufficientLiquidity:
		return "INSUFFICIENT_LIQUIDITY"
	case GateReady:
		return "READY"
	default:
		return "UNKNOWN"
	}
}

// Evaluate 按优先级归并会话状态与外部条件。
// fromBalanceKnown=false 表示余额暂时未知（viewing key 失败），按不足处理交由
// 上层展示，但不阻塞价格行。
func (s Session) Evaluate(hasPair bool, fromBalance float64, fromBalanceKnown bool) Gate {
	if s.Idle() {
		return GateEnterAmount
	}
	if !hasPair {
		return GateNoPair
	}
	if s.Err != nil {
		if errors.Is(s.Err, amm.ErrInsufficientLiquidity) {
			return GateInsufficientLiquidity
		}
		if errors.Is(s.Err, ErrNoPair) {
			return GateNoPair
		}
	}
	if s.FromAmount <= 0 || s.ToAmount <= 0 {
		return GateLoadingPrice
	}
	if fromBalanceKnown && fromBalance < s.FromAmount {
		return GateInsufficientBalance
	}
	if s.PriceImpact < 0 || s.PriceImpact >= 1 {
		return GateInsufficientLiquidity
	}
	return GateReady
}
