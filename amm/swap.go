package amm

import (
	"errors"
	"math"
)

// CommissionRate 交易手续费率（0.3%），与链上 pair 合约保持一致。
const CommissionRate = 0.003

var (
	// ErrInsufficientLiquidity 池子储备不足以支撑该笔兑换。
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	// ErrInvalidAmount 输入数量非法（零、负数或非有限值）。
	ErrInvalidAmount = errors.New("invalid amount")
)

// SwapResult ComputeSwap 的输出。
type SwapResult struct {
	ReturnAmount     float64 // 实际可得数量（已扣手续费）
	SpreadAmount     float64 // 滑点损耗：按边际价应得与实际所得之差
	CommissionAmount float64 // 手续费
}

// OfferResult ComputeOfferAmount 的输出。
type OfferResult struct {
	OfferAmount      float64 // 需要卖出的数量
	SpreadAmount     float64
	CommissionAmount float64
}

// ComputeSwap 按恒定乘积 k = offerPool*askPool 计算卖出 offerAmount 可得数量。
// 手续费在除法之后从返回额中扣（与合约结算顺序一致）。
func ComputeSwap(offerPool, askPool, offerAmount float64) (SwapResult, error) {
	return computeSwap(offerPool, askPool, offerAmount, CommissionRate)
}

func computeSwap(offerPool, askPool, offerAmount, rate float64) (SwapResult, error) {
	if !isFinite(offerPool) || !isFinite(askPool) || offerPool <= 0 || askPool <= 0 {
		return SwapResult{}, ErrInsufficientLiquidity
	}
	if !isFinite(offerAmount) || offerAmount <= 0 {
		return SwapResult{}, ErrInvalidAmount
	}

	cp := offerPool * askPool
	returnAmount := askPool - cp/(offerPool+offerAmount)
	spreadAmount := offerAmount*askPool/offerPool - returnAmount
	commissionAmount := returnAmount * rate
	returnAmount -= commissionAmount

	if !isFinite(returnAmount) || returnAmount <= 0 {
		return SwapResult{}, ErrInsufficientLiquidity
	}
	return SwapResult{
		ReturnAmount:     returnAmount,
		SpreadAmount:     spreadAmount,
		CommissionAmount: commissionAmount,
	}, nil
}

// ComputeOfferAmount ComputeSwap 的代数逆：求最少需要卖出多少才能获得 askAmount。
func ComputeOfferAmount(offerPool, askPool, askAmount float64) (OfferResult, error) {
	return computeOfferAmount(offerPool, askPool, askAmount, CommissionRate)
}

func computeOfferAmount(offerPool, askPool, askAmount, rate float64) (OfferResult, error) {
	if !isFinite(offerPool) || !isFinite(askPool) || offerPool <= 0 || askPool <= 0 {
		return OfferResult{}, ErrInsufficientLiquidity
	}
	if !isFinite(askAmount) || askAmount <= 0 {
		return OfferResult{}, ErrInvalidAmount
	}

	beforeCommission := askAmount / (1 - rate)
	// 要求的数量扣费前就已超过储备，池子给不出来
	if beforeCommission >= askPool {
		return OfferResult{}, ErrInsufficientLiquidity
	}

	cp := offerPool * askPool
	offerAmount := cp/(askPool-beforeCommission) - offerPool
	spreadAmount := offerAmount*askPool/offerPool - beforeCommission
	commissionAmount := beforeCommission * rate

	if !isFinite(offerAmount) || offerAmount <= 0 {
		return OfferResult{}, ErrInsufficientLiquidity
	}
	return OfferResult{
		OfferAmount:      offerAmount,
		SpreadAmount:     spreadAmount,
		CommissionAmount: commissionAmount,
	}, nil
}

// ReverseDecimal 返回 1/x，用于把期望回报率换算成结算层的 belief price。
func ReverseDecimal(x float64) (float64, error) {
	if !isFinite(x) || x == 0 {
		return 0, ErrInvalidAmount
	}
	return 1 / x, nil
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
