package main

import (
	"flag"
	"fmt"
	"log"

	"swap-sync-go/amm"
)

// 离线报价计算器：给定池储备与输入数量，输出成交预估。
func main() {
	offerPool := flag.Float64("offerPool", 0, "卖出侧池储备")
	askPool := flag.Float64("askPool", 0, "买入侧池储备")
	amount := flag.Float64("amount", 0, "输入数量")
	reverse := flag.Bool("reverse", false, "按期望买入数量反推卖出数量")
	slippage := flag.Float64("slippage", 0.005, "滑点容忍")
	flag.Parse()

	if *reverse {
		res, err := amm.ComputeOfferAmount(*offerPool, *askPool, *amount)
		if err != nil {
			log.Fatalf("报价失败: %v", err)
		}
		fmt.Printf("offer_amount=%.6f spread=%.6f commission=%.6f\n",
			res.OfferAmount, res.SpreadAmount, res.CommissionAmount)
		return
	}

	res, err := amm.ComputeSwap(*offerPool, *askPool, *amount)
	if err != nil {
		log.Fatalf("报价失败: %v", err)
	}
	impact := res.SpreadAmount / res.ReturnAmount
	fmt.Printf("return_amount=%.6f spread=%.6f commission=%.6f price_impact=%.4f min_received=%.6f\n",
		res.ReturnAmount, res.SpreadAmount, res.CommissionAmount,
		impact, res.ReturnAmount*(1-*slippage))
}
