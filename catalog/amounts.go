package catalog

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// ToRawAmount 把带小数的数量换成链上最小单位的整数字符串。
// 按十进制字面值移位，超出精度的部分截断，不做四舍五入。
func ToRawAmount(amount float64, decimals int) string {
	if amount <= 0 {
		return "0"
	}
	s := strconv.FormatFloat(amount, 'f', -1, 64)
	intPart, fracPart, _ := strings.Cut(s, ".")
	if len(fracPart) > decimals {
		fracPart = fracPart[:decimals]
	}
	for len(fracPart) < decimals {
		fracPart += "0"
	}
	out := strings.TrimLeft(intPart+fracPart, "0")
	if out == "" {
		return "0"
	}
	return out
}

// FromRawAmount 把链上整数数量换回带小数的数值。
func FromRawAmount(raw string, decimals int) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty amount")
	}
	i, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return 0, fmt.Errorf("malformed amount %q", raw)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	f := new(big.Float).SetPrec(128).SetInt(i)
	f.Quo(f, new(big.Float).SetPrec(128).SetInt(scale))
	out, _ := f.Float64()
	return out, nil
}
