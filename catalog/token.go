package catalog

// NativeSymbol 链原生资产符号，无合约地址与 viewing key。
const NativeSymbol = "SCRT"

// NativeDenom 原生资产的最小单位面额。
const NativeDenom = "uscrt"

// NativeDecimals 原生资产精度。
const NativeDecimals = 6

// Token 会话期间只读的代币元数据。
type Token struct {
	Symbol   string
	Decimals int
	Address  string // 合约地址；原生资产为空
	CodeHash string
	Logo     string
}

// IsNative 该代币是否为原生资产（无需 viewing key）。
func (t Token) IsNative() bool {
	return t.Address == ""
}
