package catalog

// Pair 交易对合约。Symbols 按工厂返回顺序保存，两个方向的 key 都指向同一对象。
type Pair struct {
	ContractAddr string
	CodeHash     string
	Symbols      [2]string
}

// Key 返回 "{A}/{B}" 形式的规范 key。
func (p *Pair) Key() string {
	return PairKey(p.Symbols[0], p.Symbols[1])
}

// ReverseKey 返回 "{B}/{A}"。
func (p *Pair) ReverseKey() string {
	return PairKey(p.Symbols[1], p.Symbols[0])
}

// Has 该交易对是否包含 symbol。
func (p *Pair) Has(symbol string) bool {
	return p.Symbols[0] == symbol || p.Symbols[1] == symbol
}

// Other 返回交易对中另一侧的符号；symbol 不在对内时返回空串。
func (p *Pair) Other(symbol string) string {
	switch symbol {
	case p.Symbols[0]:
		return p.Symbols[1]
	case p.Symbols[1]:
		return p.Symbols[0]
	}
	return ""
}

// PairKey 拼出方向敏感的查找 key。
func PairKey(from, to string) string {
	return from + "/" + to
}
