package catalog

import "sort"

// Registry 一次性加载后的只读目录：代币与交易对。
type Registry struct {
	tokens map[string]Token
	pairs  []*Pair
	bySym  map[string]*Pair // "A/B" 与 "B/A" 都指向同一 *Pair
}

func newRegistry() *Registry {
	return &Registry{
		tokens: make(map[string]Token),
		bySym:  make(map[string]*Pair),
	}
}

// NewRegistry 由给定的代币与交易对直接构建目录，跳过链上加载。
func NewRegistry(tokens []Token, pairs []*Pair) *Registry {
	r := newRegistry()
	for _, t := range tokens {
		r.addToken(t)
	}
	for _, p := range pairs {
		r.addPair(p)
	}
	return r
}

func (r *Registry) addToken(t Token) {
	if _, ok := r.tokens[t.Symbol]; !ok {
		r.tokens[t.Symbol] = t
	}
}

func (r *Registry) addPair(p *Pair) {
	r.pairs = append(r.pairs, p)
	r.bySym[p.Key()] = p
	r.bySym[p.ReverseKey()] = p
}

// Token 按符号查代币。
func (r *Registry) Token(symbol string) (Token, bool) {
	t, ok := r.tokens[symbol]
	return t, ok
}

// Symbols 返回排序后的全部代币符号。
func (r *Registry) Symbols() []string {
	out := make([]string, 0, len(r.tokens))
	for sym := range r.tokens {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Pair 按任一方向查交易对。
func (r *Registry) Pair(from, to string) (*Pair, bool) {
	p, ok := r.bySym[PairKey(from, to)]
	return p, ok
}

// Pairs 返回全部交易对（按合约地址去重后的原始列表）。
func (r *Registry) Pairs() []*Pair {
	return r.pairs
}

// PairsFor 返回包含 symbol 的全部交易对。
func (r *Registry) PairsFor(symbol string) []*Pair {
	var out []*Pair
	for _, p := range r.pairs {
		if p.Has(symbol) {
			out = append(out, p)
		}
	}
	return out
}
