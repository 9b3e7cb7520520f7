package quote

import (
	"errors"

	"swap-sync-go/amm"
)

// Side 标记哪一侧是用户输入的权威值。
type Side int

const (
	SideNone Side = iota // Idle：两侧皆空
	SideFrom             // from 为权威输入，to 为推导值
	SideTo               // to 为权威输入，from 为推导值
)

// ErrNoPair 选中的两个代币之间不存在交易对。
var ErrNoPair = errors.New("trading pair does not exist")

// Reserves 当前活跃交易对的两侧储备。Known=false 表示还没加载到价格数据。
type Reserves struct {
	OfferPool float64 // from 代币在池中的储备
	AskPool   float64 // to 代币在池中的储备
	Known     bool
}

// Session 一次报价会话的不可变快照。所有迁移函数返回新值，
// 任何时刻至多一侧是权威输入，另一侧总是由储备推导出来。
type Session struct {
	FromToken string
	ToToken   string

	FromAmount float64 // 0 表示空
	ToAmount   float64

	Authoritative Side

	Spread      float64
	Commission  float64
	PriceImpact float64

	// Err 阻塞性条件（流动性不足等）；非 nil 时数字不可用于成交
	Err error
}

// New 创建空会话。
func New(fromToken, toToken string) Session {
	return Session{FromToken: fromToken, ToToken: toToken}
}

// SetFromAmount 用户编辑 from 侧。清空该侧会把整个会话重置为 Idle。
func (s Session) SetFromAmount(v float64, r Reserves) Session {
	if v <= 0 {
		return s.reset()
	}
	s.FromAmount = v
	s.Authoritative = SideFrom
	return s.Recompute(r)
}

// SetToAmount 用户编辑 to 侧。
func (s Session) SetToAmount(v float64, r Reserves) Session {
	if v <= 0 {
		return s.reset()
	}
	s.ToAmount = v
	s.Authoritative = SideTo
	return s.Recompute(r)
}

// SelectFromToken 更换 from 代币；选中当前 to 代币时交换两侧。
// 换对之后调用方需用新交易对的储备执行 Recompute。
func (s Session) SelectFromToken(symbol string) Session {
	if symbol == s.ToToken {
		return s.FlipSides()
	}
	s.FromToken = symbol
	return s
}

// SelectToToken 更换 to 代币；选中当前 from 代币时交换两侧。
func (s Session) SelectToToken(symbol string) Session {
	if symbol == s.FromToken {
		return s.FlipSides()
	}
	s.ToToken = symbol
	return s
}

// FlipSides 交换买卖方向：数量跟随代币走，权威侧随之互换。
func (s Session) FlipSides() Session {
	s.FromToken, s.ToToken = s.ToToken, s.FromToken
	s.FromAmount, s.ToAmount = s.ToAmount, s.FromAmount
	switch s.Authoritative {
	case SideFrom:
		s.Authoritative = SideTo
	case SideTo:
		s.Authoritative = SideFrom
	}
	return s
}

// Recompute 从权威侧出发重算推导侧。储备未就绪时保持现状，
// 等下一次缓存更新触发重算。
func (s Session) Recompute(r Reserves) Session {
	if s.Authoritative == SideNone {
		return s.reset()
	}
	if !r.Known {
		return s
	}

	switch s.Authoritative {
	case SideFrom:
		res, err := amm.ComputeSwap(r.OfferPool, r.AskPool, s.FromAmount)
		if err != nil {
			return s.blocked(err)
		}
		s.ToAmount = res.ReturnAmount
		s.Spread = res.SpreadAmount
		s.Commission = res.CommissionAmount
		s.PriceImpact = res.SpreadAmount / res.ReturnAmount
	case SideTo:
		res, err := amm.ComputeOfferAmount(r.OfferPool, r.AskPool, s.ToAmount)
		if err != nil {
			return s.blocked(err)
		}
		s.FromAmount = res.OfferAmount
		s.Spread = res.SpreadAmount
		s.Commission = res.CommissionAmount
		s.PriceImpact = res.SpreadAmount / res.OfferAmount
	}

	s.Err = nil
	if s.PriceImpact < 0 || s.PriceImpact >= 1 {
		s.Err = amm.ErrInsufficientLiquidity
	}
	return s
}

// Price 成交价（to/from），两侧就绪才有意义。
func (s Session) Price() float64 {
	if s.FromAmount <= 0 || s.ToAmount <= 0 {
		return 0
	}
	return s.ToAmount / s.FromAmount
}

// MinimumReceived 滑点容忍内的最低可得数量。
func (s Session) MinimumReceived(slippageTolerance float64) float64 {
	return s.ToAmount * (1 - slippageTolerance)
}

// Idle 两侧皆空。
func (s Session) Idle() bool {
	return s.Authoritative == SideNone
}

func (s Session) reset() Session {
	s.FromAmount = 0
	s.ToAmount = 0
	s.Authoritative = SideNone
	s.Spread = 0
	s.Commission = 0
	s.PriceImpact = 0
	s.Err = nil
	return s
}

// blocked 保留权威输入，清掉推导数字并记录阻塞原因。
func (s Session) blocked(err error) Session {
	switch s.Authoritative {
	case SideFrom:
		s.ToAmount = 0
	case SideTo:
		s.FromAmount = 0
	}
	s.Spread = 0
	s.Commission = 0
	s.PriceImpact = 0
	s.Err = err
	return s
}
