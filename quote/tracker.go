package quote

import (
	"sync"

	"go.uber.org/zap"

	"swap-sync-go/catalog"
	"swap-sync-go/internal/store"
	"swap-sync-go/metrics"
)

// Tracker 持有当前会话，桥接缓存更新与会话迁移。
// 所有迁移经由同一把锁串行，会话值本身保持不可变。
type Tracker struct {
	mu      sync.Mutex
	session Session

	registry *catalog.Registry
	store    *store.Store
	pub      *Publisher
	logger   *zap.Logger
}

func NewTracker(reg *catalog.Registry, st *store.Store, pub *Publisher, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pub == nil {
		pub = NewPublisher()
	}
	return &Tracker{
		registry: reg,
		store:    st,
		pub:      pub,
		logger:   logger,
	}
}

// Reset 选定初始交易对并清空会话。
func (t *Tracker) Reset(fromToken, toToken string) Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session = New(fromToken, toToken)
	t.pub.Publish(t.session)
	return t.session
}

// Session 当前快照。
func (t *Tracker) Session() Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session
}

// SetFromAmount / SetToAmount / SelectFromToken / SelectToToken / FlipSides
// 把用户操作套用到当前会话上。

func (t *Tracker) SetFromAmount(v float64) Session {
	return t.apply(func(s Session, r Reserves) Session { return s.SetFromAmount(v, r) })
}

func (t *Tracker) SetToAmount(v float64) Session {
	return t.apply(func(s Session, r Reserves) Session { return s.SetToAmount(v, r) })
}

func (t *Tracker) SelectFromToken(symbol string) Session {
	return t.applyReresolve(func(s Session) Session { return s.SelectFromToken(symbol) })
}

func (t *Tracker) SelectToToken(symbol string) Session {
	return t.applyReresolve(func(s Session) Session { return s.SelectToToken(symbol) })
}

func (t *Tracker) FlipSides() Session {
	return t.applyReresolve(func(s Session) Session { return s.FlipSides() })
}

// OnBalancesApplied 同步器合并完成后的回调：动到活跃交易对才重算。
func (t *Tracker) OnBalancesApplied(symbols []string, height int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	touched := false
	for _, sym := range symbols {
		if sym == t.session.FromToken || sym == t.session.ToToken {
			touched = true
			break
		}
	}
	if !touched {
		return
	}
	next := t.session.Recompute(t.reservesFor(t.session))
	if next != t.session {
		metrics.QuoteRecomputesTotal.Inc()
		t.logger.Debug("quote recomputed",
			zap.String("pair", catalog.PairKey(next.FromToken, next.ToToken)),
			zap.Int64("height", height))
	}
	t.session = next
	t.pub.Publish(t.session)
}

// Evaluate 结合目录与余额缓存给出当前放行判定。
func (t *Tracker) Evaluate() Gate {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.session
	_, hasPair := t.registry.Pair(s.FromToken, s.ToToken)
	entry, ok := t.store.Get(store.BalanceKey(s.FromToken))
	return s.Evaluate(hasPair, entry.Value, ok && entry.Known)
}

func (t *Tracker) apply(fn func(Session, Reserves) Session) Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session = fn(t.session, t.reservesFor(t.session))
	metrics.QuoteRecomputesTotal.Inc()
	t.pub.Publish(t.session)
	return t.session
}

// applyReresolve 先迁移代币选择，再用新交易对的储备重算。
func (t *Tracker) applyReresolve(fn func(Session) Session) Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	next := fn(t.session)
	t.session = next.Recompute(t.reservesFor(next))
	metrics.QuoteRecomputesTotal.Inc()
	t.pub.Publish(t.session)
	return t.session
}

// reservesFor 从缓存读给定会话交易对两侧的储备。
func (t *Tracker) reservesFor(s Session) Reserves {
	if _, ok := t.registry.Pair(s.FromToken, s.ToToken); !ok {
		return Reserves{}
	}
	key := catalog.PairKey(s.FromToken, s.ToToken)
	offer, okOffer := t.store.Get(store.ReserveKey(s.FromToken, key))
	ask, okAsk := t.store.Get(store.ReserveKey(s.ToToken, key))
	if !okOffer || !okAsk || !offer.Known || !ask.Known {
		return Reserves{}
	}
	return Reserves{OfferPool: offer.Value, AskPool: ask.Value, Known: true}
}
