package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"swap-sync-go/catalog"
	"swap-sync-go/gateway"
	"swap-sync-go/internal/keys"
	"swap-sync-go/internal/store"
	"swap-sync-go/metrics"
)

// State 同步器状态
type State int

const (
	// StateIdle 尚未启动
	StateIdle State = iota
	// StateRunning 订阅已建立，事件循环运行中
	StateRunning
	// StateStopped 已停止
	StateStopped
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// EventSource 链上事件订阅源
type EventSource interface {
	Subscribe(query, id string) error
	Events() <-chan gateway.Event
	Close() error
}

// Applied 合并落库后的回调，携带被动到的符号与事件高度
type Applied func(symbols []string, height int64)

// Components 同步器依赖组件
type Components struct {
	Registry *catalog.Registry
	Store    *store.Store
	Querier  gateway.Querier
	Resolver *keys.Resolver
	Source   EventSource
	Logger   *zap.Logger
	// OnApplied 可为空；非空时在每次合并之后调用
	OnApplied Applied
}

// Config 同步器配置
type Config struct {
	// WalletAddress 被跟踪的钱包地址
	WalletAddress string
}

// subscription 一条订阅通道与它触发刷新的符号集合
type subscription struct {
	query string
	id    string
}

// mergeResult 单个符号刷新完成后送回主循环的合并批
type mergeResult struct {
	symbol   string
	height   int64
	updates  []store.Update
	wrongKey bool
}

// Synchronizer 事件同步器。单个消费者 goroutine 独占事件循环，
// 按符号并发抓取余额与储备，合并一律回到主循环串行落库。
type Synchronizer struct {
	config   Config
	registry *catalog.Registry
	store    *store.Store
	querier  gateway.Querier
	resolver *keys.Resolver
	source   EventSource
	logger   *zap.Logger
	applied  Applied

	// targets 订阅 id 到受影响符号集合的映射，启动时构建后只读
	targets map[string][]string

	// heights 与 wrongKey 只在主循环 goroutine 里读写
	heights  map[string]int64
	wrongKey map[string]bool

	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	doneChan chan struct{}
}

// New 创建同步器
func New(cfg Config, c Components) (*Synchronizer, error) {
	if cfg.WalletAddress == "" {
		return nil, errors.New("wallet address is required")
	}
	if c.Registry == nil || c.Store == nil || c.Querier == nil || c.Source == nil {
		return nil, errors.New("registry, store, querier and source are required")
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return &Synchronizer{
		config:   cfg,
		registry: c.Registry,
		store:    c.Store,
		querier:  c.Querier,
		resolver: c.Resolver,
		source:   c.Source,
		logger:   c.Logger,
		applied:  c.OnApplied,
		heights:  make(map[string]int64),
		wrongKey: make(map[string]bool),
	}, nil
}

// State 当前状态
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start 注册全部订阅并启动事件循环。
// 高度缓存按链高度键控，重启后继续沿用。
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateRunning {
		s.mu.Unlock()
		return fmt.Errorf("synchronizer already started (state: %s)", s.state)
	}

	subs, targets := s.buildSubscriptions()
	s.targets = targets
	// 结果通道按次启动新建并只通过参数传递，重启后上一轮的
	// 迟到刷新只能到达它自己那条已无人消费的通道
	results := make(chan mergeResult, 16)
	s.doneChan = make(chan struct{})

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateRunning
	s.mu.Unlock()

	for _, sub := range subs {
		if err := s.source.Subscribe(sub.query, sub.id); err != nil {
			cancel()
			s.mu.Lock()
			s.state = StateStopped
			s.mu.Unlock()
			return fmt.Errorf("subscribe %s: %w", sub.id, err)
		}
	}

	s.logger.Info("synchronizer started",
		zap.Int("subscriptions", len(subs)),
		zap.Int("symbols", len(s.registry.Symbols())))

	go s.run(runCtx, results)
	return nil
}

// Stop 取消在途刷新、关闭订阅源并等待主循环退出。幂等。
func (s *Synchronizer) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopped
	cancel := s.cancel
	done := s.doneChan
	s.mu.Unlock()

	cancel()
	if err := s.source.Close(); err != nil {
		s.logger.Warn("event source close failed", zap.Error(err))
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.logger.Warn("timeout waiting for synchronizer loop to exit")
	}

	s.logger.Info("synchronizer stopped")
	return nil
}

// buildSubscriptions 构建订阅表：钱包活动三条、每个代币合约两条、
// 每个去重后的交易对合约两条。
func (s *Synchronizer) buildSubscriptions() ([]subscription, map[string][]string) {
	var subs []subscription
	targets := make(map[string][]string)

	addr := s.config.WalletAddress
	for _, attr := range []string{"message.sender", "message.signer", "transfer.recipient"} {
		subs = append(subs, subscription{
			query: fmt.Sprintf("tm.event='Tx' AND %s='%s'", attr, addr),
			id:    catalog.NativeSymbol,
		})
	}
	targets[catalog.NativeSymbol] = []string{catalog.NativeSymbol}

	for _, sym := range s.registry.Symbols() {
		tok, _ := s.registry.Token(sym)
		if tok.IsNative() {
			continue
		}
		for _, attr := range []string{"message.contract_address", "wasm.contract_address"} {
			subs = append(subs, subscription{
				query: fmt.Sprintf("tm.event='Tx' AND %s='%s'", attr, tok.Address),
				id:    sym,
			})
		}
		targets[sym] = []string{sym}
	}

	seen := make(map[string]bool)
	for _, pair := range s.registry.Pairs() {
		if seen[pair.ContractAddr] {
			continue
		}
		seen[pair.ContractAddr] = true
		id := pair.Key()
		for _, attr := range []string{"message.contract_address", "wasm.contract_address"} {
			subs = append(subs, subscription{
				query: fmt.Sprintf("tm.event='Tx' AND %s='%s'", attr, pair.ContractAddr),
				id:    id,
			})
		}
		targets[id] = []string{pair.Symbols[0], pair.Symbols[1]}
	}

	return subs, targets
}

// run 主事件循环：唯一有权读写 heights、wrongKey 与落库的 goroutine
func (s *Synchronizer) run(ctx context.Context, results chan mergeResult) {
	defer close(s.doneChan)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.source.Events():
			if !ok {
				s.logger.Info("event stream closed")
				return
			}
			s.handleEvent(ctx, results, ev)
		case res := <-results:
			s.applyResult(res)
		}
	}
}

// handleEvent 按符号做高度去重后派发并发刷新，绝不阻塞事件接收。
func (s *Synchronizer) handleEvent(ctx context.Context, results chan<- mergeResult, ev gateway.Event) {
	symbols, ok := s.targets[ev.ID]
	if !ok {
		s.logger.Debug("event for unknown subscription", zap.String("id", ev.ID))
		return
	}
	metrics.LastEventHeight.Set(float64(ev.Height))

	for _, sym := range symbols {
		if s.heights[sym] >= ev.Height {
			metrics.StaleEventsTotal.Inc()
			s.logger.Debug("stale event skipped",
				zap.String("symbol", sym),
				zap.Int64("cached", s.heights[sym]),
				zap.Int64("event", ev.Height))
			continue
		}
		s.heights[sym] = ev.Height
		metrics.RefreshesTotal.WithLabelValues(sym).Inc()

		go s.refresh(ctx, results, sym, ev.Height, s.wrongKey[sym])
	}
}

// applyResult 串行合并一个符号的刷新批，再通知报价层
func (s *Synchronizer) applyResult(res mergeResult) {
	s.store.ApplyBatch(res.updates)
	s.wrongKey[res.symbol] = res.wrongKey
	if s.applied != nil {
		s.applied([]string{res.symbol}, res.height)
	}
}

// refresh 抓取一个符号的钱包余额与所有相关池储备。
// 独立 I/O 可以并发，结果批只送回本轮主循环合并；会话关闭后丢弃。
func (s *Synchronizer) refresh(ctx context.Context, results chan<- mergeResult, sym string, height int64, afterWrongKey bool) {
	tok, ok := s.registry.Token(sym)
	if !ok {
		return
	}

	res := mergeResult{symbol: sym, height: height}

	value, wrong, err := s.fetchOwnerBalance(ctx, tok, afterWrongKey)
	res.wrongKey = wrong
	res.updates = append(res.updates, store.Update{
		Key:    store.BalanceKey(sym),
		Value:  value,
		Height: height,
		Known:  err == nil,
	})
	if err != nil {
		s.logger.Warn("balance refresh degraded to unknown",
			zap.String("symbol", sym),
			zap.Int64("height", height),
			zap.Error(err))
	}

	for _, pair := range s.registry.PairsFor(sym) {
		reserve, rerr := gateway.FetchPoolReserve(ctx, s.querier, tok, pair)
		known := rerr == nil
		if rerr != nil {
			s.logger.Warn("pool reserve refresh failed",
				zap.String("symbol", sym),
				zap.String("pair", pair.Key()),
				zap.Error(rerr))
		}
		// 两个方向的键都要写，翻转方向后读的是反向键
		for _, key := range []string{pair.Key(), pair.ReverseKey()} {
			res.updates = append(res.updates, store.Update{
				Key:    store.ReserveKey(sym, key),
				Value:  reserve,
				Height: height,
				Known:  known,
			})
		}
	}

	if ctx.Err() != nil {
		// 会话已关闭，迟到的结果直接丢弃
		return
	}
	select {
	case results <- res:
	case <-ctx.Done():
	}
}

// fetchOwnerBalance 解析 viewing key 后查钱包余额；原生资产无需凭证
func (s *Synchronizer) fetchOwnerBalance(ctx context.Context, tok catalog.Token, afterWrongKey bool) (float64, bool, error) {
	viewingKey := ""
	if !tok.IsNative() {
		if s.resolver == nil {
			return 0, false, keys.ErrKeyUnavailable
		}
		key, err := s.resolver.Resolve(ctx, tok.Address, afterWrongKey)
		if err != nil {
			return 0, false, err
		}
		viewingKey = key
	}

	value, err := gateway.FetchBalance(ctx, s.querier, tok, s.config.WalletAddress, viewingKey)
	if err != nil {
		return 0, errors.Is(err, gateway.ErrWrongViewingKey), err
	}
	return value, false, nil
}
