package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"swap-sync-go/catalog"
	"swap-sync-go/config"
	"swap-sync-go/gateway"
	"swap-sync-go/infrastructure/alert"
	"swap-sync-go/infrastructure/logger"
	hotcfg "swap-sync-go/internal/config"
	"swap-sync-go/internal/keys"
	"swap-sync-go/internal/store"
	"swap-sync-go/internal/syncer"
	"swap-sync-go/metrics"
	"swap-sync-go/quote"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	keyringPath := flag.String("keyring", "configs/keyring.yaml", "viewing key 凭证文件路径")
	fromToken := flag.String("from", "", "初始 from 代币（默认取配置）")
	toToken := flag.String("to", "", "初始 to 代币（默认取配置）")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	lg, err := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Outputs: []string{"stdout"},
		Format:  "json",
	})
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer lg.Close()
	zlog := lg.Logger

	metrics.StartMetricsServer(cfg.Metrics.ListenAddr)
	zlog.Info("metrics listening", zap.String("addr", cfg.Metrics.ListenAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lcd := gateway.NewLCDClient(cfg.Node.LCDEndpoint,
		gateway.NewTokenBucketLimiter(cfg.Query.RatePerSec, cfg.Query.Burst))

	registry, err := catalog.Load(ctx, lcd, cfg.Node.FactoryContract)
	if err != nil {
		zlog.Fatal("加载代币目录失败", zap.Error(err))
	}
	zlog.Info("catalog loaded",
		zap.Int("tokens", len(registry.Symbols())),
		zap.Int("pairs", len(registry.Pairs())))

	keyring, err := keys.LoadKeyring(*keyringPath)
	if err != nil {
		zlog.Fatal("加载凭证失败", zap.Error(err))
	}
	resolver := keys.NewResolver(keyring, cfg.ChainID, zlog)

	st := store.New(nil)
	pub := quote.NewPublisher()
	tracker := quote.NewTracker(registry, st, pub, zlog)

	from, to := initialPair(cfg, *fromToken, *toToken, registry)
	tracker.Reset(from, to)
	zlog.Info("quote session opened", zap.String("pair", catalog.PairKey(from, to)))

	ws := gateway.NewTendermintWS(cfg.Node.WSEndpoint, zlog)
	if err := ws.Connect(ctx); err != nil {
		zlog.Fatal("连接事件流失败", zap.Error(err))
	}

	sync, err := syncer.New(
		syncer.Config{WalletAddress: cfg.Wallet.Address},
		syncer.Components{
			Registry:  registry,
			Store:     st,
			Querier:   lcd,
			Resolver:  resolver,
			Source:    ws,
			Logger:    zlog,
			OnApplied: tracker.OnBalancesApplied,
		})
	if err != nil {
		zlog.Fatal("初始化同步器失败", zap.Error(err))
	}
	if err := sync.Start(ctx); err != nil {
		zlog.Fatal("启动同步器失败", zap.Error(err))
	}

	alerts := alert.NewManager([]alert.Channel{alert.NewZapChannel("log", zlog)}, 5*time.Minute)

	startHotReload(ctx, *cfgPath, cfg, zlog)
	go logQuotes(pub.Subscribe(), tracker, lg, alerts)

	notifyReady(zlog)
	go watchdogLoop(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	zlog.Info("shutting down", zap.String("signal", s.String()))

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err := sync.Stop(); err != nil {
		_ = alerts.Error("synchronizer stop failed", map[string]interface{}{"error": err.Error()})
	}
	cancel()
}

// initialPair 初始交易对：命令行优先，其次配置，最后落到目录里的第一个交易对。
func initialPair(cfg config.AppConfig, from, to string, registry *catalog.Registry) (string, string) {
	if from == "" {
		from = cfg.Swap.DefaultFromToken
	}
	if to == "" {
		to = cfg.Swap.DefaultToToken
	}
	if from != "" && to != "" {
		return from, to
	}
	if pairs := registry.Pairs(); len(pairs) > 0 {
		return pairs[0].Symbols[0], pairs[0].Symbols[1]
	}
	return catalog.NativeSymbol, ""
}

// startHotReload 监听配置文件写入，滑点容忍等兑换参数热生效。
func startHotReload(ctx context.Context, cfgPath string, initial config.AppConfig, zlog *zap.Logger) {
	reloader, err := hotcfg.NewHotReloader(cfgPath, hotcfg.DefaultHotReloadConfig(), zlog)
	if err != nil {
		zlog.Warn("热更新不可用", zap.Error(err))
		return
	}
	reloader.RegisterValidator("swap", &hotcfg.SwapParameterValidator{})
	reloader.RegisterValidator("query", &hotcfg.QueryParameterValidator{})

	current := initial
	reloader.SetReloadHandler(func() error {
		next, err := config.LoadWithEnvOverrides(cfgPath)
		if err != nil {
			return err
		}
		if err := reloader.ValidateParameters("swap", map[string]interface{}{
			"slippage_tolerance": next.Swap.SlippageTolerance,
		}); err != nil {
			return err
		}
		if next.Swap.SlippageTolerance != current.Swap.SlippageTolerance {
			zlog.Info("slippage tolerance updated",
				zap.Float64("old", current.Swap.SlippageTolerance),
				zap.Float64("new", next.Swap.SlippageTolerance))
		}
		current = next
		return nil
	})
	if err := reloader.Start(ctx); err != nil {
		zlog.Warn("热更新启动失败", zap.Error(err))
	}
}

// logQuotes 消费报价快照，连同放行判定一起落结构化日志。
// 流动性不足是值得人看一眼的异常，走告警通道。
func logQuotes(sub <-chan quote.Session, tracker *quote.Tracker, lg *logger.Logger, alerts *alert.Manager) {
	for s := range sub {
		if s.Idle() {
			continue
		}
		pair := catalog.PairKey(s.FromToken, s.ToToken)
		gate := tracker.Evaluate()
		lg.LogSwap("quote", pair, map[string]interface{}{
			"from_amount":  s.FromAmount,
			"to_amount":    s.ToAmount,
			"price":        s.Price(),
			"price_impact": s.PriceImpact,
			"commission":   s.Commission,
			"gate":         gate.String(),
		})
		if gate == quote.GateInsufficientLiquidity {
			_ = alerts.Warning("insufficient liquidity for active pair", map[string]interface{}{
				"pair":   pair,
				"amount": s.FromAmount,
			})
		}
	}
}

func notifyReady(zlog *zap.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		zlog.Warn("sd_notify failed", zap.Error(err))
		return
	}
	if sent {
		zlog.Info("systemd readiness notified")
	}
}

// watchdogLoop 按 systemd 要求的一半间隔发 watchdog 心跳。
func watchdogLoop(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}
