// Package metrics provides Prometheus metrics for the swap sync core
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WSConnected 事件流连接状态（1=已连接）
	WSConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swapsync_ws_connected",
		Help: "Whether the chain event subscription is connected (1) or not (0)",
	})

	// EventsTotal 收到的通知事件总数
	EventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapsync_events_total",
		Help: "Chain notification events received",
	})

	// StaleEventsTotal 因高度不新而跳过的事件数
	StaleEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapsync_stale_events_total",
		Help: "Events skipped because the symbol was already fresh at that height",
	})

	// InvalidEventsTotal 协议错误（高度非法等）被丢弃的事件数
	InvalidEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapsync_invalid_events_total",
		Help: "Events dropped due to protocol errors such as a non-numeric height",
	})

	// RefreshesTotal 触发的每符号刷新次数
	RefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapsync_refreshes_total",
		Help: "Per-symbol balance refreshes triggered by events",
	}, []string{"symbol"})

	// CacheAppliedTotal 余额缓存成功写入次数
	CacheAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapsync_cache_applied_total",
		Help: "Balance cache entries accepted by the monotonic height filter",
	})

	// CacheRejectedTotal 因高度不大于缓存值而拒绝的写入次数
	CacheRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapsync_cache_rejected_total",
		Help: "Balance cache writes rejected as stale by the monotonic height filter",
	})

	// ViewingKeyRetriesTotal viewing key 重试次数
	ViewingKeyRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapsync_viewing_key_retries_total",
		Help: "Viewing key lookup retries",
	})

	// QueryFailuresTotal 链上查询失败次数
	QueryFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapsync_query_failures_total",
		Help: "Failed balance/reserve queries",
	})

	// QuoteRecomputesTotal 报价重算次数
	QuoteRecomputesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapsync_quote_recomputes_total",
		Help: "Quote session recomputations",
	})

	// LastEventHeight 最近处理的事件高度
	LastEventHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swapsync_last_event_height",
		Help: "Height of the most recently dispatched event",
	})
)

// StartMetricsServer 启动Prometheus指标服务器
func StartMetricsServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, nil)
	}()
}
