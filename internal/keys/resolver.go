package keys

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"swap-sync-go/gateway"
	"swap-sync-go/metrics"
)

const (
	maxAttempts = 3
	// 钱包可能尚未持久化刚设置的 key，事件先到，稍等再试
	retryDelay = 100 * time.Millisecond
	// 上次读到 wrong viewing key 后，给在途的 set_viewing_key 落地留出时间
	wrongKeyGrace = time.Second
)

// ErrKeyUnavailable 重试耗尽仍拿不到 key。调用方应把余额标记为暂时未知，
// 等下一个触发事件再试，而不是当作致命错误。
var ErrKeyUnavailable = errors.New("viewing key unavailable after retries")

// wait 可注入的等待函数，测试里替换掉真实睡眠。
var wait = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Resolver 从钱包侧取代币的 viewing key，带有界重试。
type Resolver struct {
	creds   gateway.Credentials
	chainID string
	logger  *zap.Logger
}

func NewResolver(creds gateway.Credentials, chainID string, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{creds: creds, chainID: chainID, logger: logger}
}

// Resolve 取 tokenAddress 的 viewing key。afterWrongKey 表示该代币上一次
// 余额读取报了 wrong viewing key，先等一个宽限期再开始常规重试。
func (r *Resolver) Resolve(ctx context.Context, tokenAddress string, afterWrongKey bool) (string, error) {
	if afterWrongKey {
		if err := wait(ctx, wrongKeyGrace); err != nil {
			return "", err
		}
	}

	for attempt := 1; ; attempt++ {
		key, err := r.creds.GetViewingKey(r.chainID, tokenAddress)
		if err == nil && key != "" {
			return key, nil
		}
		if err != nil && !errors.Is(err, gateway.ErrKeyNotFound) {
			r.logger.Debug("viewing key lookup failed",
				zap.String("token", tokenAddress),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		if attempt == maxAttempts {
			return "", ErrKeyUnavailable
		}
		metrics.ViewingKeyRetriesTotal.Inc()
		if err := wait(ctx, retryDelay); err != nil {
			return "", err
		}
	}
}
