package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"swap-sync-go/metrics"
)

// ConnState 连接状态。
type ConnState int32

const (
	StateIdle ConnState = iota
	StateConnecting
	StateOpen
	StateClosed
)

// TendermintWS 维护到节点 RPC 的 websocket 订阅连接。
// Connect 后通过 Subscribe 注册 JSON-RPC 订阅，推送经解析后进入 Events 通道。
// 重连是调用方的职责，本层只负责单条连接的生命周期。
type TendermintWS struct {
	Endpoint string
	Dialer   *websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	state  ConnState
	events chan Event
	done   chan struct{}
	logger *zap.Logger
}

type subscribeFrame struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  struct {
		Query string `json:"query"`
	} `json:"params"`
}

func NewTendermintWS(endpoint string, logger *zap.Logger) *TendermintWS {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TendermintWS{
		Endpoint: endpoint,
		Dialer:   websocket.DefaultDialer,
		events:   make(chan Event, 64),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// Connect 建立连接并启动读取循环。
func (c *TendermintWS) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateOpen {
		return errors.New("already connected")
	}
	// 关闭后 events 通道已不可用，重连要换新的客户端实例
	if c.state == StateClosed {
		return errors.New("connect on closed client")
	}
	c.state = StateConnecting

	conn, _, err := c.Dialer.DialContext(ctx, c.Endpoint, nil)
	if err != nil {
		c.state = StateIdle
		return fmt.Errorf("dial %s: %w", c.Endpoint, err)
	}
	c.conn = conn
	c.state = StateOpen
	metrics.WSConnected.Set(1)
	c.logger.Info("event stream connected", zap.String("endpoint", c.Endpoint))

	go c.readLoop(conn)
	return nil
}

// Subscribe 以 id 为逻辑频道名注册一条查询订阅。
func (c *TendermintWS) Subscribe(query, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen || c.conn == nil {
		return errors.New("subscribe before connect")
	}
	frame := subscribeFrame{JSONRPC: "2.0", ID: id, Method: "subscribe"}
	frame.Params.Query = query
	raw, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

// Events 返回解析后的通知事件通道；连接关闭时通道关闭。
func (c *TendermintWS) Events() <-chan Event {
	return c.events
}

// Close 发送正常关闭帧并断开。重复调用无害。
func (c *TendermintWS) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen || c.conn == nil {
		c.state = StateClosed
		return nil
	}
	c.state = StateClosed
	close(c.done)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "teardown")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	metrics.WSConnected.Set(0)
	return err
}

func (c *TendermintWS) readLoop(conn *websocket.Conn) {
	defer func() {
		metrics.WSConnected.Set(0)
		close(c.events)
	}()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.state == StateClosed
			c.mu.Unlock()
			if !closed {
				c.logger.Warn("event stream read failed", zap.Error(err))
			}
			return
		}
		ev, err := ParseEvent(raw)
		if err != nil {
			if errors.Is(err, ErrNotEvent) {
				continue // subscription ack
			}
			metrics.InvalidEventsTotal.Inc()
			c.logger.Error("dropping malformed event", zap.Error(err))
			continue
		}
		metrics.EventsTotal.Inc()
		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}
