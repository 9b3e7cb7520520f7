package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Event 订阅流上的一条已解析通知。ID 是注册订阅时使用的逻辑频道名
// （符号或交易对 key），Height 来自 TxResult 或区块头。
type Event struct {
	ID     string
	Height int64
}

var (
	// ErrNotEvent 订阅确认等不携带数据的帧。
	ErrNotEvent = errors.New("not a notification event")
	// ErrInvalidHeight 事件高度缺失或非数字，属协议错误，事件应被丢弃。
	ErrInvalidHeight = errors.New("invalid event height")
)

// wsEnvelope 对应 Tendermint RPC 订阅推送的 JSON-RPC 包装。
type wsEnvelope struct {
	ID     json.RawMessage `json:"id"`
	Result struct {
		Data *struct {
			Value struct {
				TxResult *struct {
					Height string `json:"height"`
				} `json:"TxResult"`
				Block *struct {
					Header struct {
						Height string `json:"height"`
					} `json:"header"`
				} `json:"block"`
			} `json:"value"`
		} `json:"data"`
	} `json:"result"`
}

// ParseEvent 解析一帧订阅消息。高度优先取 TxResult，其次取区块头。
func ParseEvent(raw []byte) (Event, error) {
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("parse subscription frame: %w", err)
	}
	if env.Result.Data == nil {
		return Event{}, ErrNotEvent
	}

	id := decodeID(env.ID)
	if id == "" {
		return Event{}, errors.New("subscription frame missing id")
	}

	var rawHeight string
	switch {
	case env.Result.Data.Value.TxResult != nil:
		rawHeight = env.Result.Data.Value.TxResult.Height
	case env.Result.Data.Value.Block != nil:
		rawHeight = env.Result.Data.Value.Block.Header.Height
	}

	height, err := strconv.ParseInt(rawHeight, 10, 64)
	if err != nil || height <= 0 {
		return Event{}, fmt.Errorf("%w: got %q", ErrInvalidHeight, rawHeight)
	}
	return Event{ID: id, Height: height}, nil
}

// decodeID 订阅 id 原样回显，字符串或数字都可能出现。
func decodeID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
