package gateway

import (
	"context"
	"errors"
)

// Coin 附带在执行消息上的原生资产。
type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// Receipt 执行结果回执。
type Receipt struct {
	TxHash string
	Height int64
	RawLog string
}

// Querier 链读写的抽象契约。查询只读，Execute 需要外部签名者支持。
type Querier interface {
	// QueryContract 对合约做 smart query，结果反序列化进 resp。
	QueryContract(ctx context.Context, contract string, req, resp interface{}) error
	// QueryNativeBalance 查询地址的原生资产余额（最小单位整数字符串）。
	QueryNativeBalance(ctx context.Context, address string) (string, error)
	// Execute 执行合约消息，可附带原生资产。
	Execute(ctx context.Context, contract string, msg interface{}, funds []Coin) (*Receipt, error)
}

// Credentials 钱包侧的 viewing key 存取契约。
type Credentials interface {
	GetViewingKey(chainID, tokenAddress string) (string, error)
}

var (
	// ErrKeyNotFound 钱包尚未存储该代币的 viewing key。
	ErrKeyNotFound = errors.New("viewing key not found")
	// ErrWrongViewingKey 链上报告的解密失败：key 已设置但不正确。
	ErrWrongViewingKey = errors.New("wrong viewing key")
	// ErrMissingViewingKey 没有可用的 viewing key，余额暂时未知。
	ErrMissingViewingKey = errors.New("missing viewing key")
	// ErrExecuteUnsupported 该 Querier 实现不支持签名执行。
	ErrExecuteUnsupported = errors.New("execute not supported: signing is handled by the wallet")
)

// WrongViewingKeyMessage 链上解密失败时返回的错误文案。
const WrongViewingKeyMessage = "Wrong viewing key for this address or viewing key not set"
