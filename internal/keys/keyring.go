package keys

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"swap-sync-go/gateway"
)

// Keyring 本地文件钱包凭证：按链分组的 token 地址到 viewing key 映射。
// 格式:
//
//	secret-4:
//	  secret1eth...: api_key_xxx
//	  secret1usdt...: api_key_yyy
type Keyring struct {
	byChain map[string]map[string]string
}

// LoadKeyring 从 YAML 文件加载凭证。
func LoadKeyring(path string) (*Keyring, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyring: %w", err)
	}
	byChain := make(map[string]map[string]string)
	if err := yaml.Unmarshal(raw, &byChain); err != nil {
		return nil, fmt.Errorf("parse keyring: %w", err)
	}
	return &Keyring{byChain: byChain}, nil
}

// GetViewingKey 实现 gateway.Credentials。
func (k *Keyring) GetViewingKey(chainID, tokenAddress string) (string, error) {
	keys, ok := k.byChain[chainID]
	if !ok {
		return "", gateway.ErrKeyNotFound
	}
	key, ok := keys[tokenAddress]
	if !ok || key == "" {
		return "", gateway.ErrKeyNotFound
	}
	return key, nil
}
