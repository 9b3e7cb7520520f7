package keys

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swap-sync-go/gateway"
)

func TestKeyringLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.yaml")
	content := `
secret-4:
  secret1eth: vk-eth
  secret1usdt: vk-usdt
pulsar-3:
  secret1eth: vk-test
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	kr, err := LoadKeyring(path)
	require.NoError(t, err)

	key, err := kr.GetViewingKey("secret-4", "secret1eth")
	require.NoError(t, err)
	assert.Equal(t, "vk-eth", key)

	// 同一地址在另一条链上可以有不同的 key
	key, err = kr.GetViewingKey("pulsar-3", "secret1eth")
	require.NoError(t, err)
	assert.Equal(t, "vk-test", key)

	_, err = kr.GetViewingKey("secret-4", "secret1unknown")
	assert.ErrorIs(t, err, gateway.ErrKeyNotFound)

	_, err = kr.GetViewingKey("unknown-chain", "secret1eth")
	assert.ErrorIs(t, err, gateway.ErrKeyNotFound)
}

func TestLoadKeyringErrors(t *testing.T) {
	_, err := LoadKeyring(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid"), 0o600))
	_, err = LoadKeyring(path)
	assert.Error(t, err)
}
