package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"swap-sync-go/catalog"
	"swap-sync-go/gateway"
	"swap-sync-go/internal/keys"
	"swap-sync-go/internal/store"
)

const walletAddr = "secret1wallet"

// fakeSource 可控的事件源：订阅只记录，事件由测试用例注入
type fakeSource struct {
	mu     gosync.Mutex
	subs   []struct{ Query, ID string }
	events chan gateway.Event
	closed int
	subErr error
}

func newFakeSource() *fakeSource {
	return &fakeSource{events: make(chan gateway.Event, 16)}
}

func (f *fakeSource) Subscribe(query, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return f.subErr
	}
	f.subs = append(f.subs, struct{ Query, ID string }{query, id})
	return nil
}

func (f *fakeSource) Events() <-chan gateway.Event { return f.events }

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeSource) subsFor(id string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.subs {
		if s.ID == id {
			out = append(out, s.Query)
		}
	}
	return out
}

// fakeQuerier 以 (合约, 地址|key) 为键返回 snip20 余额，原生余额按地址返回。
// viewing key 不匹配时回 viewing_key_error，贴合链上合约的行为。
type fakeQuerier struct {
	mu     gosync.Mutex
	native map[string]string
	snip20 map[string]map[string]string
	gate   chan struct{} // 非空时原生查询先阻塞，用于模拟慢响应
}

func (f *fakeQuerier) setSnip20(contract, owner, key, raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snip20 == nil {
		f.snip20 = make(map[string]map[string]string)
	}
	if f.snip20[contract] == nil {
		f.snip20[contract] = make(map[string]string)
	}
	f.snip20[contract][owner+"|"+key] = raw
}

func (f *fakeQuerier) QueryContract(_ context.Context, contract string, req, resp interface{}) error {
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	var q struct {
		Balance struct {
			Address string `json:"address"`
			Key     string `json:"key"`
		} `json:"balance"`
	}
	if err := json.Unmarshal(b, &q); err != nil {
		return err
	}

	f.mu.Lock()
	byOwner, ok := f.snip20[contract]
	raw, match := byOwner[q.Balance.Address+"|"+q.Balance.Key]
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown contract %s", contract)
	}

	payload := `{"viewing_key_error":{"msg":"` + gateway.WrongViewingKeyMessage + `"}}`
	if match {
		payload = fmt.Sprintf(`{"balance":{"amount":"%s"}}`, raw)
	}
	return json.Unmarshal([]byte(payload), resp)
}

func (f *fakeQuerier) QueryNativeBalance(ctx context.Context, address string) (string, error) {
	f.mu.Lock()
	gate := f.gate
	raw := f.native[address]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if raw == "" {
		raw = "0"
	}
	return raw, nil
}

func (f *fakeQuerier) Execute(context.Context, string, interface{}, []gateway.Coin) (*gateway.Receipt, error) {
	return nil, gateway.ErrExecuteUnsupported
}

// mapCreds 静态钱包凭证
type mapCreds map[string]string

func (m mapCreds) GetViewingKey(_, tokenAddress string) (string, error) {
	key, ok := m[tokenAddress]
	if !ok {
		return "", gateway.ErrKeyNotFound
	}
	return key, nil
}

type appliedNote struct {
	symbols []string
	height  int64
}

type fixture struct {
	sync    *Synchronizer
	source  *fakeSource
	querier *fakeQuerier
	store   *store.Store
	applied chan appliedNote
}

func newFixture(t *testing.T, creds mapCreds) *fixture {
	t.Helper()

	reg := catalog.NewRegistry(
		[]catalog.Token{
			{Symbol: "SCRT", Decimals: 6},
			{Symbol: "sETH", Decimals: 6, Address: "secret1eth"},
		},
		[]*catalog.Pair{
			{ContractAddr: "secret1pair1", Symbols: [2]string{"SCRT", "sETH"}},
		},
	)

	q := &fakeQuerier{native: map[string]string{
		walletAddr:     "12500000",   // 12.5 SCRT
		"secret1pair1": "1000000000", // 池里 1000 SCRT
	}}
	q.setSnip20("secret1eth", walletAddr, "vk-eth", "250000000")
	q.setSnip20("secret1eth", "secret1pair1", gateway.PoolViewingKey, "2000000000")

	st := store.New(nil)
	applied := make(chan appliedNote, 16)
	src := newFakeSource()

	s, err := New(Config{WalletAddress: walletAddr}, Components{
		Registry: reg,
		Store:    st,
		Querier:  q,
		Resolver: keys.NewResolver(creds, "secret-4", zap.NewNop()),
		Source:   src,
		Logger:   zap.NewNop(),
		OnApplied: func(symbols []string, height int64) {
			applied <- appliedNote{symbols: symbols, height: height}
		},
	})
	require.NoError(t, err)

	return &fixture{sync: s, source: src, querier: q, store: st, applied: applied}
}

func (f *fixture) waitApplied(t *testing.T) appliedNote {
	t.Helper()
	select {
	case n := <-f.applied:
		return n
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a merge")
		return appliedNote{}
	}
}

func (f *fixture) assertNoApply(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case n := <-f.applied:
		t.Fatalf("unexpected merge for %v at height %d", n.symbols, n.height)
	case <-time.After(within):
	}
}

func TestSubscriptionTable(t *testing.T) {
	f := newFixture(t, mapCreds{"secret1eth": "vk-eth"})
	require.NoError(t, f.sync.Start(context.Background()))
	defer f.sync.Stop()

	// 钱包活动三条通道，全部归到原生符号
	wallet := f.source.subsFor("SCRT")
	require.Len(t, wallet, 3)
	for _, q := range wallet {
		assert.Contains(t, q, walletAddr)
		assert.Contains(t, q, "tm.event='Tx'")
	}

	// 每个 snip20 合约两条
	token := f.source.subsFor("sETH")
	require.Len(t, token, 2)
	for _, q := range token {
		assert.Contains(t, q, "secret1eth")
	}

	// 交易对合约两条，id 是交易对键
	pair := f.source.subsFor("SCRT/sETH")
	require.Len(t, pair, 2)
	for _, q := range pair {
		assert.Contains(t, q, "secret1pair1")
	}
}

func TestNativeEventRefreshesBalanceAndReserves(t *testing.T) {
	f := newFixture(t, mapCreds{"secret1eth": "vk-eth"})
	require.NoError(t, f.sync.Start(context.Background()))
	defer f.sync.Stop()

	f.source.events <- gateway.Event{ID: "SCRT", Height: 500}
	n := f.waitApplied(t)
	assert.Equal(t, []string{"SCRT"}, n.symbols)
	assert.Equal(t, int64(500), n.height)

	bal, ok := f.store.Get(store.BalanceKey("SCRT"))
	require.True(t, ok)
	assert.True(t, bal.Known)
	assert.InDelta(t, 12.5, bal.Value, 1e-9)
	assert.Equal(t, int64(500), bal.Height)

	// 两个方向的储备键都要落
	for _, key := range []string{"SCRT/sETH", "sETH/SCRT"} {
		res, ok := f.store.Get(store.ReserveKey("SCRT", key))
		require.True(t, ok, key)
		assert.True(t, res.Known)
		assert.InDelta(t, 1000.0, res.Value, 1e-9)
	}
}

func TestPairEventRefreshesBothSymbols(t *testing.T) {
	f := newFixture(t, mapCreds{"secret1eth": "vk-eth"})
	require.NoError(t, f.sync.Start(context.Background()))
	defer f.sync.Stop()

	f.source.events <- gateway.Event{ID: "SCRT/sETH", Height: 700}

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		n := f.waitApplied(t)
		require.Len(t, n.symbols, 1)
		seen[n.symbols[0]] = true
	}
	assert.True(t, seen["SCRT"])
	assert.True(t, seen["sETH"])

	eth, ok := f.store.Get(store.BalanceKey("sETH"))
	require.True(t, ok)
	assert.True(t, eth.Known)
	assert.InDelta(t, 250.0, eth.Value, 1e-9)

	res, ok := f.store.Get(store.ReserveKey("sETH", "SCRT/sETH"))
	require.True(t, ok)
	assert.InDelta(t, 2000.0, res.Value, 1e-9)
}

// 缓存高度 500，事件高度 499 与 500 都不触发刷新
func TestStaleEventSkipped(t *testing.T) {
	f := newFixture(t, mapCreds{"secret1eth": "vk-eth"})
	require.NoError(t, f.sync.Start(context.Background()))
	defer f.sync.Stop()

	f.source.events <- gateway.Event{ID: "SCRT", Height: 500}
	f.waitApplied(t)

	f.source.events <- gateway.Event{ID: "SCRT", Height: 499}
	f.source.events <- gateway.Event{ID: "SCRT", Height: 500}
	f.assertNoApply(t, 300*time.Millisecond)

	f.source.events <- gateway.Event{ID: "SCRT", Height: 501}
	n := f.waitApplied(t)
	assert.Equal(t, int64(501), n.height)
}

func TestUnknownSubscriptionIgnored(t *testing.T) {
	f := newFixture(t, mapCreds{"secret1eth": "vk-eth"})
	require.NoError(t, f.sync.Start(context.Background()))
	defer f.sync.Stop()

	f.source.events <- gateway.Event{ID: "nobody", Height: 500}
	f.assertNoApply(t, 200*time.Millisecond)
}

// 拿不到 viewing key 时余额标记未知，池储备不受影响
func TestMissingViewingKeyMarksBalanceUnknown(t *testing.T) {
	f := newFixture(t, mapCreds{})
	require.NoError(t, f.sync.Start(context.Background()))
	defer f.sync.Stop()

	f.source.events <- gateway.Event{ID: "sETH", Height: 600}
	f.waitApplied(t)

	bal, ok := f.store.Get(store.BalanceKey("sETH"))
	require.True(t, ok)
	assert.False(t, bal.Known)
	assert.Equal(t, int64(600), bal.Height)

	res, ok := f.store.Get(store.ReserveKey("sETH", "SCRT/sETH"))
	require.True(t, ok)
	assert.True(t, res.Known)
}

// 错误的 viewing key 先落未知，key 修正后的下一个事件恢复已知
func TestWrongViewingKeyRecoversAfterCorrection(t *testing.T) {
	f := newFixture(t, mapCreds{"secret1eth": "vk-bad"})
	require.NoError(t, f.sync.Start(context.Background()))
	defer f.sync.Stop()

	f.source.events <- gateway.Event{ID: "sETH", Height: 600}
	f.waitApplied(t)

	bal, ok := f.store.Get(store.BalanceKey("sETH"))
	require.True(t, ok)
	assert.False(t, bal.Known)

	// 钱包侧把正确的 key 落了进来
	f.querier.setSnip20("secret1eth", walletAddr, "vk-bad", "250000000")

	f.source.events <- gateway.Event{ID: "sETH", Height: 601}
	f.waitApplied(t)

	bal, ok = f.store.Get(store.BalanceKey("sETH"))
	require.True(t, ok)
	assert.True(t, bal.Known)
	assert.Equal(t, int64(601), bal.Height)
}

// 停止后迟到的刷新结果必须被丢弃，不得合并
func TestStopDropsInFlightRefresh(t *testing.T) {
	f := newFixture(t, mapCreds{"secret1eth": "vk-eth"})
	gate := make(chan struct{})
	f.querier.mu.Lock()
	f.querier.gate = gate
	f.querier.mu.Unlock()

	require.NoError(t, f.sync.Start(context.Background()))

	f.source.events <- gateway.Event{ID: "SCRT", Height: 500}
	time.Sleep(50 * time.Millisecond) // 让刷新走到阻塞的查询上
	require.NoError(t, f.sync.Stop())
	close(gate)

	f.assertNoApply(t, 300*time.Millisecond)
	_, ok := f.store.Get(store.BalanceKey("SCRT"))
	assert.False(t, ok)
	assert.Equal(t, StateStopped, f.sync.State())
}

// 上一轮会话的在途刷新不得合并进重启后的新会话
func TestRestartDropsPreviousRunsRefresh(t *testing.T) {
	f := newFixture(t, mapCreds{"secret1eth": "vk-eth"})
	gate := make(chan struct{})
	f.querier.mu.Lock()
	f.querier.gate = gate
	f.querier.mu.Unlock()

	require.NoError(t, f.sync.Start(context.Background()))
	f.source.events <- gateway.Event{ID: "SCRT", Height: 500}
	time.Sleep(50 * time.Millisecond) // 让刷新走到阻塞的查询上
	require.NoError(t, f.sync.Stop())

	require.NoError(t, f.sync.Start(context.Background()))
	defer f.sync.Stop()
	close(gate)

	// 旧会话的 h500 结果只会到达它自己那条已关闭的通道
	f.assertNoApply(t, 300*time.Millisecond)
	_, ok := f.store.Get(store.BalanceKey("SCRT"))
	assert.False(t, ok)

	f.querier.mu.Lock()
	f.querier.gate = nil
	f.querier.mu.Unlock()

	f.source.events <- gateway.Event{ID: "SCRT", Height: 501}
	n := f.waitApplied(t)
	assert.Equal(t, int64(501), n.height)
	bal, ok := f.store.Get(store.BalanceKey("SCRT"))
	require.True(t, ok)
	assert.Equal(t, int64(501), bal.Height)
}

func TestRestartKeepsHeightCache(t *testing.T) {
	f := newFixture(t, mapCreds{"secret1eth": "vk-eth"})
	require.NoError(t, f.sync.Start(context.Background()))

	f.source.events <- gateway.Event{ID: "SCRT", Height: 500}
	f.waitApplied(t)
	require.NoError(t, f.sync.Stop())

	// 高度缓存按链高度键控，重启后不应重复刷新同一高度
	require.NoError(t, f.sync.Start(context.Background()))
	defer f.sync.Stop()

	f.source.events <- gateway.Event{ID: "SCRT", Height: 500}
	f.assertNoApply(t, 300*time.Millisecond)

	f.source.events <- gateway.Event{ID: "SCRT", Height: 502}
	n := f.waitApplied(t)
	assert.Equal(t, int64(502), n.height)
}

func TestStartValidation(t *testing.T) {
	_, err := New(Config{}, Components{})
	assert.Error(t, err)

	f := newFixture(t, mapCreds{"secret1eth": "vk-eth"})
	require.NoError(t, f.sync.Start(context.Background()))
	assert.Error(t, f.sync.Start(context.Background()))
	require.NoError(t, f.sync.Stop())
	assert.NoError(t, f.sync.Stop())
}

func TestSubscribeFailureAborts(t *testing.T) {
	f := newFixture(t, mapCreds{"secret1eth": "vk-eth"})
	f.source.mu.Lock()
	f.source.subErr = fmt.Errorf("socket not open")
	f.source.mu.Unlock()

	err := f.sync.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateStopped, f.sync.State())
}
