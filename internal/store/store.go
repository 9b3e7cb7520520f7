package store

import (
	"sync"

	"swap-sync-go/metrics"
)

// Store 维护 (主体, 代币符号) 到最近观测值的映射，按链高度做单调过滤。
// TryApply 是唯一的写入口，高度比较只发生在这里。
type EventSink func(string, map[string]interface{})

// Entry 一条缓存记录。Known=false 表示余额暂时未知（viewing key 失败等）。
type Entry struct {
	Value  float64
	Height int64
	Known  bool
}

// Update 一次待写入的观测值。
type Update struct {
	Key    string
	Value  float64
	Height int64
	Known  bool
}

type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry

	sink EventSink
}

func New(sink EventSink) *Store {
	return &Store{
		entries: make(map[string]Entry),
		sink:    sink,
	}
}

// BalanceKey 用户自有余额的缓存 key。
func BalanceKey(symbol string) string {
	return symbol
}

// ReserveKey 交易对储备的缓存 key。
func ReserveKey(symbol, pairKey string) string {
	return symbol + "-" + pairKey
}

// Get 读取缓存记录。
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}

// Height 返回 key 当前的缓存高度；不存在时返回 0。
func (s *Store) Height(key string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[key].Height
}

// TryApply 仅当高度严格大于已存高度（或首写）时写入。
// 等于或更旧的高度直接丢弃，保证乱序事件下值不回退。
func (s *Store) TryApply(u Update) bool {
	s.mu.Lock()
	applied := s.applyLocked(u)
	s.mu.Unlock()
	s.record(u, applied)
	return applied
}

// ApplyBatch 在单次加锁内写入一条消息触达的全部 key，
// 作为相对其他消息的一个原子状态迁移（见同步器的串行合并）。
func (s *Store) ApplyBatch(updates []Update) int {
	s.mu.Lock()
	applied := make([]bool, len(updates))
	n := 0
	for i, u := range updates {
		if s.applyLocked(u) {
			applied[i] = true
			n++
		}
	}
	s.mu.Unlock()
	for i, u := range updates {
		s.record(u, applied[i])
	}
	return n
}

func (s *Store) applyLocked(u Update) bool {
	prev, ok := s.entries[u.Key]
	if ok && u.Height <= prev.Height {
		return false
	}
	s.entries[u.Key] = Entry{Value: u.Value, Height: u.Height, Known: u.Known}
	return true
}

func (s *Store) record(u Update, applied bool) {
	if applied {
		metrics.CacheAppliedTotal.Inc()
	} else {
		metrics.CacheRejectedTotal.Inc()
	}
	if !applied || s.sink == nil {
		return
	}
	s.sink("cache_apply", map[string]interface{}{
		"key":    u.Key,
		"value":  u.Value,
		"height": u.Height,
		"known":  u.Known,
	})
}
