package cache

import (
	"sync"
	"time"
)

// MemoryTier 是有条目数上限的内存缓存层，整层共用一把互斥锁。
// 访问模式以网络 I/O 为主，单锁不会成为瓶颈。
type MemoryTier struct {
	mu       sync.Mutex
	maxItems int
	entries  map[Key]*memoryEntry

	hits   uint64
	misses uint64
}

type memoryEntry struct {
	entry      Entry
	lastAccess time.Time
}

// NewMemoryTier 创建最多容纳 maxItems 条记录的内存层。
func NewMemoryTier(maxItems int) *MemoryTier {
	return &MemoryTier{
		maxItems: maxItems,
		entries:  make(map[Key]*memoryEntry),
	}
}

// Get 按 fast key 查找，并校验条目携带的完整 key 是否与期望一致。
// fast key 碰撞时返回未命中，绝不把别的文本的结果交出去。
// 命中只刷新 lastAccess，CreatedAt 保持不变，过期判断不受访问影响。
func (m *MemoryTier) Get(ref Ref, now time.Time) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.entries[ref.Fast]
	if !ok || item.entry.Key != ref.Full {
		m.misses++
		return Entry{}, false
	}

	item.lastAccess = now
	m.hits++
	return item.entry, true
}

// Put 写入条目；超出上限时先驱逐 CreatedAt 最旧的条目，
// 时间相同按 key 字典序决定，保证测试可复现。
func (m *MemoryTier) Put(ref Ref, entry Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[ref.Fast]; !exists && len(m.entries) >= m.maxItems {
		m.evictOldestLocked()
	}

	m.entries[ref.Fast] = &memoryEntry{
		entry:      entry,
		lastAccess: entry.CreatedAt,
	}
}

// Remove 删除指定 fast key 的条目，不存在时为空操作。
func (m *MemoryTier) Remove(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// SweepExpired 移除 CreatedAt 早于 cutoff 的条目，返回清理数量。
func (m *MemoryTier) SweepExpired(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, item := range m.entries {
		if item.entry.CreatedAt.Before(cutoff) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Len 返回当前条目数。
func (m *MemoryTier) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Stats 输出命中/未命中计数与当前规模，供诊断接口使用。
func (m *MemoryTier) Stats() (hits, misses uint64, size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits, m.misses, len(m.entries)
}

func (m *MemoryTier) evictOldestLocked() {
	var victim Key
	var oldest time.Time
	first := true
	for key, item := range m.entries {
		created := item.entry.CreatedAt
		switch {
		case first, created.Before(oldest):
			victim, oldest, first = key, created, false
		case created.Equal(oldest) && key < victim:
			victim = key
		}
	}
	if !first {
		delete(m.entries, victim)
	}
}
