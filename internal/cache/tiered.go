package cache

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// Tiered 把内存层与磁盘层组合成统一的读写入口。
// 过期判断在读路径上强制执行，清扫协程只是提前回收空间的优化。
type Tiered struct {
	memory *MemoryTier
	disk   *DiskTier
	expiry time.Duration
	logger *logrus.Logger
	now    func() time.Time
}

// NewTiered 构建两级缓存门面；now 固定为 time.Now，测试通过 WithClock 替换。
func NewTiered(memory *MemoryTier, disk *DiskTier, expiry time.Duration, logger *logrus.Logger) *Tiered {
	return &Tiered{
		memory: memory,
		disk:   disk,
		expiry: expiry,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock 替换时间源，供测试控制过期行为。
func (t *Tiered) WithClock(now func() time.Time) *Tiered {
	t.now = now
	return t
}

// Get 依次查内存、磁盘。磁盘命中会提升进内存层（受容量上限约束）。
// 超过过期窗口的条目一律按未命中处理，磁盘读错误降级为未命中并记日志。
func (t *Tiered) Get(ref Ref, format Format) (Entry, bool) {
	now := t.now()

	if entry, ok := t.memory.Get(ref, now); ok {
		if t.fresh(entry, now) {
			return entry, true
		}
		t.memory.Remove(ref.Fast)
	}

	entry, err := t.disk.Get(ref.Full, format)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			t.logger.WithError(err).WithFields(logrus.Fields{
				"action": "cache_get_failed",
				"key":    string(ref.Full),
			}).Warn("disk_read_failed")
		}
		return Entry{}, false
	}
	if !t.fresh(entry, now) {
		return Entry{}, false
	}

	t.memory.Put(ref, entry)
	return entry, true
}

// Put 先落盘再写内存（write-through）。磁盘失败记日志后仍写内存，
// 请求链路不因缓存 I/O 失败而中断。
func (t *Tiered) Put(ref Ref, format Format, payload []byte) Entry {
	entry := Entry{
		Key:       ref.Full,
		Payload:   payload,
		CreatedAt: t.now().UTC(),
	}

	if err := t.disk.Put(ref.Full, format, payload, entry.CreatedAt); err != nil {
		t.logger.WithError(err).WithFields(logrus.Fields{
			"action": "cache_put_failed",
			"key":    string(ref.Full),
		}).Warn("disk_write_failed")
	}

	t.memory.Put(ref, entry)
	return entry
}

// Stats 暴露内存层统计，供 /-/cache 诊断接口使用。
func (t *Tiered) Stats() (hits, misses uint64, size int) {
	return t.memory.Stats()
}

// ExpiryWindow 返回配置的过期窗口。
func (t *Tiered) ExpiryWindow() time.Duration {
	return t.expiry
}

func (t *Tiered) fresh(entry Entry, now time.Time) bool {
	return now.Sub(entry.CreatedAt) <= t.expiry
}
