package cache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Janitor 周期性清理两级缓存：内存层按过期窗口，磁盘层按更长的保留期。
// 它只是回收空间的优化，真正的过期语义由 Tiered 的读路径保证。
type Janitor struct {
	memory    *MemoryTier
	disk      *DiskTier
	expiry    time.Duration
	retention time.Duration
	interval  time.Duration
	logger    *logrus.Logger
	now       func() time.Time
}

// NewJanitor 构建清扫器，interval 决定两次清理之间的间隔。
func NewJanitor(memory *MemoryTier, disk *DiskTier, expiry, retention, interval time.Duration, logger *logrus.Logger) *Janitor {
	return &Janitor{
		memory:    memory,
		disk:      disk,
		expiry:    expiry,
		retention: retention,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
}

// Run 以固定间隔循环清理，直到 ctx 取消。通常在独立 goroutine 中调用。
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.SweepOnce()
		}
	}
}

// SweepOnce 执行一轮清理。单个文件的失败只记日志，不影响其余条目。
func (j *Janitor) SweepOnce() {
	now := j.now()

	memRemoved := j.memory.SweepExpired(now.Add(-j.expiry))

	diskRemoved, failed, err := j.disk.SweepOlderThan(now.Add(-j.retention))
	fields := logrus.Fields{
		"action":       "cache_sweep",
		"mem_removed":  memRemoved,
		"disk_removed": diskRemoved,
	}
	if err != nil {
		j.logger.WithError(err).WithFields(fields).Warn("cache_sweep_failed")
		return
	}
	if len(failed) > 0 {
		fields["failed"] = failed
		j.logger.WithFields(fields).Warn("cache_sweep_partial")
		return
	}
	j.logger.WithFields(fields).Debug("cache_sweep_complete")
}
