package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// NewDiskTier 以 basePath 为根目录构建磁盘层，整个进程复用一份实例。
// 磁盘布局是一个扁平目录：<basePath>/<key>.<ext>，文件存在即视为索引，
// 条目的 CreatedAt 由文件 ModTime 表达。
func NewDiskTier(basePath string) (*DiskTier, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return &DiskTier{basePath: abs}, nil
}

// DiskTier 负责缓存的持久化读写，跨进程重启依旧可用。
type DiskTier struct {
	basePath string
}

// Get 读取 key 对应的文件并还原为 Entry，不存在时返回 ErrNotFound。
func (d *DiskTier) Get(key Key, format Format) (Entry, error) {
	path, err := d.entryPath(key, format)
	if err != nil {
		return Entry{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	if info.IsDir() {
		return Entry{}, ErrNotFound
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}

	return Entry{
		Key:       key,
		Payload:   payload,
		CreatedAt: info.ModTime(),
	}, nil
}

// Put 通过临时文件 + rename 原子写入，保证并发 Get 永远读不到半个文件。
// createdAt 通过 Chtimes 落到文件时间戳上。
func (d *DiskTier) Put(key Key, format Format, payload []byte, createdAt time.Time) error {
	path, err := d.entryPath(key, format)
	if err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(d.basePath, ".cache-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, writeErr := tempFile.Write(payload)
	closeErr := tempFile.Close()
	if writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		os.Remove(tempName)
		return writeErr
	}

	if err := os.Rename(tempName, path); err != nil {
		os.Remove(tempName)
		return err
	}

	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return os.Chtimes(path, createdAt, createdAt)
}

// Remove 删除条目文件，文件不存在不算错误。
func (d *DiskTier) Remove(key Key, format Format) error {
	path, err := d.entryPath(key, format)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// SweepOlderThan 遍历目录删除 ModTime 早于 cutoff 的文件。
// 单个文件删除失败只记入返回的失败 key 列表，不中断整轮清理。
func (d *DiskTier) SweepOlderThan(cutoff time.Time) (removed int, failed []string, err error) {
	entries, err := os.ReadDir(d.basePath)
	if err != nil {
		return 0, nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".cache-") {
			continue
		}
		info, infoErr := entry.Info()
		if infoErr != nil {
			failed = append(failed, entry.Name())
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if rmErr := os.Remove(filepath.Join(d.basePath, entry.Name())); rmErr != nil {
			if errors.Is(rmErr, fs.ErrNotExist) {
				// 被并发清理抢先删掉，视作成功。
				removed++
				continue
			}
			failed = append(failed, entry.Name())
			continue
		}
		removed++
	}
	return removed, failed, nil
}

// entryPath 拼接并校验目标文件路径，拒绝任何越出 basePath 的 key。
func (d *DiskTier) entryPath(key Key, format Format) (string, error) {
	if key == "" {
		return "", errors.New("cache key required")
	}

	name := string(key) + format.Ext()
	path := filepath.Join(d.basePath, name)
	if filepath.Dir(path) != d.basePath {
		return "", errors.New("invalid cache key")
	}
	return path, nil
}
