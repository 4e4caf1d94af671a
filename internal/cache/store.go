package cache

import (
	"errors"
	"time"
)

// Key 是十六进制编码的 SHA-256 摘要，直接充当磁盘文件名的主干。
type Key string

// Format 决定磁盘条目的扩展名，区分音频与文本产物。
type Format string

const (
	FormatWAV  Format = "wav"
	FormatText Format = "txt"
)

// Ext 返回带点的文件扩展名。
func (f Format) Ext() string {
	return "." + string(f)
}

// Ref 将内存层使用的 fast key 与完整 key 绑在一起。
// fast key 只取文本前缀参与哈希，查得快但可能跨文本碰撞；
// 内存条目因此记录完整 key，命中时必须比对一致才算命中。
type Ref struct {
	Fast Key
	Full Key
}

// SingleRef 构造 fast/full 相同的引用，供指纹类 key 使用。
func SingleRef(key Key) Ref {
	return Ref{Fast: key, Full: key}
}

// Entry 表示一次缓存命中结果。Payload 写入后不可变，同 key 重写采用
// last-writer-wins 语义。
type Entry struct {
	Key       Key
	Payload   []byte
	CreatedAt time.Time
}

// ErrNotFound 表示两级缓存均未命中。
var ErrNotFound = errors.New("cache entry not found")
