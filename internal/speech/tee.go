package speech

import (
	"bytes"
	"errors"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/voice-hub/voice-hub/internal/provider"
)

// teeStream 把 Provider 的分块流按到达顺序转发给客户端 Writer，
// 同时把每个分块累积到内部缓冲。流被完整耗尽后才调度缓存写入，
// 且写入在独立 goroutine 中进行，不会拖慢最后一块的交付。
// 流中途失败或客户端断开时直接丢弃缓冲，残缺结果绝不落缓存。
type teeStream struct {
	source  provider.ByteStream
	client  io.Writer
	buffer  bytes.Buffer
	onDone  func(payload []byte)
	logger  *logrus.Logger
	written int64
}

func newTeeStream(source provider.ByteStream, client io.Writer, logger *logrus.Logger, onDone func(payload []byte)) *teeStream {
	return &teeStream{
		source: source,
		client: client,
		logger: logger,
		onDone: onDone,
	}
}

// run 消费整条流。返回 nil 表示客户端收齐了所有分块且缓存写入已调度。
func (t *teeStream) run() error {
	defer t.source.Close()

	for {
		chunk, err := t.source.Next()
		if len(chunk) > 0 {
			if _, wErr := t.client.Write(chunk); wErr != nil {
				// 客户端断开：丢弃缓冲，终止上游消费。
				t.logger.WithError(wErr).WithFields(logrus.Fields{
					"action":  "stream_abort",
					"written": t.written,
				}).Warn("client_write_failed")
				return wErr
			}
			t.written += int64(len(chunk))
			t.buffer.Write(chunk)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
	}

	payload := append([]byte(nil), t.buffer.Bytes()...)
	go t.onDone(payload)
	return nil
}
