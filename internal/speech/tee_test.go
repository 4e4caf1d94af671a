package speech

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

// sliceStream 按序吐出预置分块的流桩，可在中途注入失败。
type sliceStream struct {
	chunks  [][]byte
	pos     int
	failAt  int // failAt > 0 时第 failAt 次 Next 返回错误
	failErr error
	closed  bool
}

func (s *sliceStream) Next() ([]byte, error) {
	s.pos++
	if s.failAt > 0 && s.pos == s.failAt {
		return nil, s.failErr
	}
	if s.pos > len(s.chunks) {
		return nil, io.EOF
	}
	return s.chunks[s.pos-1], nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

type failingWriter struct {
	allowed int
	writes  int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.writes > w.allowed {
		return 0, errors.New("connection reset")
	}
	return len(p), nil
}

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestTeeDrainedStreamCachesExactBytes(t *testing.T) {
	chunks := [][]byte{[]byte("aa"), []byte("bb"), []byte("cc")}
	source := &sliceStream{chunks: chunks}
	var client bytes.Buffer

	cached := make(chan []byte, 1)
	tee := newTeeStream(source, &client, discardLogger(), func(payload []byte) {
		cached <- payload
	})
	if err := tee.run(); err != nil {
		t.Fatalf("run 失败: %v", err)
	}

	want := []byte("aabbcc")
	if !bytes.Equal(client.Bytes(), want) {
		t.Fatalf("客户端收到 %q，期望 %q", client.Bytes(), want)
	}
	select {
	case payload := <-cached:
		if !bytes.Equal(payload, want) {
			t.Fatalf("缓存载荷 %q，期望 %q", payload, want)
		}
	case <-time.After(time.Second):
		t.Fatalf("流耗尽后应调度缓存写入")
	}
	if !source.closed {
		t.Fatalf("上游流应被关闭")
	}
}

func TestTeeMidStreamFailureDoesNotCache(t *testing.T) {
	source := &sliceStream{
		chunks:  [][]byte{[]byte("aa"), []byte("bb")},
		failAt:  2,
		failErr: errors.New("upstream reset"),
	}
	var client bytes.Buffer

	cached := make(chan []byte, 1)
	tee := newTeeStream(source, &client, discardLogger(), func(payload []byte) {
		cached <- payload
	})
	if err := tee.run(); err == nil {
		t.Fatalf("中途失败应返回错误")
	}

	select {
	case <-cached:
		t.Fatalf("残缺流不应落缓存")
	case <-time.After(50 * time.Millisecond):
	}
	if !source.closed {
		t.Fatalf("失败路径也应关闭上游流")
	}
}

func TestTeeClientWriteFailureAborts(t *testing.T) {
	source := &sliceStream{chunks: [][]byte{[]byte("aa"), []byte("bb"), []byte("cc")}}
	client := &failingWriter{allowed: 1}

	cached := make(chan []byte, 1)
	tee := newTeeStream(source, client, discardLogger(), func(payload []byte) {
		cached <- payload
	})
	if err := tee.run(); err == nil {
		t.Fatalf("客户端写失败应返回错误")
	}

	if client.writes != 2 {
		t.Fatalf("第二次写失败后应停止转发，实际写了 %d 次", client.writes)
	}
	select {
	case <-cached:
		t.Fatalf("客户端断开后不应落缓存")
	case <-time.After(50 * time.Millisecond):
	}
	if !source.closed {
		t.Fatalf("中止路径也应关闭上游流")
	}
}
