package speech

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voice-hub/voice-hub/internal/cache"
	"github.com/voice-hub/voice-hub/internal/executor"
	"github.com/voice-hub/voice-hub/internal/provider"
)

// stubSynth 记录调用次数的合成桩，返回可配置的音频或错误。
type stubSynth struct {
	calls   int64
	audio   []byte
	err     error
	block   chan struct{} // 非 nil 时在返回前等待
	chunks  [][]byte
	connErr error
}

func (s *stubSynth) SynthesizeOnce(ctx context.Context, req provider.SynthesisRequest) ([]byte, error) {
	atomic.AddInt64(&s.calls, 1)
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.audio, nil
}

func (s *stubSynth) SynthesizeStream(ctx context.Context, req provider.SynthesisRequest) (provider.ByteStream, error) {
	atomic.AddInt64(&s.calls, 1)
	if s.connErr != nil {
		return nil, s.connErr
	}
	return &sliceStream{chunks: s.chunks}, nil
}

type stubSTT struct {
	calls      int64
	transcript string
	err        error
}

func (s *stubSTT) TranscribeOnce(ctx context.Context, audio []byte, mimeHint string) (provider.Transcription, error) {
	atomic.AddInt64(&s.calls, 1)
	if s.err != nil {
		return provider.Transcription{}, s.err
	}
	return provider.Transcription{Transcript: s.transcript, Confidence: 0.98}, nil
}

type stubChat struct {
	calls     int64
	reply     string
	lastTurns []provider.Turn
}

func (s *stubChat) Complete(ctx context.Context, history []provider.Turn, message string) (string, error) {
	atomic.AddInt64(&s.calls, 1)
	s.lastTurns = append([]provider.Turn(nil), history...)
	return s.reply, nil
}

type serviceFixture struct {
	svc   *Service
	synth *stubSynth
	stt   *stubSTT
	chat  *stubChat
}

func newServiceFixture(t *testing.T, wait time.Duration) *serviceFixture {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	disk, err := cache.NewDiskTier(t.TempDir())
	if err != nil {
		t.Fatalf("创建磁盘层失败: %v", err)
	}
	store := cache.NewTiered(cache.NewMemoryTier(16), disk, time.Hour, logger)

	pool := executor.NewPool(executor.Options{Workers: 4, CallTimeout: 5 * time.Second, Logger: logger})
	t.Cleanup(pool.Close)

	synth := &stubSynth{audio: []byte("RIFF-fake-wav")}
	stt := &stubSTT{transcript: "hello world"}
	chatStub := &stubChat{reply: "hi there"}

	svc := NewService(Options{
		Store:       store,
		Pool:        pool,
		Synthesizer: synth,
		Transcriber: stt,
		Chat:        chatStub,
		History:     NewHistory(3),
		Active:      NewActiveRegistry(),
		Logger:      logger,
		ResultWait:  wait,
	})
	return &serviceFixture{svc: svc, synth: synth, stt: stt, chat: chatStub}
}

func TestSynthesizeSecondCallHitsCache(t *testing.T) {
	f := newServiceFixture(t, time.Second)
	req := SynthesisRequest{Text: "Hello", Voice: "male", Speed: 1.0}

	first, err := f.svc.Synthesize(context.Background(), req)
	if err != nil {
		t.Fatalf("首次合成失败: %v", err)
	}

	second, err := f.svc.Synthesize(context.Background(), req)
	if err != nil {
		t.Fatalf("二次合成失败: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Fatalf("两次结果应字节一致")
	}
	if got := atomic.LoadInt64(&f.synth.calls); got != 1 {
		t.Fatalf("第二次应命中缓存，Provider 调用了 %d 次", got)
	}
}

func TestSynthesizeValidation(t *testing.T) {
	f := newServiceFixture(t, time.Second)

	cases := []SynthesisRequest{
		{Text: "", Voice: "default", Speed: 1.0},
		{Text: "hi", Voice: "robot", Speed: 1.0},
		{Text: "hi", Voice: "default", Speed: 0.1},
		{Text: "hi", Voice: "default", Speed: 2.5},
	}
	for i, req := range cases {
		if _, err := f.svc.Synthesize(context.Background(), req); !IsValidation(err) {
			t.Fatalf("用例 %d 应返回校验错误，得到 %v", i, err)
		}
	}
	if atomic.LoadInt64(&f.synth.calls) != 0 {
		t.Fatalf("校验失败不应触发 Provider 调用")
	}
}

func TestSynthesizeProviderFailure(t *testing.T) {
	f := newServiceFixture(t, time.Second)
	f.synth.err = errors.New("upstream 500")

	_, err := f.svc.Synthesize(context.Background(), SynthesisRequest{Text: "x", Voice: "default", Speed: 1.0})
	var compErr *ComputationError
	if !errors.As(err, &compErr) {
		t.Fatalf("Provider 错误应包装为 ComputationError，得到 %v", err)
	}
	if compErr.Provider != "cartesia" {
		t.Fatalf("应标注来源 Provider: %s", compErr.Provider)
	}
}

func TestSynthesizeTimeoutThenCacheHit(t *testing.T) {
	f := newServiceFixture(t, 50*time.Millisecond)
	f.synth.block = make(chan struct{})

	req := SynthesisRequest{Text: "slow text", Voice: "default", Speed: 1.0}
	_, err := f.svc.Synthesize(context.Background(), req)
	if !IsTimeout(err) {
		t.Fatalf("期望超时错误，得到 %v", err)
	}

	// 放行底层任务：完成后应回填缓存。后续重试读到已关闭的通道会直接通过。
	close(f.synth.block)

	deadline := time.Now().Add(2 * time.Second)
	for {
		audio, err := f.svc.Synthesize(context.Background(), req)
		if err == nil && bytes.Equal(audio, f.synth.audio) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("超时任务完成后应能命中缓存，最后错误: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestTranscribeSentinelBelowThreshold(t *testing.T) {
	f := newServiceFixture(t, time.Second)

	transcript, err := f.svc.Transcribe(context.Background(), bytes.Repeat([]byte("a"), 100))
	if err != nil {
		t.Fatalf("过小音频不应报错: %v", err)
	}
	if transcript != SentinelNoSpeech {
		t.Fatalf("应返回哨兵文本，得到 %q", transcript)
	}
	if atomic.LoadInt64(&f.stt.calls) != 0 {
		t.Fatalf("过小音频不应触发 Provider 调用")
	}
}

func TestTranscribeEmptyAudioRejected(t *testing.T) {
	f := newServiceFixture(t, time.Second)
	if _, err := f.svc.Transcribe(context.Background(), nil); !IsValidation(err) {
		t.Fatalf("空音频应返回校验错误，得到 %v", err)
	}
}

func TestTranscribeSecondCallHitsCache(t *testing.T) {
	f := newServiceFixture(t, time.Second)
	audio := bytes.Repeat([]byte("waveform"), 200) // 超过最小阈值

	first, err := f.svc.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("首次转写失败: %v", err)
	}
	second, err := f.svc.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("二次转写失败: %v", err)
	}
	if first != second {
		t.Fatalf("两次转写应一致")
	}
	if got := atomic.LoadInt64(&f.stt.calls); got != 1 {
		t.Fatalf("第二次应命中缓存，Provider 调用了 %d 次", got)
	}
}

func TestTranscribeLargePayloadUsesFingerprint(t *testing.T) {
	f := newServiceFixture(t, time.Second)
	audio := bytes.Repeat([]byte("long-recording"), 128*1024) // 超过采样阈值

	if _, err := f.svc.Transcribe(context.Background(), audio); err != nil {
		t.Fatalf("首次转写失败: %v", err)
	}
	if _, err := f.svc.Transcribe(context.Background(), audio); err != nil {
		t.Fatalf("二次转写失败: %v", err)
	}
	if got := atomic.LoadInt64(&f.stt.calls); got != 1 {
		t.Fatalf("大载荷也应命中指纹缓存，调用了 %d 次", got)
	}
}

func TestChatAppendsHistoryAndPassesContext(t *testing.T) {
	f := newServiceFixture(t, time.Second)

	if _, err := f.svc.Chat(context.Background(), "u1", "first"); err != nil {
		t.Fatalf("chat error: %v", err)
	}
	if _, err := f.svc.Chat(context.Background(), "u1", "second"); err != nil {
		t.Fatalf("chat error: %v", err)
	}

	if len(f.chat.lastTurns) != 1 {
		t.Fatalf("第二次调用应携带一轮历史，得到 %d", len(f.chat.lastTurns))
	}
	if f.chat.lastTurns[0].Prompt != "first" {
		t.Fatalf("历史内容不一致: %+v", f.chat.lastTurns[0])
	}
}

func TestChatRequiresMessage(t *testing.T) {
	f := newServiceFixture(t, time.Second)
	if _, err := f.svc.Chat(context.Background(), "u1", ""); !IsValidation(err) {
		t.Fatalf("空消息应返回校验错误，得到 %v", err)
	}
}

func TestActiveRegistryEmptyAfterRequests(t *testing.T) {
	f := newServiceFixture(t, time.Second)

	_, _ = f.svc.Synthesize(context.Background(), SynthesisRequest{Text: "x", Voice: "default", Speed: 1.0})
	f.synth.err = errors.New("boom")
	_, _ = f.svc.Synthesize(context.Background(), SynthesisRequest{Text: "y", Voice: "default", Speed: 1.0})

	if got := len(f.svc.Active().Snapshot()); got != 0 {
		t.Fatalf("请求结束后不应残留在途记录，剩余 %d", got)
	}
}
