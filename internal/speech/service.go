package speech

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/voice-hub/voice-hub/internal/cache"
	"github.com/voice-hub/voice-hub/internal/executor"
	"github.com/voice-hub/voice-hub/internal/logging"
	"github.com/voice-hub/voice-hub/internal/provider"
)

// allowedVoices 是对外暴露的音色集合，与上游 voice ID 映射保持一致。
var allowedVoices = map[string]struct{}{
	"default": {},
	"male":    {},
	"female":  {},
}

const (
	// minTranscribeBytes 以下的音频不值得发给 Provider，直接返回哨兵文本。
	minTranscribeBytes = 500

	// SentinelNoSpeech 是过小音频的非错误应答。
	SentinelNoSpeech = "No speech detected"
)

// SynthesisRequest 是合成操作的入参。
type SynthesisRequest struct {
	Text  string
	Voice string
	Speed float64
}

// Options 汇总 Service 的全部依赖，统一由进程启动时注入。
type Options struct {
	Store       *cache.Tiered
	Pool        *executor.Pool
	Synthesizer provider.Synthesizer
	Transcriber provider.Transcriber
	Chat        provider.ChatModel
	History     *History
	Active      *ActiveRegistry
	Logger      *logrus.Logger
	// ResultWait 约束非流式调用方等待结果的时长。
	ResultWait time.Duration
}

// Service 实现转换请求的编排：派生 key → 查两级缓存 →
// 未命中时经工作池调用 Provider → 回写缓存后返回。
type Service struct {
	store      *cache.Tiered
	pool       *executor.Pool
	synth      provider.Synthesizer
	stt        provider.Transcriber
	chat       provider.ChatModel
	history    *History
	active     *ActiveRegistry
	logger     *logrus.Logger
	resultWait time.Duration
}

// NewService 创建编排服务。
func NewService(opts Options) *Service {
	wait := opts.ResultWait
	if wait <= 0 {
		wait = 60 * time.Second
	}
	return &Service{
		store:      opts.Store,
		pool:       opts.Pool,
		synth:      opts.Synthesizer,
		stt:        opts.Transcriber,
		chat:       opts.Chat,
		history:    opts.History,
		active:     opts.Active,
		logger:     opts.Logger,
		resultWait: wait,
	}
}

// Active 暴露在途请求表，供诊断路由读取。
func (s *Service) Active() *ActiveRegistry {
	return s.active
}

// CacheStats 暴露内存层统计，供诊断路由读取。
func (s *Service) CacheStats() (hits, misses uint64, size int) {
	return s.store.Stats()
}

// ValidateSynthesis 暴露合成入参校验，供 HTTP 层在响应头提交前拒绝非法请求。
func (s *Service) ValidateSynthesis(req SynthesisRequest) error {
	return validateSynthesis(req)
}

// Synthesize 执行非流式文本转语音。命中缓存直接返回；未命中时
// 缓存写入放在任务函数内部执行，调用方等待超时后任务照常跑完并回填缓存。
func (s *Service) Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	if err := validateSynthesis(req); err != nil {
		return nil, err
	}

	requestID := requestIDFrom(ctx)
	done := s.active.Begin(requestID, "synthesize")
	defer done()

	started := time.Now()
	ref := cache.SynthesisRef(req.Text, req.Voice, req.Speed)

	if entry, ok := s.store.Get(ref, cache.FormatWAV); ok {
		s.logComplete("synthesize", "cartesia", requestID, true, started, nil)
		return entry.Payload, nil
	}

	s.active.SetStatus(requestID, "provider_call")
	value, err := s.pool.Submit(ctx, "synthesize", s.resultWait, func(callCtx context.Context) (any, error) {
		audio, callErr := s.synth.SynthesizeOnce(callCtx, provider.SynthesisRequest(req))
		if callErr != nil {
			return nil, callErr
		}
		s.store.Put(ref, cache.FormatWAV, audio)
		return audio, nil
	})
	if err != nil {
		wrapped := s.translate("synthesize", "cartesia", ref.Full, err)
		s.logComplete("synthesize", "cartesia", requestID, false, started, wrapped)
		return nil, wrapped
	}

	s.logComplete("synthesize", "cartesia", requestID, false, started, nil)
	return value.([]byte), nil
}

// SynthesizeStream 以增量方式交付音频。缓存命中时一次性写出既有载荷；
// 未命中时在工作池内经 teeStream 边转发边累积，流完整耗尽后异步回填缓存。
func (s *Service) SynthesizeStream(ctx context.Context, req SynthesisRequest, client io.Writer) error {
	if err := validateSynthesis(req); err != nil {
		return err
	}

	requestID := requestIDFrom(ctx)
	done := s.active.Begin(requestID, "synthesize_stream")
	defer done()

	started := time.Now()
	ref := cache.SynthesisRef(req.Text, req.Voice, req.Speed)

	if entry, ok := s.store.Get(ref, cache.FormatWAV); ok {
		_, err := client.Write(entry.Payload)
		s.logComplete("synthesize_stream", "cartesia", requestID, true, started, err)
		return err
	}

	s.active.SetStatus(requestID, "provider_stream")
	_, err := s.pool.SubmitWait(ctx, "synthesize_stream", func(callCtx context.Context) (any, error) {
		stream, callErr := s.synth.SynthesizeStream(callCtx, provider.SynthesisRequest(req))
		if callErr != nil {
			return nil, callErr
		}
		tee := newTeeStream(stream, client, s.logger, func(payload []byte) {
			// 后台回填：失败只记日志，客户端流早已完成。
			s.store.Put(ref, cache.FormatWAV, payload)
			s.logger.WithFields(logrus.Fields{
				"action": "stream_cache_write",
				"key":    string(ref.Full),
				"bytes":  len(payload),
			}).Debug("stream_cached")
		})
		return nil, tee.run()
	})
	if err != nil {
		wrapped := s.translate("synthesize_stream", "cartesia", ref.Full, err)
		s.logComplete("synthesize_stream", "cartesia", requestID, false, started, wrapped)
		return wrapped
	}

	s.logComplete("synthesize_stream", "cartesia", requestID, false, started, nil)
	return nil
}

// Transcribe 执行语音转文本。过小的音频直接返回哨兵文本，不触发外呼。
func (s *Service) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", newValidationError("audio payload is empty")
	}
	if len(audio) < minTranscribeBytes {
		return SentinelNoSpeech, nil
	}

	requestID := requestIDFrom(ctx)
	done := s.active.Begin(requestID, "transcribe")
	defer done()

	started := time.Now()
	ref := cache.SingleRef(cache.AudioFingerprint(audio))

	if entry, ok := s.store.Get(ref, cache.FormatText); ok {
		s.logComplete("transcribe", "deepgram", requestID, true, started, nil)
		return string(entry.Payload), nil
	}

	s.active.SetStatus(requestID, "provider_call")
	value, err := s.pool.Submit(ctx, "transcribe", s.resultWait, func(callCtx context.Context) (any, error) {
		result, callErr := s.stt.TranscribeOnce(callCtx, audio, "audio/webm")
		if callErr != nil {
			return nil, callErr
		}
		s.store.Put(ref, cache.FormatText, []byte(result.Transcript))
		return result.Transcript, nil
	})
	if err != nil {
		wrapped := s.translate("transcribe", "deepgram", ref.Full, err)
		s.logComplete("transcribe", "deepgram", requestID, false, started, wrapped)
		return "", wrapped
	}

	s.logComplete("transcribe", "deepgram", requestID, false, started, nil)
	return value.(string), nil
}

// Chat 携带用户最近的对话历史发起模型补全，成功后追加一轮记录。
// 模型回复不做缓存：同一提问期望得到随上下文变化的回答。
func (s *Service) Chat(ctx context.Context, userID, message string) (string, error) {
	if message == "" {
		return "", newValidationError("message is required")
	}
	if userID == "" {
		userID = "anonymous"
	}

	requestID := requestIDFrom(ctx)
	done := s.active.Begin(requestID, "chat")
	defer done()

	started := time.Now()
	turns := s.history.Recent(userID)

	s.active.SetStatus(requestID, "provider_call")
	value, err := s.pool.Submit(ctx, "chat", s.resultWait, func(callCtx context.Context) (any, error) {
		return s.chat.Complete(callCtx, turns, message)
	})
	if err != nil {
		wrapped := s.translate("chat", "gemini", "", err)
		s.logComplete("chat", "gemini", requestID, false, started, wrapped)
		return "", wrapped
	}

	reply := value.(string)
	s.history.Append(userID, message, reply)
	s.logComplete("chat", "gemini", requestID, false, started, nil)
	return reply, nil
}

// translate 把执行层错误映射到对外的错误分类。
func (s *Service) translate(op, providerName string, key cache.Key, err error) error {
	if errors.Is(err, executor.ErrTimeout) {
		return &TimeoutError{Op: op, Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &ComputationError{
		Provider: providerName,
		Op:       op,
		Key:      string(key),
		Err:      err,
	}
}

func (s *Service) logComplete(op, providerName, requestID string, cacheHit bool, started time.Time, err error) {
	fields := logging.RequestFields(op, providerName, requestID, cacheHit)
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if err != nil {
		fields["error"] = err.Error()
		s.logger.WithFields(fields).Error(op + "_failed")
		return
	}
	s.logger.WithFields(fields).Info(op + "_complete")
}

func validateSynthesis(req SynthesisRequest) error {
	if req.Text == "" {
		return newValidationError("text is required")
	}
	if _, ok := allowedVoices[req.Voice]; !ok {
		return newValidationError("voice must be 'default', 'male', or 'female'")
	}
	if req.Speed < 0.5 || req.Speed > 2.0 {
		return newValidationError("speed must be between 0.5 and 2.0")
	}
	return nil
}

type contextKey string

// RequestIDKey 用于在 context 中携带请求 ID。
const RequestIDKey contextKey = "request_id"

func requestIDFrom(ctx context.Context) string {
	if value := ctx.Value(RequestIDKey); value != nil {
		if id, ok := value.(string); ok && id != "" {
			return id
		}
	}
	return uuid.NewString()
}
