package provider

import "context"

// SynthesisRequest 描述一次文本转语音调用的全部语义参数。
type SynthesisRequest struct {
	Text  string
	Voice string
	Speed float64
}

// ByteStream 是 Provider 产出的单向分块字节流。Next 按序返回分块，
// 流结束时返回 io.EOF；Close 释放底层连接，可多次调用。
type ByteStream interface {
	Next() ([]byte, error)
	Close() error
}

// Synthesizer 抽象文本转语音服务。
type Synthesizer interface {
	// SynthesizeOnce 一次性合成整段音频并返回 WAV 字节。
	SynthesizeOnce(ctx context.Context, req SynthesisRequest) ([]byte, error)
	// SynthesizeStream 以分块方式合成，供增量交付使用。
	SynthesizeStream(ctx context.Context, req SynthesisRequest) (ByteStream, error)
}

// Transcription 是语音识别的结果。
type Transcription struct {
	Transcript string
	Confidence float64
}

// Transcriber 抽象语音转文本服务。
type Transcriber interface {
	TranscribeOnce(ctx context.Context, audio []byte, mimeHint string) (Transcription, error)
}

// Turn 是一轮历史对话。
type Turn struct {
	Prompt   string
	Response string
}

// ChatModel 抽象大语言模型的对话补全能力。
type ChatModel interface {
	Complete(ctx context.Context, history []Turn, message string) (string, error)
}
