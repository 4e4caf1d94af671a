package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
)

// voiceIDs 将对外暴露的三种音色映射到 Cartesia 的固定 voice ID。
var voiceIDs = map[string]string{
	"default": "c99d36f3-5ffd-4253-803a-535c1bc9c306",
	"male":    "ab109683-f31f-40d7-b264-9ec3e26fb85e",
	"female":  "bf0a246a-8642-498a-9950-80c35e9276b5",
}

// speedLabels 把数值速度归一到 Cartesia 接受的档位，按最近值匹配。
var speedLabels = map[float64]string{
	0.5:  "slowest",
	0.75: "slower",
	1.0:  "normal",
	1.25: "faster",
	1.5:  "fast",
	2.0:  "fastest",
}

// Cartesia 通过 REST 接口调用 sonic-2 模型合成 WAV 音频。
type Cartesia struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewCartesia 构造客户端；apiKey 为空时调用阶段返回明确错误。
func NewCartesia(baseURL, apiKey string, client *http.Client) *Cartesia {
	return &Cartesia{baseURL: baseURL, apiKey: apiKey, client: client}
}

type cartesiaPayload struct {
	ModelID      string             `json:"model_id"`
	Transcript   string             `json:"transcript"`
	Voice        cartesiaVoice      `json:"voice"`
	Language     string             `json:"language"`
	OutputFormat cartesiaOutputSpec `json:"output_format"`
}

type cartesiaVoice struct {
	Mode     string                `json:"mode"`
	ID       string                `json:"id"`
	Controls cartesiaVoiceControls `json:"experimental_controls"`
}

type cartesiaVoiceControls struct {
	Speed string `json:"speed"`
}

type cartesiaOutputSpec struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// SynthesizeOnce 一次性取回整段音频。
func (c *Cartesia) SynthesizeOnce(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cartesia: read audio: %w", err)
	}
	return audio, nil
}

// SynthesizeStream 返回按到达顺序消费响应体的分块流。
func (c *Cartesia) SynthesizeStream(ctx context.Context, req SynthesisRequest) (ByteStream, error) {
	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	return &bodyStream{body: resp.Body}, nil
}

func (c *Cartesia) post(ctx context.Context, req SynthesisRequest) (*http.Response, error) {
	if c.apiKey == "" {
		return nil, errors.New("cartesia: CARTESIA_API_KEY 未设置")
	}

	voiceID, ok := voiceIDs[req.Voice]
	if !ok {
		voiceID = voiceIDs["default"]
	}

	payload := cartesiaPayload{
		ModelID:    "sonic-2",
		Transcript: req.Text,
		Voice: cartesiaVoice{
			Mode:     "id",
			ID:       voiceID,
			Controls: cartesiaVoiceControls{Speed: nearestSpeedLabel(req.Speed)},
		},
		Language: "en",
		OutputFormat: cartesiaOutputSpec{
			Container:  "wav",
			Encoding:   "pcm_f32le",
			SampleRate: 44100,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("cartesia: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tts/bytes", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", c.apiKey)
	httpReq.Header.Set("Cartesia-Version", "2024-06-10")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("cartesia: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError("cartesia", resp.StatusCode, resp.Body)
	}
	return resp, nil
}

// nearestSpeedLabel 按数值距离选择最近的速度档位。
func nearestSpeedLabel(speed float64) string {
	values := make([]float64, 0, len(speedLabels))
	for v := range speedLabels {
		values = append(values, v)
	}
	sort.Float64s(values)

	closest := values[0]
	for _, v := range values[1:] {
		if math.Abs(v-speed) < math.Abs(closest-speed) {
			closest = v
		}
	}
	return speedLabels[closest]
}

// bodyStream 把 HTTP 响应体切成固定大小的分块流。
type bodyStream struct {
	body io.ReadCloser
}

const streamChunkSize = 32 * 1024

func (s *bodyStream) Next() ([]byte, error) {
	buf := make([]byte, streamChunkSize)
	n, err := s.body.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err == nil {
		err = io.EOF
	}
	return nil, err
}

func (s *bodyStream) Close() error {
	return s.body.Close()
}
