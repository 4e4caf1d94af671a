package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// Deepgram 调用预录音频识别接口（nova-3 模型）。
type Deepgram struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewDeepgram 构造客户端。
func NewDeepgram(baseURL, apiKey string, client *http.Client) *Deepgram {
	return &Deepgram{baseURL: baseURL, apiKey: apiKey, client: client}
}

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// TranscribeOnce 上传整段音频并提取第一个候选转写。
func (d *Deepgram) TranscribeOnce(ctx context.Context, audio []byte, mimeHint string) (Transcription, error) {
	if d.apiKey == "" {
		return Transcription{}, errors.New("deepgram: DEEPGRAM_API_KEY 未设置")
	}
	if mimeHint == "" {
		mimeHint = "audio/webm"
	}

	query := url.Values{}
	query.Set("model", "nova-3")
	query.Set("language", "en-US")
	query.Set("smart_format", "true")
	query.Set("diarize", "true")
	query.Set("punctuate", "true")

	endpoint := d.baseURL + "/v1/listen?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(audio))
	if err != nil {
		return Transcription{}, err
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", mimeHint)

	resp, err := d.client.Do(req)
	if err != nil {
		return Transcription{}, fmt.Errorf("deepgram: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Transcription{}, statusError("deepgram", resp.StatusCode, resp.Body)
	}

	var parsed deepgramResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Transcription{}, fmt.Errorf("deepgram: decode response: %w", err)
	}

	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		return Transcription{}, errors.New("deepgram: response missing transcript")
	}

	alt := parsed.Results.Channels[0].Alternatives[0]
	return Transcription{Transcript: alt.Transcript, Confidence: alt.Confidence}, nil
}
