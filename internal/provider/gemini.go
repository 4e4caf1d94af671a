package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Gemini 调用 generateContent 接口完成多轮对话补全。
type Gemini struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
}

// NewGemini 构造客户端；model 形如 gemini-1.5-flash。
func NewGemini(baseURL, model, apiKey string, client *http.Client) *Gemini {
	return &Gemini{baseURL: baseURL, model: model, apiKey: apiKey, client: client}
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Complete 携带最近的对话历史发起补全，返回首个候选的文本。
func (g *Gemini) Complete(ctx context.Context, history []Turn, message string) (string, error) {
	if g.apiKey == "" {
		return "", errors.New("gemini: GEMINI_API_KEY 未设置")
	}

	contents := make([]geminiContent, 0, len(history)*2+1)
	for _, turn := range history {
		contents = append(contents,
			geminiContent{Role: "user", Parts: []geminiPart{{Text: turn.Prompt}}},
			geminiContent{Role: "model", Parts: []geminiPart{{Text: turn.Response}}},
		)
	}
	contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: message}}})

	body, err := json.Marshal(geminiRequest{Contents: contents})
	if err != nil {
		return "", fmt.Errorf("gemini: encode request: %w", err)
	}

	// 密钥只放请求头：URL 会原样出现在 url.Error 等错误信息里，
	// 随 key 传参会把密钥带进日志。
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError("gemini", resp.StatusCode, resp.Body)
	}

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("gemini: decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini: response missing candidates")
	}

	var reply strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		reply.WriteString(part.Text)
	}
	return reply.String(), nil
}
