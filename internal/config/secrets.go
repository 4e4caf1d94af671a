package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Secrets 汇总所有 Provider 的 API 密钥，只允许从环境变量注入，
// 避免密钥随配置文件落盘或进入日志。
type Secrets struct {
	CartesiaAPIKey string `env:"CARTESIA_API_KEY"`
	DeepgramAPIKey string `env:"DEEPGRAM_API_KEY"`
	GeminiAPIKey   string `env:"GEMINI_API_KEY"`
}

// LoadSecrets 从环境变量解析密钥；缺失的密钥在这里不报错，
// 由对应 Provider 在首次调用时返回明确的错误。
func LoadSecrets() (Secrets, error) {
	var s Secrets
	if err := env.Parse(&s); err != nil {
		return Secrets{}, fmt.Errorf("解析环境变量失败: %w", err)
	}
	return s, nil
}
