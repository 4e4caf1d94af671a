package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// GlobalConfig 描述全局运行时行为，服务内所有组件共享同一份参数。
type GlobalConfig struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
}

// CacheConfig 控制两级缓存的容量与过期行为。
type CacheConfig struct {
	StoragePath    string   `mapstructure:"StoragePath"`
	MaxMemoryItems int      `mapstructure:"MaxMemoryItems"`
	ExpiryWindow   Duration `mapstructure:"ExpiryWindow"`
	DiskRetention  Duration `mapstructure:"DiskRetention"`
	SweepInterval  Duration `mapstructure:"SweepInterval"`
}

// ExecutorConfig 决定外呼 Provider 的工作池规模与限速。
type ExecutorConfig struct {
	Workers        int      `mapstructure:"Workers"`
	CallTimeout    Duration `mapstructure:"CallTimeout"`
	RatePerSecond  float64  `mapstructure:"RatePerSecond"`
	RateBurst      int      `mapstructure:"RateBurst"`
	RequestTimeout Duration `mapstructure:"RequestTimeout"`
}

// ProviderConfig 描述第三方语音/模型服务的地址，密钥只通过环境变量注入。
type ProviderConfig struct {
	CartesiaBaseURL string `mapstructure:"CartesiaBaseURL"`
	DeepgramBaseURL string `mapstructure:"DeepgramBaseURL"`
	GeminiBaseURL   string `mapstructure:"GeminiBaseURL"`
	GeminiModel     string `mapstructure:"GeminiModel"`
}

// ChatConfig 限定每位用户保留的最近对话轮数。
type ChatConfig struct {
	HistoryDepth int `mapstructure:"HistoryDepth"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global   GlobalConfig   `mapstructure:",squash"`
	Cache    CacheConfig    `mapstructure:"Cache"`
	Executor ExecutorConfig `mapstructure:"Executor"`
	Provider ProviderConfig `mapstructure:"Provider"`
	Chat     ChatConfig     `mapstructure:"Chat"`
}
