package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absStorage, err := filepath.Abs(cfg.Cache.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.Cache.StoragePath = absStorage

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("Cache.StoragePath", "./storage")
	v.SetDefault("Cache.MaxMemoryItems", 128)
	v.SetDefault("Cache.ExpiryWindow", "24h")
	v.SetDefault("Cache.DiskRetention", "168h")
	v.SetDefault("Cache.SweepInterval", "1h")
	v.SetDefault("Executor.Workers", 8)
	v.SetDefault("Executor.CallTimeout", "30s")
	v.SetDefault("Executor.RatePerSecond", 10.0)
	v.SetDefault("Executor.RateBurst", 20)
	v.SetDefault("Executor.RequestTimeout", "60s")
	v.SetDefault("Provider.CartesiaBaseURL", "https://api.cartesia.ai")
	v.SetDefault("Provider.DeepgramBaseURL", "https://api.deepgram.com")
	v.SetDefault("Provider.GeminiBaseURL", "https://generativelanguage.googleapis.com")
	v.SetDefault("Provider.GeminiModel", "gemini-1.5-flash")
	v.SetDefault("Chat.HistoryDepth", 10)
}

// applyDefaults 兜底零值字段，保证后续组件拿到的配置总是可用的。
func applyDefaults(cfg *Config) {
	if cfg.Global.ListenPort == 0 {
		cfg.Global.ListenPort = 5000
	}
	if cfg.Cache.MaxMemoryItems <= 0 {
		cfg.Cache.MaxMemoryItems = 128
	}
	if cfg.Cache.ExpiryWindow.DurationValue() == 0 {
		cfg.Cache.ExpiryWindow = Duration(24 * time.Hour)
	}
	if cfg.Cache.DiskRetention.DurationValue() == 0 {
		cfg.Cache.DiskRetention = Duration(7 * 24 * time.Hour)
	}
	if cfg.Cache.SweepInterval.DurationValue() == 0 {
		cfg.Cache.SweepInterval = Duration(time.Hour)
	}
	if cfg.Executor.Workers <= 0 {
		cfg.Executor.Workers = 8
	}
	if cfg.Executor.CallTimeout.DurationValue() == 0 {
		cfg.Executor.CallTimeout = Duration(30 * time.Second)
	}
	if cfg.Executor.RequestTimeout.DurationValue() == 0 {
		cfg.Executor.RequestTimeout = Duration(60 * time.Second)
	}
	if cfg.Executor.RatePerSecond <= 0 {
		cfg.Executor.RatePerSecond = 10.0
	}
	if cfg.Executor.RateBurst <= 0 {
		cfg.Executor.RateBurst = 20
	}
	if cfg.Chat.HistoryDepth <= 0 {
		cfg.Chat.HistoryDepth = 10
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
