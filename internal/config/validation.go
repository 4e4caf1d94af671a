package config

import "errors"

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}

	if c.Cache.StoragePath == "" {
		return newFieldError("Cache.StoragePath", "不能为空")
	}
	if c.Cache.MaxMemoryItems <= 0 {
		return newFieldError("Cache.MaxMemoryItems", "必须大于 0")
	}
	if c.Cache.ExpiryWindow.DurationValue() <= 0 {
		return newFieldError("Cache.ExpiryWindow", "必须大于 0")
	}
	if c.Cache.DiskRetention.DurationValue() < c.Cache.ExpiryWindow.DurationValue() {
		return newFieldError("Cache.DiskRetention", "不能小于 ExpiryWindow")
	}
	if c.Cache.SweepInterval.DurationValue() <= 0 {
		return newFieldError("Cache.SweepInterval", "必须大于 0")
	}

	if c.Executor.Workers <= 0 {
		return newFieldError("Executor.Workers", "必须大于 0")
	}
	if c.Executor.CallTimeout.DurationValue() <= 0 {
		return newFieldError("Executor.CallTimeout", "必须大于 0")
	}
	if c.Executor.RequestTimeout.DurationValue() < c.Executor.CallTimeout.DurationValue() {
		return newFieldError("Executor.RequestTimeout", "不能小于 CallTimeout")
	}

	if c.Provider.CartesiaBaseURL == "" {
		return newFieldError("Provider.CartesiaBaseURL", "不能为空")
	}
	if c.Provider.DeepgramBaseURL == "" {
		return newFieldError("Provider.DeepgramBaseURL", "不能为空")
	}
	if c.Provider.GeminiBaseURL == "" {
		return newFieldError("Provider.GeminiBaseURL", "不能为空")
	}

	if c.Chat.HistoryDepth <= 0 {
		return newFieldError("Chat.HistoryDepth", "必须大于 0")
	}

	return nil
}
