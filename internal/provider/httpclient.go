package provider

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewHTTPClient 返回共享 http.Client，供所有 Provider 客户端复用。
// 不设整体 Timeout：流式响应的读取时长由调用方的 context 控制。
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: defaultTransport.Clone(),
	}
}

// readErrorBody 截取响应体前 1KiB 拼入错误信息，避免把大段上游内容带进日志。
func readErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 1024))
	return strings.TrimSpace(string(data))
}

// statusError 统一非 2xx 响应的错误格式。
func statusError(provider string, status int, body io.Reader) error {
	return fmt.Errorf("%s: status=%d body=%s", provider, status, readErrorBody(body))
}
