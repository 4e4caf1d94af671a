package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供操作/Provider/命中状态字段，供转换请求日志复用。
func RequestFields(op, provider, requestID string, cacheHit bool) logrus.Fields {
	fields := logrus.Fields{
		"op":        op,
		"provider":  provider,
		"cache_hit": cacheHit,
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}
