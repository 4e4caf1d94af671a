package speech

import (
	"errors"
	"fmt"
)

// ValidationError 表示调用方输入非法，不会被重试。
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// TimeoutError 表示等待结果超时；底层 Provider 调用可能仍在执行，
// 其完成后照常写缓存，调用方可无代价重试。
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: wait timed out", e.Op)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// ComputationError 包装 Provider 层的失败，携带定位信息但不外泄密钥等细节。
type ComputationError struct {
	Provider string
	Op       string
	Key      string
	Err      error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}

func newValidationError(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation/IsTimeout 供 HTTP 层做状态码映射。
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsTimeout(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target)
}
