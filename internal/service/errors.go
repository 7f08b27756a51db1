package service

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/walkidni/shelfshift-sub001/pkg/fetch"
)

// ==================== 错误分类 ====================

// ConfigError 配置缺失或非法，属于致命错误，编排器遇到立即终止
// 不再尝试后续数据源
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "配置错误: " + e.Msg
}

// ValidationError 载荷解析成功但提取不出可用商品
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// ErrNoUsableProduct 源返回的载荷里没有可用商品
func ErrNoUsableProduct(detail string) error {
	if detail == "" {
		detail = "载荷中没有可用的商品数据"
	}
	return &ValidationError{Msg: detail}
}

// isRecoverable 判断单个数据源的失败是否允许回退到下一个源。
// 传输错误、HTTP 状态错误、JSON 解析错误、校验错误都可回退，
// 配置错误不行
func isRecoverable(err error) bool {
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return false
	}
	var statusErr *fetch.StatusError
	if errors.As(err, &statusErr) {
		return true
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return true
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return true
	}
	// 其余按传输类失败处理，允许继续尝试
	return true
}

// SourceAttempt 一次数据源尝试的记录
type SourceAttempt struct {
	Source string
	Err    error
}

// terminalError 所有源都失败后挑一个最值得上报的错误：
// 从后往前找 HTTP 状态错误优先返回，否则包一层平台名返回
// 最后一个错误
func terminalError(platform string, attempts []SourceAttempt) error {
	if len(attempts) == 0 {
		return fmt.Errorf("%s: 没有可用的数据源", platform)
	}
	for i := len(attempts) - 1; i >= 0; i-- {
		var statusErr *fetch.StatusError
		if errors.As(attempts[i].Err, &statusErr) {
			return fmt.Errorf("%s(%s): %w", platform, attempts[i].Source, attempts[i].Err)
		}
	}
	last := attempts[len(attempts)-1]
	return fmt.Errorf("%s(%s): %w", platform, last.Source, last.Err)
}
