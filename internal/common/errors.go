package common

import (
	"errors"
	"fmt"
)

// AppError 应用级错误结构
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WrapError 包装错误
func WrapError(code, message string, err error) error {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewError 创建新错误
func NewError(code, message string) error {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// CodeOf 返回错误链上第一个 AppError 的错误码，没有则返回空串
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsCode 判断错误链上是否带有指定错误码
func IsCode(err error, code string) bool {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

// 错误码常量
const (
	ErrCodeParseFailure        = "PARSE_FAILURE"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeMalformedResponse   = "MALFORMED_RESPONSE"
	ErrCodeNoDataAvailable     = "NO_DATA_AVAILABLE"
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeDeliveryFailed      = "DELIVERY_FAILED"
	ErrCodeDatabase            = "DATABASE_ERROR"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// IsUpstreamFailure 搜索上游的三类可降级错误
func IsUpstreamFailure(err error) bool {
	return IsCode(err, ErrCodeUpstreamUnavailable) ||
		IsCode(err, ErrCodeRateLimited) ||
		IsCode(err, ErrCodeMalformedResponse)
}
