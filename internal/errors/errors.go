// Package errors defines application errors with severity and a user-facing message.
package errors

import (
	stderrors "errors"
	"fmt"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Error codes. The first digit groups the failing layer.
const (
	CodeUnknown       = "E000"
	CodeDatabase      = "E200"
	CodeCache         = "E210"
	CodeBusy          = "E410"
	CodeConfiguration = "E600"
)

const msgTemporary = "Временная проблема, попробуйте позже"

type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches another AppError by code, so errors.Is(err, &AppError{Code: CodeBusy}) works.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && e != nil && t.Code != "" && t.Code == e.Code
}

// CodeOf returns the code of the first AppError in err's chain, or CodeUnknown.
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code
	}
	return CodeUnknown
}

func infra(code, layer string, cause error) *AppError {
	msg := layer + " error"
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return &AppError{
		Code:        code,
		Message:     msg,
		UserMessage: msgTemporary,
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

// NewDatabaseError wraps a storage failure. It is retryable.
func NewDatabaseError(cause error) *AppError {
	return infra(CodeDatabase, "database", cause)
}

// NewCacheError wraps a redis failure.
func NewCacheError(cause error) *AppError {
	return infra(CodeCache, "cache", cause)
}

// NewBusyError is returned when another update of the same user is still being handled.
func NewBusyError(cause error) *AppError {
	return &AppError{
		Code:        CodeBusy,
		Message:     "user state is busy",
		UserMessage: "Предыдущее сообщение еще обрабатывается, повторите через секунду",
		Severity:    SeverityLow,
		Retryable:   true,
		cause:       cause,
	}
}

// NewConfigurationError reports a required setting that is missing.
func NewConfigurationError(setting string) *AppError {
	return &AppError{
		Code:        CodeConfiguration,
		Message:     fmt.Sprintf("configuration missing: %s", setting),
		UserMessage: "Ошибка: целевая группа не настроена.",
		Severity:    SeverityMedium,
	}
}
