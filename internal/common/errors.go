package common

import (
	"context"
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Extraction error taxonomy.
var (
	ErrUnsupportedFormat    = errors.New("unsupported format")
	ErrCorruptInput         = errors.New("corrupt input")
	ErrSizeLimitExceeded    = errors.New("size limit exceeded")
	ErrEngineFailure        = errors.New("ocr engine failure")
	ErrNoTextExtracted      = errors.New("no text extracted")
	ErrStructuralParseEmpty = errors.New("structural parse empty")

	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("resource not found")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Stable error codes, stored with failed results.
const (
	CodeUnsupportedFormat    = "UNSUPPORTED_FORMAT"
	CodeCorruptInput         = "CORRUPT_INPUT"
	CodeSizeLimitExceeded    = "SIZE_LIMIT_EXCEEDED"
	CodeEngineFailure        = "ENGINE_FAILURE"
	CodeNoTextExtracted      = "NO_TEXT_EXTRACTED"
	CodeStructuralParseEmpty = "STRUCTURAL_PARSE_EMPTY"
	CodeTimeout              = "TIMEOUT"
	CodeCancelled            = "CANCELLED"
	CodeConfig               = "CONFIG_ERROR"
	CodeInternal             = "INTERNAL"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrUnsupportedFormat, CodeUnsupportedFormat},
	{ErrCorruptInput, CodeCorruptInput},
	{ErrSizeLimitExceeded, CodeSizeLimitExceeded},
	{ErrEngineFailure, CodeEngineFailure},
	{ErrNoTextExtracted, CodeNoTextExtracted},
	{ErrStructuralParseEmpty, CodeStructuralParseEmpty},
	{context.DeadlineExceeded, CodeTimeout},
	{context.Canceled, CodeCancelled},
}

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Errorf wraps a taxonomy sentinel with a formatted message, keeping errors.Is intact.
func Errorf(sentinel error, format string, args ...any) error {
	return NewAppError(codeFor(sentinel), fmt.Sprintf(format, args...), sentinel)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// CodeOf returns the taxonomy code for err. An AppError's own code wins.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var ae *AppError
	if errors.As(err, &ae) && ae.Code != "" {
		return ae.Code
	}
	return codeFor(err)
}

// IsFatal reports whether err must abort processing of a single document.
func IsFatal(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrCorruptInput) ||
		errors.Is(err, ErrSizeLimitExceeded)
}

func codeFor(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}
