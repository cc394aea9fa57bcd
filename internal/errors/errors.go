package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// ErrorType represents the pipeline stage or concern an error belongs to
type ErrorType string

const (
	ErrorTypeExtraction     ErrorType = "extraction"
	ErrorTypeTemplate       ErrorType = "template"
	ErrorTypeGeneration     ErrorType = "generation"
	ErrorTypeMalformedReply ErrorType = "malformed_reply"
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeAssessment     ErrorType = "assessment"
	ErrorTypeRequest        ErrorType = "request"
	ErrorTypeIO             ErrorType = "io"
	ErrorTypeConfig         ErrorType = "config"
	ErrorTypeInternal       ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Cause   error          `json:"cause,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func newAppError(typ ErrorType, code, message string, cause error) *AppError {
	return &AppError{
		Type:    typ,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewExtractionError reports a document that could not be turned into text.
func NewExtractionError(path, message string, cause error) *AppError {
	return newAppError(ErrorTypeExtraction, ErrCodeExtractionFailed, message, cause).
		WithContext("path", path)
}

func NewTemplateError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeTemplate, code, message, cause)
}

func NewGenerationError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeGeneration, code, message, cause)
}

// NewMalformedReplyError keeps the raw model reply for diagnostics.
func NewMalformedReplyError(raw, message string, cause error) *AppError {
	return newAppError(ErrorTypeMalformedReply, ErrCodeMalformedReply, message, cause).
		WithContext("raw_reply", raw)
}

func NewValidationError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeValidation, code, message, cause)
}

// NewAssessmentError attributes a failure to the requirement at index.
func NewAssessmentError(index int, requirement string, cause error) *AppError {
	return newAppError(ErrorTypeAssessment, ErrCodeRequirementFailed,
		fmt.Sprintf("assessment of requirement %q failed", requirement), cause).
		WithContext("requirement", requirement).
		WithContext("index", index)
}

func NewRequestError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeRequest, code, message, cause)
}

func NewIOError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeIO, code, message, cause)
}

func NewConfigError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeConfig, code, message, cause)
}

func NewInternalError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, code, message, cause)
}

// WithContext adds context to an error
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// HasType reports whether any AppError in err's chain has the given type.
func HasType(err error, typ ErrorType) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Type == typ {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// Find returns the first AppError in err's chain with the given type.
func Find(err error, typ ErrorType) (*AppError, bool) {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Type == typ {
			return appErr, true
		}
		err = stderrors.Unwrap(err)
	}
	return nil, false
}

// RootType returns the type of the innermost AppError in err's chain, which
// identifies the pipeline stage that originally failed.
func RootType(err error) (ErrorType, bool) {
	var (
		typ   ErrorType
		found bool
	)
	for err != nil {
		if appErr, ok := err.(*AppError); ok {
			typ, found = appErr.Type, true
		}
		err = stderrors.Unwrap(err)
	}
	return typ, found
}

// Logger wraps slog with application-specific methods
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a JSON logger on stderr so stdout stays free for results.
func NewLogger(level slog.Level) *Logger {
	return NewLoggerWithWriter(os.Stderr, level)
}

func NewLoggerWithWriter(w io.Writer, level slog.Level) *Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}
	return &Logger{logger: slog.New(slog.NewJSONHandler(w, opts))}
}

// With returns a logger that adds args to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...)}
}

// LogError logs an application error with appropriate level and context
func (l *Logger) LogError(err error, message string, args ...any) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		logArgs := []any{
			"error_type", appErr.Type,
			"error_code", appErr.Code,
			"error_message", appErr.Message,
		}
		if appErr.Cause != nil {
			logArgs = append(logArgs, "cause", appErr.Cause.Error())
		}

		for key, value := range appErr.Context {
			// raw replies can be large; keep them out of error logs
			if key == "raw_reply" {
				continue
			}
			logArgs = append(logArgs, key, value)
		}

		logArgs = append(logArgs, args...)
		l.logger.Error(message, logArgs...)
		return
	}

	logArgs := append([]any{"error", err.Error()}, args...)
	l.logger.Error(message, logArgs...)
}

func (l *Logger) Info(message string, args ...any) {
	l.logger.Info(message, args...)
}

func (l *Logger) Debug(message string, args ...any) {
	l.logger.Debug(message, args...)
}

func (l *Logger) Warn(message string, args ...any) {
	l.logger.Warn(message, args...)
}

// New creates a new logger instance
func New(level string) (*Logger, error) {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	return NewLogger(slogLevel), nil
}

// Common error codes
const (
	ErrCodeExtractionFailed    = "EXTRACTION_FAILED"
	ErrCodeTemplateMissingVar  = "TEMPLATE_VARIABLE_MISSING"
	ErrCodeTemplateInvalid     = "TEMPLATE_INVALID"
	ErrCodeGenerationFailed    = "GENERATION_FAILED"
	ErrCodeEmptyReply          = "EMPTY_REPLY"
	ErrCodeMalformedReply      = "MALFORMED_REPLY"
	ErrCodeMissingField        = "MISSING_REQUIRED_FIELD"
	ErrCodeInvalidFieldType    = "INVALID_FIELD_TYPE"
	ErrCodeRequirementFailed   = "REQUIREMENT_FAILED"
	ErrCodeNoRequirements      = "NO_REQUIREMENTS"
	ErrCodeFileNotFound        = "FILE_NOT_FOUND"
	ErrCodeFileNotReadable     = "FILE_NOT_READABLE"
	ErrCodeFileTooLarge        = "FILE_TOO_LARGE"
	ErrCodeInvalidFormat       = "INVALID_FORMAT"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeMissingAPIKey       = "MISSING_API_KEY"
	ErrCodeInvalidConfig       = "INVALID_CONFIG"
	ErrCodeUnsupportedProvider = "UNSUPPORTED_PROVIDER"
)
