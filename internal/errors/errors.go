package errors

import (
	stderrors "errors"
	"fmt"
)

// RagError is the structured error type for tfrag.
// It carries enough context for logging, CLI presentation and recovery decisions.
type RagError struct {
	// Code is the unique error code (e.g., "ERR_201_READ_FAILED").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable hint for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *RagError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *RagError) Unwrap() error {
	return e.Cause
}

// Is matches by code so that errors.Is works against the sentinels below.
func (e *RagError) Is(target error) bool {
	if t, ok := target.(*RagError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *RagError) WithDetail(key, value string) *RagError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *RagError) WithSuggestion(suggestion string) *RagError {
	e.Suggestion = suggestion
	return e
}

// New creates a new RagError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *RagError {
	return &RagError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a RagError from an existing error.
func Wrap(code string, err error) *RagError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels for errors.Is checks. Matching is by code only.
var (
	ErrRead            = &RagError{Code: ErrCodeReadFailed}
	ErrEmbedding       = &RagError{Code: ErrCodeEmbeddingFailed}
	ErrStoreMutation   = &RagError{Code: ErrCodeStoreMutation}
	ErrManifestPersist = &RagError{Code: ErrCodeManifestPersist}
	ErrIndexLocked     = &RagError{Code: ErrCodeIndexLocked}
	ErrModeRequired    = &RagError{Code: ErrCodeModeRequired}
)

// ReadError reports a document that could not be read. The run skips it.
func ReadError(path string, cause error) *RagError {
	return New(ErrCodeReadFailed, fmt.Sprintf("read %s: %v", path, cause), cause).
		WithDetail("path", path)
}

// EmbeddingError reports a failed embedding call while applying a document.
func EmbeddingError(path string, cause error) *RagError {
	return New(ErrCodeEmbeddingFailed, fmt.Sprintf("embed %s: %v", path, cause), cause).
		WithDetail("path", path).
		WithSuggestion("check that the embedding endpoint is reachable; the document is retried on the next run")
}

// StoreMutationError reports a failed vector store add or delete.
func StoreMutationError(op, path string, cause error) *RagError {
	return New(ErrCodeStoreMutation, fmt.Sprintf("%s %s: %v", op, path, cause), cause).
		WithDetail("op", op).
		WithDetail("path", path)
}

// ManifestPersistError reports that the manifest could not be written.
// The previous manifest stays authoritative.
func ManifestPersistError(path string, cause error) *RagError {
	return New(ErrCodeManifestPersist, fmt.Sprintf("save manifest %s: %v", path, cause), cause).
		WithDetail("path", path).
		WithSuggestion("check disk space and permissions; the next run re-derives the same changes")
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *RagError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// NetworkError creates a retryable network error.
func NetworkError(message string, cause error) *RagError {
	return New(ErrCodeNetworkUnavailable, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *RagError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *RagError {
	return New(ErrCodeInternal, message, cause)
}

// As finds the first RagError in err's chain.
func As(err error) (*RagError, bool) {
	var re *RagError
	if stderrors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// IsRetryable reports whether any RagError in the chain is retryable.
func IsRetryable(err error) bool {
	if re, ok := As(err); ok {
		return re.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	if re, ok := As(err); ok {
		return re.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code, or "" when err carries none.
func GetCode(err error) string {
	if re, ok := As(err); ok {
		return re.Code
	}
	return ""
}
