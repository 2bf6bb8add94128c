// Package errors provides structured error handling for tfrag.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (documents, manifest, store files)
//   - 3XX: Network errors (Ollama endpoints)
//   - 4XX: Validation errors
//   - 5XX: Internal and pipeline errors
package errors

// Category defines error categories for classification.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryIO         Category = "IO"
	CategoryNetwork    Category = "NETWORK"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal aborts the run.
	SeverityFatal Severity = "FATAL"
	// SeverityError fails one unit of work; the run continues.
	SeverityError Severity = "ERROR"
	// SeverityWarning is logged and skipped.
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeReadFailed      = "ERR_201_READ_FAILED"
	ErrCodeManifestPersist = "ERR_202_MANIFEST_PERSIST"
	ErrCodeManifestCorrupt = "ERR_203_MANIFEST_CORRUPT"
	ErrCodeStoreOpen       = "ERR_204_STORE_OPEN"
	ErrCodeCorruptIndex    = "ERR_205_CORRUPT_INDEX"
	ErrCodeFileTooLarge    = "ERR_206_FILE_TOO_LARGE"
	ErrCodeIndexLocked     = "ERR_207_INDEX_LOCKED"

	// Network errors (300-399)
	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeNetworkUnavailable = "ERR_302_NETWORK_UNAVAILABLE"
	ErrCodeModelNotFound      = "ERR_303_MODEL_NOT_FOUND"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeQueryEmpty        = "ERR_403_QUERY_EMPTY"
	ErrCodeModeRequired      = "ERR_404_MODE_REQUIRED"

	// Internal errors (500-599)
	ErrCodeInternal         = "ERR_501_INTERNAL"
	ErrCodeEmbeddingFailed  = "ERR_502_EMBEDDING_FAILED"
	ErrCodeStoreMutation    = "ERR_503_STORE_MUTATION"
	ErrCodeQueryFailed      = "ERR_504_QUERY_FAILED"
	ErrCodeGenerationFailed = "ERR_505_GENERATION_FAILED"
)

var categoryByDigit = map[byte]Category{
	'1': CategoryConfig,
	'2': CategoryIO,
	'3': CategoryNetwork,
	'4': CategoryValidation,
}

// categoryFromCode reads the hundreds digit, e.g. '1' in ERR_101_CONFIG_NOT_FOUND.
func categoryFromCode(code string) Category {
	if len(code) > 4 {
		if c, ok := categoryByDigit[code[4]]; ok {
			return c
		}
	}
	return CategoryInternal
}

func severityFromCode(code string) Severity {
	switch {
	case code == ErrCodeCorruptIndex, code == ErrCodeManifestPersist, code == ErrCodeIndexLocked:
		return SeverityFatal
	case code == ErrCodeReadFailed, code == ErrCodeFileTooLarge, isRetryableCode(code):
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether code names a transient network failure.
func isRetryableCode(code string) bool {
	return code == ErrCodeNetworkTimeout || code == ErrCodeNetworkUnavailable
}
