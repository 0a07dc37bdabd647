// Package errors defines the categorized error types used across the
// reconciliation engine.
//
// The error taxonomy follows the batch-processing contract of the engine:
//
//   - decode errors: a file's bytes cannot be interpreted under any
//     supported text encoding; fatal for that file only.
//   - schema errors: no usable timestamp column could be located after
//     column mapping; fatal for that file only.
//   - coercion warnings: an amount or timestamp cell failed to parse and
//     was coerced (zero) or dropped (row); never fatal.
//   - platform fallbacks: no platform profile matched and the generic bank
//     profile was used; informational only.
//
// Per-file failures are collected into a BatchSummary and surfaced next to
// the aggregate result instead of aborting the batch.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Category groups errors by the stage of processing that produced them.
type Category string

const (
	CategoryFile     Category = "file"
	CategoryDecode   Category = "decode"
	CategorySchema   Category = "schema"
	CategoryCoercion Category = "coercion"
	CategoryPlatform Category = "platform"
	CategoryConfig   Category = "config"
	CategoryInternal Category = "internal"
)

// Code identifies a specific failure within a category.
type Code string

const (
	// File errors
	CodeFileNotFound   Code = "file_not_found"
	CodeFilePermission Code = "file_permission"
	CodeFileUnreadable Code = "file_unreadable"

	// Decode errors
	CodeUnknownEncoding Code = "unknown_encoding"
	CodeMalformedTable  Code = "malformed_table"
	CodeEmptyTable      Code = "empty_table"

	// Schema errors
	CodeNoTimestampColumn Code = "no_timestamp_column"
	CodeMissingColumn     Code = "missing_column"

	// Coercion warnings
	CodeAmountCoerced  Code = "amount_coerced"
	CodeRowDropped     Code = "row_dropped"

	// Platform notices
	CodeProfileFallback Code = "profile_fallback"

	// Configuration errors
	CodeInvalidConfig Code = "invalid_config"

	// Internal errors
	CodeUnexpected Code = "unexpected_error"
)

// LedgerError is the base error type for all application errors. It carries
// a category and code for programmatic handling, a human-readable message
// with an optional remediation suggestion, and arbitrary context values.
type LedgerError struct {
	Category   Category          `json:"category"`
	Code       Code              `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error.
type Context map[string]interface{}

// Error implements the error interface.
func (e *LedgerError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error.
func (e *LedgerError) Unwrap() error {
	return e.Cause
}

// Fatal reports whether the error aborts processing of its file. Coercion
// warnings and platform fallbacks are advisory and never fatal.
func (e *LedgerError) Fatal() bool {
	switch e.Category {
	case CategoryCoercion, CategoryPlatform:
		return false
	default:
		return true
	}
}

// ExitCode returns the process exit code appropriate for the error.
func (e *LedgerError) ExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryDecode, CategorySchema:
		return 3
	case CategoryConfig:
		return 4
	case CategoryInternal:
		return 5
	default:
		return 1
	}
}

// WithContext attaches a context value to the error.
func (e *LedgerError) WithContext(key string, value interface{}) *LedgerError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion attaches a remediation hint to the error.
func (e *LedgerError) WithSuggestion(suggestion string) *LedgerError {
	e.Suggestion = suggestion
	return e
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// New creates a new LedgerError.
func New(category Category, code Code, message string) *LedgerError {
	return &LedgerError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with category and code context.
func Wrap(err error, category Category, code Code, message string) *LedgerError {
	if err == nil {
		return nil
	}

	return &LedgerError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// FileError creates a file-access error for the given path.
func FileError(code Code, path string, err error) *LedgerError {
	var message, suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check that the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	result := wrapOrNew(err, CategoryFile, code, message)
	return result.WithSuggestion(suggestion).WithContext("file", path)
}

// DecodeError creates an error for a file whose bytes could not be
// interpreted under any supported encoding or tabular format.
func DecodeError(code Code, file string, err error) *LedgerError {
	var message, suggestion string

	switch code {
	case CodeUnknownEncoding:
		message = fmt.Sprintf("unable to decode file %s under any supported encoding", file)
		suggestion = "re-export the file as UTF-8, GBK, or GB18030 text"
	case CodeMalformedTable:
		message = fmt.Sprintf("file %s is not a readable table", file)
		suggestion = "check that the file is a valid CSV or XLSX export"
	case CodeEmptyTable:
		message = fmt.Sprintf("file %s contains no data rows", file)
		suggestion = "check that the export includes at least one transaction"
	default:
		message = fmt.Sprintf("decode error in file %s", file)
		suggestion = "check the file format"
	}

	result := wrapOrNew(err, CategoryDecode, code, message)
	return result.WithSuggestion(suggestion).WithContext("file", file)
}

// SchemaError creates an error for a table whose mapped columns cannot
// support extraction.
func SchemaError(code Code, file string, headers []string) *LedgerError {
	var message, suggestion string

	switch code {
	case CodeNoTimestampColumn:
		message = fmt.Sprintf("no usable timestamp column found in %s", file)
		suggestion = "check that the export includes a transaction time column"
	case CodeMissingColumn:
		message = fmt.Sprintf("required column missing in %s", file)
		suggestion = "check the export against the platform's expected headers"
	default:
		message = fmt.Sprintf("schema error in %s", file)
		suggestion = "check the file's column headers"
	}

	return New(CategorySchema, code, message).
		WithSuggestion(suggestion).
		WithContext("file", file).
		WithContext("headers", headers)
}

// CoercionWarning creates a non-fatal warning for a cell value that failed
// to parse and was coerced or dropped.
func CoercionWarning(code Code, field, value string) *LedgerError {
	var message string

	switch code {
	case CodeAmountCoerced:
		message = fmt.Sprintf("unparsable amount %q coerced to zero", value)
	case CodeRowDropped:
		message = fmt.Sprintf("row dropped: unparsable %s value %q", field, value)
	default:
		message = fmt.Sprintf("value coercion in field %q: %q", field, value)
	}

	return New(CategoryCoercion, code, message).
		WithContext("field", field).
		WithContext("value", value)
}

// PlatformFallback creates an informational notice that no platform profile
// matched a file and the generic bank profile was used.
func PlatformFallback(file string) *LedgerError {
	return New(CategoryPlatform, CodeProfileFallback,
		fmt.Sprintf("no platform profile matched %s, using generic bank profile", file)).
		WithContext("file", file)
}

// ConfigError creates a configuration error for the named setting.
func ConfigError(setting string, value interface{}, err error) *LedgerError {
	message := fmt.Sprintf("invalid configuration for %q: %v", setting, value)
	result := wrapOrNew(err, CategoryConfig, CodeInvalidConfig, message)
	return result.
		WithSuggestion("check the configuration documentation for valid values").
		WithContext("setting", setting).
		WithContext("value", value)
}

// InternalError creates an error for unexpected internal failures.
func InternalError(operation string, err error) *LedgerError {
	message := fmt.Sprintf("unexpected error during %s", operation)
	result := wrapOrNew(err, CategoryInternal, CodeUnexpected, message)
	return result.
		WithSuggestion("this is likely a bug - please report it with the error details").
		WithContext("operation", operation)
}

func wrapOrNew(err error, category Category, code Code, message string) *LedgerError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// BatchSummary aggregates the errors collected during a multi-file batch.
type BatchSummary struct {
	Total      int              `json:"total"`
	ByCategory map[Category]int `json:"by_category"`
	ByCode     map[Code]int     `json:"by_code"`
	Errors     []*LedgerError   `json:"errors"`
}

// NewBatchSummary creates a summary over the collected errors.
func NewBatchSummary(errs []*LedgerError) *BatchSummary {
	summary := &BatchSummary{
		Total:      len(errs),
		ByCategory: make(map[Category]int),
		ByCode:     make(map[Code]int),
		Errors:     errs,
	}
	if errs == nil {
		summary.Errors = []*LedgerError{}
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	return summary
}

// Error returns a formatted message covering all collected errors.
func (bs *BatchSummary) Error() string {
	if bs.Total == 0 {
		return "no errors"
	}
	if bs.Total == 1 {
		return bs.Errors[0].Error()
	}

	var categories []string
	for category, count := range bs.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}
	return fmt.Sprintf("%d errors occurred (%s)", bs.Total, strings.Join(categories, ", "))
}

// HasCategory reports whether the summary contains errors of the category.
func (bs *BatchSummary) HasCategory(category Category) bool {
	return bs.ByCategory[category] > 0
}

// HasFatal reports whether any collected error was fatal for its file.
func (bs *BatchSummary) HasFatal() bool {
	for _, err := range bs.Errors {
		if err.Fatal() {
			return true
		}
	}
	return false
}

// ExitCode returns the highest-priority exit code across all errors.
func (bs *BatchSummary) ExitCode() int {
	if bs.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range bs.Errors {
		if code := err.ExitCode(); code > maxCode {
			maxCode = code
		}
	}
	return maxCode
}

// AsLedgerError extracts a LedgerError from an error chain.
func AsLedgerError(err error) (*LedgerError, bool) {
	var ledgerErr *LedgerError
	if errors.As(err, &ledgerErr) {
		return ledgerErr, true
	}
	return nil, false
}

// WrapIfNeeded wraps err unless it already is a LedgerError.
func WrapIfNeeded(err error, category Category, code Code, message string) *LedgerError {
	if err == nil {
		return nil
	}
	if ledgerErr, ok := AsLedgerError(err); ok {
		return ledgerErr
	}
	return Wrap(err, category, code, message)
}
