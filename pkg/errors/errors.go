// Package errors provides the typed error taxonomy for assetsync.
// Every failure that crosses a package boundary is one of these types so
// callers can classify it with errors.Is / errors.As instead of parsing
// messages.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is and As are re-exported so callers need only this package.
var (
	Is = errors.Is
	As = errors.As
)

// Common sentinel errors for assetsync
var (
	// ErrNotFound indicates that a lookup found no matching record
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates a malformed value or response body
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates that the remote API kept answering 429
	ErrRateLimited = errors.New("rate limited")

	// ErrTransport indicates a network-level failure or retry exhaustion
	ErrTransport = errors.New("transport failure")

	// ErrFatal indicates a failure that aborts the whole run
	ErrFatal = errors.New("fatal")

	// ErrInvalidConfig indicates that configuration failed validation
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrDuplicate indicates the asset system rejected a record as a duplicate
	ErrDuplicate = errors.New("duplicate record")
)

// NotFoundError represents a lookup miss in the asset system or directory
type NotFoundError struct {
	Resource string
	Key      string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, key string) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: key}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// RequestError is returned by the transport when a call could not produce a
// usable response: retries were exhausted on a retryable status, or the
// request failed at the network level.
type RequestError struct {
	Method     string
	URL        string
	Attempts   int
	StatusCode int // last observed status, 0 when no response was received
	Err        error
}

// Error implements the error interface
func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed after %d attempt(s): last status %d %s",
			e.Method, e.URL, e.Attempts, e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed after %d attempt(s): %v", e.Method, e.URL, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s %s failed after %d attempt(s)", e.Method, e.URL, e.Attempts)
}

// Unwrap implements errors.Unwrap
func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *RequestError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return true
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// APIError represents a response the asset or directory API answered but
// whose status or envelope reported a failure.
type APIError struct {
	Service    string
	StatusCode int
	Message    string
	Endpoint   string
	Messages   map[string][]string
}

// Error implements the error interface
func (e *APIError) Error() string {
	msg := e.Message
	if len(e.Messages) > 0 {
		msg = strings.TrimSpace(msg + " " + FormatMessages(e.Messages))
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("API error from %s %s (status %d): %s", e.Service, e.Endpoint, e.StatusCode, msg)
	}
	return fmt.Sprintf("API error from %s %s: %s", e.Service, e.Endpoint, msg)
}

// Is implements errors.Is support
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	case ErrInvalidInput:
		return e.StatusCode < http.StatusInternalServerError
	case ErrDuplicate:
		return e.hasDuplicateMessage()
	}
	return false
}

// hasDuplicateMessage reports whether the API rejected the record because
// its asset tag or serial is already taken.
func (e *APIError) hasDuplicateMessage() bool {
	for _, field := range []string{"asset_tag", "serial"} {
		for _, m := range e.Messages[field] {
			lower := strings.ToLower(m)
			if strings.Contains(lower, "taken") || strings.Contains(lower, "unique") || strings.Contains(lower, "exist") {
				return true
			}
		}
	}
	return false
}

// NewAPIError creates a new APIError
func NewAPIError(service, endpoint string, statusCode int, message string) *APIError {
	return &APIError{
		Service:    service,
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Message:    message,
	}
}

// FormatMessages flattens a field->messages map into "field: msg; field: msg".
func FormatMessages(messages map[string][]string) string {
	keys := make([]string, 0, len(messages))
	for k := range messages {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(messages[k], ", "))
	}
	return strings.Join(parts, "; ")
}

// ParseError represents an error when decoding a response body
type ParseError struct {
	Format  string // "json", "yaml"
	Source  string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s parse error in %s: %s", e.Format, e.Source, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ParseError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewParseError creates a new ParseError
func NewParseError(format, source, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		Source:  source,
		Message: message,
		Err:     err,
	}
}

// FetchError reports a directory page that could not be retrieved.
type FetchError struct {
	Page      int
	PageToken string
	Err       error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	if e.PageToken != "" {
		return fmt.Sprintf("fetch of device page %d (token %s) failed: %v", e.Page, e.PageToken, e.Err)
	}
	return fmt.Sprintf("fetch of device page %d failed: %v", e.Page, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *FetchError) Is(target error) bool {
	return target == ErrFatal
}

// FatalError aborts a run. Processed counts up to the failure stay valid.
type FatalError struct {
	Stage string
	Err   error
}

// Error implements the error interface
func (e *FatalError) Error() string {
	return fmt.Sprintf("run aborted during %s: %v", e.Stage, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *FatalError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *FatalError) Is(target error) bool {
	return target == ErrFatal
}

// NewFatalError creates a new FatalError
func NewFatalError(stage string, err error) *FatalError {
	return &FatalError{Stage: stage, Err: err}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Problems  []string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	msg := e.Message
	if len(e.Problems) > 0 {
		msg = strings.TrimSpace(msg + ": " + strings.Join(e.Problems, "; "))
	}
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, msg)
	}
	return fmt.Sprintf("configuration error: %s", msg)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// ResourceError represents an error during resource operations
type ResourceError struct {
	Operation string // "create", "update", "lookup", "assign"
	Resource  string // "hardware", "model", "status", "category", "user", "fieldset"
	ID        string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ResourceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("failed to %s %s %s: %s", e.Operation, e.Resource, e.ID, e.Message)
	}
	return fmt.Sprintf("failed to %s %s: %s", e.Operation, e.Resource, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResourceError creates a new ResourceError
func NewResourceError(operation, resource, id string, err error) *ResourceError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ResourceError{
		Operation: operation,
		Resource:  resource,
		ID:        id,
		Message:   message,
		Err:       err,
	}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsRateLimited checks if an error is a rate limit error
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsTransport checks if an error is a transport failure
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsFatal checks if an error should abort the run
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// IsDuplicate checks if the asset system rejected a record as a duplicate
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// Helper wrapping functions for common patterns

// WrapResource wraps an error as a ResourceError
func WrapResource(operation, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	return NewResourceError(operation, resource, id, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, source string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, source, err.Error(), err)
}
