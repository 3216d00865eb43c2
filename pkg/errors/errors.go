package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Generic errors
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeInternal   ErrorType = "INTERNAL"
	ErrorTypeCancelled  ErrorType = "CANCELLED"

	// Data acquisition and assembly
	ErrorTypeDataSourceUnavailable ErrorType = "DATA_SOURCE_UNAVAILABLE"
	ErrorTypeEmptySelection        ErrorType = "EMPTY_SELECTION"
	ErrorTypeEmptyGraph            ErrorType = "EMPTY_GRAPH"

	// Remote clustering
	ErrorTypeExternalServiceUnreachable ErrorType = "EXTERNAL_SERVICE_UNREACHABLE"
	ErrorTypeClusteringPluginMissing    ErrorType = "CLUSTERING_PLUGIN_MISSING"
	ErrorTypeClusterFailed              ErrorType = "CLUSTER_FAILED"
	ErrorTypeTimedOut                   ErrorType = "TIMED_OUT"

	// Persistence
	ErrorTypeArtifactPersistence ErrorType = "ARTIFACT_PERSISTENCE"

	// Scoring
	ErrorTypeScorerUnavailable     ErrorType = "SCORER_UNAVAILABLE"
	ErrorTypeFeatureVectorMismatch ErrorType = "FEATURE_VECTOR_MISMATCH"
)

// Data source names used in DataSourceUnavailable details.
const (
	SourceRelational = "relational"
	SourceGraph      = "graph"
)

// AppError represents an application-specific error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetail adds a single detail entry
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// captureStackTrace captures the current stack trace
func captureStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	stack := ""
	for {
		frame, more := frames.Next()
		stack += fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return stack
}

func newAppError(t ErrorType, status int, message string) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		HTTPStatus: status,
		StackTrace: captureStackTrace(),
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return newAppError(ErrorTypeValidation, http.StatusBadRequest, message)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return newAppError(ErrorTypeNotFound, http.StatusNotFound, fmt.Sprintf("%s not found", resource))
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return newAppError(ErrorTypeInternal, http.StatusInternalServerError, message)
}

// NewCancelledError reports that the caller abandoned the operation.
func NewCancelledError(operation string, err error) *AppError {
	return newAppError(ErrorTypeCancelled, http.StatusRequestTimeout,
		fmt.Sprintf("operation '%s' was cancelled", operation)).
		WithCause(err)
}

// NewDataSourceUnavailableError reports that one of the backing stores could not answer.
func NewDataSourceUnavailableError(source string, err error) *AppError {
	return newAppError(ErrorTypeDataSourceUnavailable, http.StatusServiceUnavailable,
		fmt.Sprintf("%s data source is unavailable", source)).
		WithDetail("source", source).
		WithCause(err)
}

// NewEmptySelectionError reports a selection that matched nothing in either store.
func NewEmptySelectionError(selectionKey string) *AppError {
	return newAppError(ErrorTypeEmptySelection, http.StatusNotFound,
		"no proteins or interactions match the selection").
		WithDetail("selection_key", selectionKey)
}

// NewEmptyGraphError reports that assembly produced no nodes to cluster.
func NewEmptyGraphError() *AppError {
	return newAppError(ErrorTypeEmptyGraph, http.StatusUnprocessableEntity,
		"assembled graph has no nodes")
}

// NewExternalServiceUnreachableError reports a transport failure or non-2xx reply from the clustering service.
func NewExternalServiceUnreachableError(endpoint string, err error) *AppError {
	return newAppError(ErrorTypeExternalServiceUnreachable, http.StatusBadGateway,
		fmt.Sprintf("clustering service unreachable at %s", endpoint)).
		WithDetail("endpoint", endpoint).
		WithCause(err)
}

// NewClusteringPluginMissingError reports that the remote service lacks the clustering app.
func NewClusteringPluginMissingError(algorithm string) *AppError {
	return newAppError(ErrorTypeClusteringPluginMissing, http.StatusFailedDependency,
		fmt.Sprintf("clustering algorithm %q is not installed on the remote service; install the clusterMaker2 app and retry", algorithm)).
		WithDetail("algorithm", algorithm)
}

// NewClusterFailedError carries the remote diagnostic text unmodified.
func NewClusterFailedError(detail string) *AppError {
	return newAppError(ErrorTypeClusterFailed, http.StatusBadGateway, detail)
}

// NewTimedOutError reports that the clustering job did not finish before the deadline.
func NewTimedOutError(jobID string) *AppError {
	return newAppError(ErrorTypeTimedOut, http.StatusGatewayTimeout,
		"clustering job did not finish before the deadline; the remote job was not cancelled").
		WithDetail("job_id", jobID)
}

// NewArtifactPersistenceError wraps a storage failure for clustering artifacts.
func NewArtifactPersistenceError(operation string, err error) *AppError {
	return newAppError(ErrorTypeArtifactPersistence, http.StatusInternalServerError,
		fmt.Sprintf("artifact %s failed", operation)).
		WithCause(err)
}

// NewScorerUnavailableError reports that a scoring backend could not be reached.
func NewScorerUnavailableError(scorer string, err error) *AppError {
	return newAppError(ErrorTypeScorerUnavailable, http.StatusServiceUnavailable,
		fmt.Sprintf("scorer '%s' is unavailable", scorer)).
		WithCause(err)
}

// NewFeatureVectorMismatchError reports a feature vector the scorer cannot accept.
func NewFeatureVectorMismatchError(expected, actual int, message string) *AppError {
	if message == "" {
		message = fmt.Sprintf("expected %d features, got %d", expected, actual)
	}
	return newAppError(ErrorTypeFeatureVectorMismatch, http.StatusBadRequest, message).
		WithDetail("expected", expected).
		WithDetail("actual", actual)
}

// Helper functions

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// TypeOf returns the ErrorType of err, or INTERNAL for foreign errors.
func TypeOf(err error) ErrorType {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// Retryable reports whether the caller may safely re-run the operation.
func Retryable(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeDataSourceUnavailable,
		ErrorTypeExternalServiceUnreachable,
		ErrorTypeTimedOut,
		ErrorTypeArtifactPersistence,
		ErrorTypeScorerUnavailable:
		return true
	}
	return false
}

// Actionable reports whether the error needs operator action on the remote side.
func Actionable(err error) bool {
	return IsType(err, ErrorTypeClusteringPluginMissing)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, add context to message
	if appErr := GetAppError(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}

	return NewInternalError(message).WithCause(err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
