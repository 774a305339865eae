// Package errors provides the standardized error taxonomy shared by the HTTP
// API and the BPMN job workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeUnauthenticated   ErrorCode = "UNAUTHENTICATED"
	ErrCodeMissingParameter  ErrorCode = "MISSING_PARAMETER"
	ErrCodeInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrCodeInstanceNotFound  ErrorCode = "INSTANCE_NOT_FOUND"
	ErrCodeNotFRATemplate    ErrorCode = "NOT_FRA_TEMPLATE"
	ErrCodeNoStorageTarget   ErrorCode = "NO_STORAGE_TARGET"
	ErrCodeInvalidPatch      ErrorCode = "INVALID_PATCH"
	ErrCodeInvalidPath       ErrorCode = "INVALID_PATH"
	ErrCodeStorageError      ErrorCode = "STORAGE_ERROR"
	ErrCodeRenderError       ErrorCode = "RENDER_ERROR"
	ErrCodeQueryFailed       ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeNotificationError ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// Sentinels returned by domain packages; wrap them with fmt.Errorf("%w: ...").
var (
	ErrUnauthenticated  = stderrors.New(string(ErrCodeUnauthenticated))
	ErrInstanceNotFound = stderrors.New(string(ErrCodeInstanceNotFound))
	ErrNotFRATemplate   = stderrors.New(string(ErrCodeNotFRATemplate))
	ErrNoStorageTarget  = stderrors.New(string(ErrCodeNoStorageTarget))
	ErrInvalidPatch     = stderrors.New(string(ErrCodeInvalidPatch))
	ErrInvalidPath      = stderrors.New(string(ErrCodeInvalidPath))
	ErrStorage          = stderrors.New(string(ErrCodeStorageError))
	ErrRender           = stderrors.New(string(ErrCodeRenderError))
	ErrQueryFailed      = stderrors.New(string(ErrCodeQueryFailed))
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause so errors.Is keeps working across the
// translation boundary.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewUnauthenticatedError is returned when no verified caller is present.
func NewUnauthenticatedError(details string) *StandardError {
	return newError(ErrCodeUnauthenticated, "Authentication required", details, false, ErrUnauthenticated)
}

// NewMissingParameterError names the request parameter that was absent.
func NewMissingParameterError(param string) *StandardError {
	e := newError(ErrCodeMissingParameter, fmt.Sprintf("Missing required parameter: %s", param), "", false, nil)
	e.Metadata = map[string]interface{}{"parameter": param}
	return e
}

// NewInvalidInputError reports job or request variables that fail their schema.
func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Input validation failed", details, false, nil)
}

func NewInstanceNotFoundError(instanceID string) *StandardError {
	return newError(ErrCodeInstanceNotFound, "Audit instance not found",
		fmt.Sprintf("instanceId: %s", instanceID), false, ErrInstanceNotFound)
}

func NewNotFRATemplateError(instanceID, category string) *StandardError {
	return newError(ErrCodeNotFRATemplate, "Audit instance is not a fire risk assessment",
		fmt.Sprintf("instanceId: %s, templateCategory: %s", instanceID, category), false, ErrNotFRATemplate)
}

// NewNoStorageTargetError describes the structural limitation of anchoring
// custom data on a template without questions.
func NewNoStorageTargetError(instanceID string) *StandardError {
	return newError(ErrCodeNoStorageTarget,
		"Custom data cannot be stored: the audit template has no questions to anchor it to",
		fmt.Sprintf("instanceId: %s", instanceID), false, ErrNoStorageTarget)
}

func NewInvalidPatchError(details string) *StandardError {
	return newError(ErrCodeInvalidPatch, "Custom data patch is invalid", details, false, ErrInvalidPatch)
}

func NewInvalidPathError(path string) *StandardError {
	return newError(ErrCodeInvalidPath, "Photo path does not belong to this audit instance",
		fmt.Sprintf("path: %s", path), false, ErrInvalidPath)
}

func NewStorageError(operation string, err error) *StandardError {
	return newError(ErrCodeStorageError, "Object storage operation failed",
		fmt.Sprintf("operation: %s, error: %v", operation, err), true, err)
}

func NewRenderError(instanceID string, err error) *StandardError {
	return newError(ErrCodeRenderError, "Failed to render fire risk assessment document",
		fmt.Sprintf("instanceId: %s, error: %v", instanceID, err), false, err)
}

func NewQueryFailedError(query string, err error) *StandardError {
	return newError(ErrCodeQueryFailed, "Database query execution error",
		fmt.Sprintf("query: %s, error: %v", query, err), true, err)
}

func NewNotificationError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationError, "Failed to send notification",
		fmt.Sprintf("channel: %s, error: %v", channel, err), true, err)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// ==========================
// 4. Classification
// ==========================

// FromError normalizes any error returned by the engine into a StandardError,
// classifying by the wrapped sentinel.
func FromError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}

	var code ErrorCode
	switch {
	case stderrors.Is(err, ErrUnauthenticated):
		code = ErrCodeUnauthenticated
	case stderrors.Is(err, ErrInstanceNotFound):
		code = ErrCodeInstanceNotFound
	case stderrors.Is(err, ErrNotFRATemplate):
		code = ErrCodeNotFRATemplate
	case stderrors.Is(err, ErrNoStorageTarget):
		code = ErrCodeNoStorageTarget
	case stderrors.Is(err, ErrInvalidPatch):
		code = ErrCodeInvalidPatch
	case stderrors.Is(err, ErrInvalidPath):
		code = ErrCodeInvalidPath
	case stderrors.Is(err, ErrStorage):
		code = ErrCodeStorageError
	case stderrors.Is(err, ErrRender):
		code = ErrCodeRenderError
	case stderrors.Is(err, ErrQueryFailed):
		code = ErrCodeQueryFailed
	default:
		return NewInternalError(err)
	}

	return newError(code, messages[code], err.Error(), IsRetryableErrorCode(code), err)
}

var messages = map[ErrorCode]string{
	ErrCodeUnauthenticated:  "Authentication required",
	ErrCodeInstanceNotFound: "Audit instance not found",
	ErrCodeNotFRATemplate:   "Audit instance is not a fire risk assessment",
	ErrCodeNoStorageTarget:  "Custom data cannot be stored: the audit template has no questions to anchor it to",
	ErrCodeInvalidPatch:     "Custom data patch is invalid",
	ErrCodeInvalidPath:      "Photo path does not belong to this audit instance",
	ErrCodeStorageError:     "Object storage operation failed",
	ErrCodeRenderError:      "Failed to render fire risk assessment document",
	ErrCodeQueryFailed:      "Database query execution error",
}

// HTTPStatus maps an error code onto the response status used by the API.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case ErrCodeMissingParameter, ErrCodeInvalidInput, ErrCodeInvalidPatch, ErrCodeInvalidPath:
		return http.StatusBadRequest
	case ErrCodeInstanceNotFound:
		return http.StatusNotFound
	case ErrCodeNotFRATemplate, ErrCodeNoStorageTarget:
		return http.StatusUnprocessableEntity
	case ErrCodeStorageError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// BPMNErrorMapping maps internal codes onto the error codes modelled in the
// FRA BPMN processes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInstanceNotFound:  "FRA_INSTANCE_NOT_FOUND",
	ErrCodeNotFRATemplate:    "FRA_NOT_FRA_TEMPLATE",
	ErrCodeNoStorageTarget:   "FRA_NO_STORAGE_TARGET",
	ErrCodeInvalidPatch:      "FRA_INVALID_PATCH",
	ErrCodeInvalidPath:       "FRA_INVALID_PATH",
	ErrCodeStorageError:      "FRA_STORAGE_ERROR",
	ErrCodeRenderError:       "FRA_RENDER_ERROR",
	ErrCodeQueryFailed:       "FRA_QUERY_FAILED",
	ErrCodeNotificationError: "FRA_NOTIFICATION_FAILED",
	ErrCodeMissingParameter:  "FRA_MISSING_PARAMETER",
	ErrCodeInvalidInput:      "FRA_INVALID_INPUT",
}

// GetRetryCount returns how many job retries an error code earns. Render
// errors are never retried automatically.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeQueryFailed, ErrCodeStorageError:
		return 3
	case ErrCodeNotificationError:
		return 2
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError into its BPMN representation.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	code, ok := BPMNErrorMapping[stdErr.Code]
	if !ok {
		code = "FRA_INTERNAL_ERROR"
	}
	bpmnErr := &BPMNError{
		Code:      code,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   GetRetryCount(stdErr.Code),
	}
	if len(stdErr.Metadata) > 0 {
		bpmnErr.ErrorVariables = stdErr.Metadata
	}
	return bpmnErr
}

// IsRetryableErrorCode reports whether a code earns automatic retries.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory groups codes for logging and metrics labels.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeUnauthenticated:
		return "AUTHENTICATION"
	case ErrCodeMissingParameter, ErrCodeInvalidInput, ErrCodeInvalidPatch, ErrCodeInvalidPath:
		return "VALIDATION"
	case ErrCodeInstanceNotFound, ErrCodeNotFRATemplate, ErrCodeNoStorageTarget:
		return "BUSINESS_RULE"
	case ErrCodeStorageError, ErrCodeNotificationError:
		return "EXTERNAL_SERVICE"
	case ErrCodeQueryFailed:
		return "DATABASE"
	case ErrCodeRenderError:
		return "RENDERING"
	default:
		return "INTERNAL"
	}
}
