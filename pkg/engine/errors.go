package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error for recovery decisions.
type ErrorClass string

const (
	// ErrorClassSession indicates the session is gone. The session must be torn down
	// and recreated before any further instantiation.
	ErrorClassSession ErrorClass = "session"

	// ErrorClassLicense indicates a license failure during library load or node creation.
	// The session is stopped to avoid repeated license acquisition attempts.
	ErrorClassLicense ErrorClass = "license"

	// ErrorClassFatal indicates a cook or node creation ended with fatal errors.
	ErrorClassFatal ErrorClass = "fatal"

	// ErrorClassMismatch indicates attribute data that cannot be converted to the
	// requested storage type.
	ErrorClassMismatch ErrorClass = "mismatch"

	// ErrorClassNotFound indicates a missing node, part, attribute, group or parameter.
	// Absence is often normal; callers decide.
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassTransient indicates a transport failure or an expired wait.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassPermanent indicates any other engine failure.
	ErrorClassPermanent ErrorClass = "permanent"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Resource names the node, part or attribute involved, if any.
	Resource string `json:"resource,omitempty"`

	// Operation is the engine call or component operation that failed.
	Operation string `json:"operation,omitempty"`

	// Result is the engine result code, ResultSuccess when the error did not come from the engine.
	Result Result `json:"result"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Resource != "" && e.Operation != "" {
		msg = fmt.Sprintf("%s (resource=%s, operation=%s)", msg, e.Resource, e.Operation)
	} else if e.Resource != "" {
		msg = fmt.Sprintf("%s (resource=%s)", msg, e.Resource)
	} else if e.Operation != "" {
		msg = fmt.Sprintf("%s (operation=%s)", msg, e.Operation)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

func newError(class ErrorClass, code, message string, err error) *EngineError {
	return &EngineError{
		Class:   class,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewSessionError creates a session-fatal error.
func NewSessionError(message string, err error) *EngineError {
	return newError(ErrorClassSession, ErrCodeInvalidSession, message, err)
}

// NewLicenseError creates a license-fatal error.
func NewLicenseError(message string, err error) *EngineError {
	return newError(ErrorClassLicense, ErrCodeLicense, message, err)
}

// NewFatalError creates a node/cook fatal error.
func NewFatalError(message string, err error) *EngineError {
	return newError(ErrorClassFatal, ErrCodeCookFatal, message, err)
}

// NewMismatchError creates a data-shape mismatch error.
func NewMismatchError(message string, err error) *EngineError {
	return newError(ErrorClassMismatch, ErrCodeTypeMismatch, message, err)
}

// NewNotFoundError creates a not-found error.
func NewNotFoundError(message string, err error) *EngineError {
	return newError(ErrorClassNotFound, ErrCodeNotFound, message, err)
}

// NewTransientError creates a transient error.
func NewTransientError(message string, err error) *EngineError {
	return newError(ErrorClassTransient, ErrCodeTransport, message, err)
}

// NewPermanentError creates a permanent error.
func NewPermanentError(message string, err error) *EngineError {
	return newError(ErrorClassPermanent, ErrCodeEngine, message, err)
}

// ResultError converts a non-success result code into a classified error.
// It returns nil for ResultSuccess.
func ResultError(res Result, operation string) error {
	if res == ResultSuccess {
		return nil
	}
	var e *EngineError
	switch {
	case res == ResultInvalidSession:
		e = NewSessionError("engine session is invalid", nil)
	case res.IsLicenseError():
		e = NewLicenseError("engine license check failed", nil)
	case res == ResultNodeInvalid || res == ResultAssetInvalid:
		e = NewNotFoundError("engine node is invalid", nil)
	case res == ResultNotInitialized:
		e = NewPermanentError("engine is not initialized", nil).WithCode(ErrCodeNotInitialized)
	case res == ResultInvalidArgument:
		e = NewPermanentError("invalid argument", nil).WithCode(ErrCodeInvalidArgument)
	default:
		e = NewPermanentError("engine call failed", nil)
	}
	e.Result = res
	e.Operation = operation
	return e.WithDetail("result", res.String())
}

// WithResource adds resource context to an error.
func (e *EngineError) WithResource(resource string) *EngineError {
	e.Resource = resource
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithResult records the engine result code that caused the error.
func (e *EngineError) WithResult(res Result) *EngineError {
	e.Result = res
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func classOf(err error) (ErrorClass, bool) {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class, true
	}
	return "", false
}

// ResultOf returns the engine result code carried by err, ResultSuccess for nil and
// ResultFailure for errors that did not come from the engine.
func ResultOf(err error) Result {
	if err == nil {
		return ResultSuccess
	}
	var e *EngineError
	if errors.As(err, &e) && e.Result != ResultSuccess {
		return e.Result
	}
	return ResultFailure
}

// CodeOf returns the error code carried by err, or "" if err is not an EngineError.
func CodeOf(err error) string {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsSessionLost returns true if the error is classified as session-fatal.
func IsSessionLost(err error) bool {
	c, ok := classOf(err)
	return ok && c == ErrorClassSession
}

// IsLicense returns true if the error is classified as a license failure.
func IsLicense(err error) bool {
	c, ok := classOf(err)
	return ok && c == ErrorClassLicense
}

// IsFatal returns true if the error is a node/cook fatal error.
func IsFatal(err error) bool {
	c, ok := classOf(err)
	return ok && c == ErrorClassFatal
}

// IsMismatch returns true if the error is a data-shape mismatch.
func IsMismatch(err error) bool {
	c, ok := classOf(err)
	return ok && c == ErrorClassMismatch
}

// IsNotFound returns true if the error is classified as not found.
func IsNotFound(err error) bool {
	c, ok := classOf(err)
	return ok && c == ErrorClassNotFound
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	c, ok := classOf(err)
	return ok && c == ErrorClassTransient
}

// IsPermanent returns true if the error is classified as permanent.
func IsPermanent(err error) bool {
	c, ok := classOf(err)
	return ok && c == ErrorClassPermanent
}

// IsRetryable returns true if the error can be retried by the caller.
// Only transient errors are retryable; session and license errors require a new session.
func IsRetryable(err error) bool {
	return IsTransient(err)
}

// Common error codes.
const (
	ErrCodeInvalidSession  = "INVALID_SESSION"
	ErrCodeLicense         = "LICENSE_FAILED"
	ErrCodeCookFatal       = "COOK_FATAL"
	ErrCodeTypeMismatch    = "TYPE_MISMATCH"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeTransport       = "TRANSPORT"
	ErrCodeTimeout         = "TIMEOUT"
	ErrCodeInvalidArgument = "INVALID_ARGUMENT"
	ErrCodeNotInitialized  = "NOT_INITIALIZED"
	ErrCodeEngine          = "ENGINE_FAILED"
	ErrCodeInvalidState    = "INVALID_STATE"
	ErrCodePolicyDenied    = "POLICY_DENIED"
)
