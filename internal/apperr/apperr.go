// Package apperr carries domain errors as values so the HTTP boundary is
// the only place status codes are decided.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to API clients.
const (
	CodeTenantContextMissing = "TENANT_CONTEXT_MISSING"
	CodeValidationFailed     = "PTW_VALIDATION_FAILED"
	CodeWorkflowError        = "PTW_WORKFLOW_ERROR"
	CodeSignatureError       = "PTW_SIGNATURE_ERROR"
	CodePermissionDenied     = "PTW_PERMISSION_DENIED"
	CodeNotFound             = "PTW_NOT_FOUND"
	CodeConflict             = "PTW_CONFLICT"
	CodeTenantImmutable      = "TENANT_IMMUTABLE"
	CodeCollabWriteDenied    = "COLLABORATION_WRITE_DENIED"
)

type Error struct {
	Code    string         `json:"code"`
	Status  int            `json:"-"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// As unwraps err into an *Error if it is one.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func New(code string, status int, msg string) *Error {
	return &Error{Code: code, Status: status, Message: msg}
}

// With returns a copy carrying the given detail. The receiver is not
// mutated so the sentinel constructors below stay reusable.
func (e *Error) With(key string, val any) *Error {
	out := &Error{Code: e.Code, Status: e.Status, Message: e.Message, Details: map[string]any{}}
	for k, v := range e.Details {
		out.Details[k] = v
	}
	out.Details[key] = val
	return out
}

func TenantContextMissing() *Error {
	return New(CodeTenantContextMissing, http.StatusBadRequest, "no tenant context on request")
}

func TenantImmutable() *Error {
	return New(CodeTenantImmutable, http.StatusBadRequest, "tenant_id cannot change after insert")
}

func ValidationFailed(msg string) *Error {
	return New(CodeValidationFailed, http.StatusBadRequest, msg)
}

func WorkflowError(current, target string) *Error {
	e := New(CodeWorkflowError, http.StatusBadRequest, fmt.Sprintf("cannot transition from %s to %s", current, target))
	e.Details = map[string]any{"current_status": current, "target_status": target}
	return e
}

func SignatureError(msg string) *Error {
	return New(CodeSignatureError, http.StatusBadRequest, msg)
}

func PermissionDenied(msg string) *Error {
	return New(CodePermissionDenied, http.StatusForbidden, msg)
}

func CollaborationWriteDenied() *Error {
	return New(CodeCollabWriteDenied, http.StatusForbidden, "collaboration_write_denied")
}

func NotFound(what string) *Error {
	return New(CodeNotFound, http.StatusNotFound, what+" not found")
}

func Conflict(msg string) *Error {
	return New(CodeConflict, http.StatusConflict, msg)
}

// VersionConflict carries both versions so offline clients can rebase.
func VersionConflict(serverVersion, clientVersion int) *Error {
	e := Conflict("version conflict")
	e.Details = map[string]any{"server_version": serverVersion, "client_version": clientVersion}
	return e
}
