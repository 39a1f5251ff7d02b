package domain

import (
	"context"
	"errors"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("job not found")
	ErrAlreadyRunning  = errors.New("job is already running")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInvalidURL      = errors.New("invalid source url")
	ErrUnsupportedHost = errors.New("source host is not allowed")
	ErrTooLarge        = errors.New("media exceeds size ceiling")
	ErrTimeout         = errors.New("operation timed out")
	ErrUpstreamTimeout = errors.New("upstream service timed out")
	ErrUpstreamBlocked = errors.New("upstream host blocked the request")
	ErrDownloadFailed  = errors.New("media download failed")
	ErrUploadFailed    = errors.New("media upload to provider failed")
	ErrNonJSON         = errors.New("model output is not json")
	ErrSchema          = errors.New("model output violates result schema")
	ErrDisabled        = errors.New("feature is disabled")
)

// Stable error codes surfaced to polling clients across every entry point.
const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeInvalidURL      = "INVALID_URL"
	CodeUnsupportedHost = "UNSUPPORTED_HOST"
	CodeTooLarge        = "TOO_LARGE"
	CodeTimeout         = "TIMEOUT"
	CodeUpstreamTimeout = "UPSTREAM_TIMEOUT"
	CodeUpstreamBlocked = "UPSTREAM_BLOCKED"
	CodeDownloadFailed  = "DOWNLOAD_FAILED"
	CodeUploadFailed    = "UPLOAD_FAILED"
	CodeNonJSON         = "NON_JSON"
	CodeSchema          = "SCHEMA"
	CodeAlreadyRunning  = "ALREADY_RUNNING"
	CodeNotFound        = "NOT_FOUND"
	CodeUnknown         = "UNKNOWN"
)

// CodeFor maps any pipeline error onto its stable code. Unrecognized
// errors collapse into UNKNOWN so the orchestrator never leaks internals.
func CodeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidRequest
	case errors.Is(err, ErrInvalidURL):
		return CodeInvalidURL
	case errors.Is(err, ErrUnsupportedHost):
		return CodeUnsupportedHost
	case errors.Is(err, ErrTooLarge):
		return CodeTooLarge
	case errors.Is(err, ErrUpstreamTimeout):
		return CodeUpstreamTimeout
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, ErrUpstreamBlocked):
		return CodeUpstreamBlocked
	case errors.Is(err, ErrDownloadFailed):
		return CodeDownloadFailed
	case errors.Is(err, ErrUploadFailed):
		return CodeUploadFailed
	case errors.Is(err, ErrNonJSON):
		return CodeNonJSON
	case errors.Is(err, ErrSchema):
		return CodeSchema
	case errors.Is(err, ErrAlreadyRunning):
		return CodeAlreadyRunning
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	default:
		return CodeUnknown
	}
}
