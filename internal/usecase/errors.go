package usecase

import (
	"errors"
	"fmt"

	"chatbot-backend/internal/record"
	"chatbot-backend/internal/repository"
)

type ErrorCode string

const (
	ErrorInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrorNotFound      ErrorCode = "NOT_FOUND"
	ErrorForbidden     ErrorCode = "FORBIDDEN"
	ErrorAlreadyExists ErrorCode = "ALREADY_EXISTS"
	ErrorConflict      ErrorCode = "CONFLICT"
	ErrorRateLimited   ErrorCode = "RATE_LIMITED"
	ErrorUpstream      ErrorCode = "UPSTREAM_ERROR"
	ErrorUnavailable   ErrorCode = "UNAVAILABLE"
	ErrorInternal      ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// CodeOf extracts the error code from err, ErrorInternal when err carries
// none.
func CodeOf(err error) ErrorCode {
	var uerr *Error
	if errors.As(err, &uerr) {
		return uerr.Code
	}
	return ErrorInternal
}

// storeError maps repository and codec failures onto usecase codes so
// handlers never see storage sentinels directly.
func storeError(reason string, err error) *Error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return newError(ErrorNotFound, reason, err)
	case errors.Is(err, repository.ErrAlreadyExists):
		return newError(ErrorAlreadyExists, reason, err)
	case errors.Is(err, repository.ErrConflictingWrite):
		return newError(ErrorConflict, reason, err)
	case errors.Is(err, repository.ErrStoreUnavailable):
		return newError(ErrorUnavailable, reason, err)
	case errors.Is(err, repository.ErrBadCursor):
		return newError(ErrorInvalidInput, reason, err)
	case errors.Is(err, record.ErrEncoding), errors.Is(err, record.ErrDecoding):
		return newError(ErrorInternal, reason, err)
	default:
		return newError(ErrorInternal, reason, err)
	}
}

// httpStatusCoder is implemented by upstream client errors that carry the
// provider's HTTP status.
type httpStatusCoder interface {
	HTTPStatusCode() int
}

// upstreamError classifies a provider failure, keeping 429s distinct so
// handlers can surface them as rate limiting.
func upstreamError(reason string, err error) *Error {
	var coder httpStatusCoder
	if errors.As(err, &coder) && coder.HTTPStatusCode() == 429 {
		return newError(ErrorRateLimited, reason, err)
	}
	return newError(ErrorUpstream, reason, err)
}
